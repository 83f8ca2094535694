package snapfolio

import (
	"fmt"
	"sort"
	"time"
)

// DateMatcherConfig tunes statement-period grouping and snapshot matching.
type DateMatcherConfig struct {
	SamePeriodToleranceDays int // files this close share a period; 0 = identical date
	NearWindowDays          int // |days| within this window classifies as a near match
	SnapshotWindow          int // recent snapshots considered when matching
}

// DefaultDateMatcherConfig returns the shipped matcher defaults.
func DefaultDateMatcherConfig() DateMatcherConfig {
	return DateMatcherConfig{
		SamePeriodToleranceDays: 0,
		NearWindowDays:          7,
		SnapshotWindow:          50,
	}
}

func (c DateMatcherConfig) normalized() DateMatcherConfig {
	def := DefaultDateMatcherConfig()
	if c.SamePeriodToleranceDays < 0 {
		c.SamePeriodToleranceDays = def.SamePeriodToleranceDays
	}
	if c.NearWindowDays <= 0 {
		c.NearWindowDays = def.NearWindowDays
	}
	if c.SnapshotWindow <= 0 {
		c.SnapshotWindow = def.SnapshotWindow
	}
	return c
}

// groupStatementPeriods groups extracted files by statement date. Files whose
// dates fall within the same-period tolerance share a group; files without an
// extractable date each form their own group.
func groupStatementPeriods(cfg DateMatcherConfig, results []ExtractionResult) []StatementPeriodGroup {
	type datedFile struct {
		fileName string
		date     time.Time
		iso      string
	}
	var dated []datedFile
	var groups []StatementPeriodGroup

	for _, r := range results {
		if !r.Success {
			continue
		}
		if r.DateGuess == nil || r.DateGuess.Date == "" {
			groups = append(groups, StatementPeriodGroup{Files: []string{r.FileName}})
			continue
		}
		parsed, err := parseISODate(r.DateGuess.Date)
		if err != nil {
			groups = append(groups, StatementPeriodGroup{Files: []string{r.FileName}})
			continue
		}
		dated = append(dated, datedFile{fileName: r.FileName, date: parsed, iso: r.DateGuess.Date})
	}

	sort.Slice(dated, func(i, j int) bool { return dated[i].date.Before(dated[j].date) })

	var datedGroups []StatementPeriodGroup
	var groupDates []time.Time
	for _, f := range dated {
		placed := false
		for i := range datedGroups {
			if absDays(f.date, groupDates[i]) <= cfg.SamePeriodToleranceDays {
				datedGroups[i].Files = append(datedGroups[i].Files, f.fileName)
				placed = true
				break
			}
		}
		if !placed {
			datedGroups = append(datedGroups, StatementPeriodGroup{
				StatementDate: f.iso,
				Files:         []string{f.fileName},
			})
			groupDates = append(groupDates, f.date)
		}
	}

	return append(datedGroups, groups...)
}

// matchPeriodGroups matches each period group against the user's existing
// snapshots and fills in the suggested action. Snapshots without a statement
// date are excluded from matching by design; a user whose history lacks
// statement dates will always be steered to create_new.
func (c *Core) matchPeriodGroups(userID string, groups []StatementPeriodGroup) error {
	snapshots, err := c.ListSnapshots(userID, c.pipeline.DateMatcher.SnapshotWindow)
	if err != nil {
		return err
	}

	for i := range groups {
		groups[i].MatchResult = c.matchPeriod(groups[i].StatementDate, snapshots)
	}
	return nil
}

func (c *Core) matchPeriod(statementDate string, snapshots []AssetSnapshot) *SnapshotMatchResult {
	noMatch := &SnapshotMatchResult{MatchType: MatchNone, SuggestedAction: ActionCreateNew}
	if statementDate == "" {
		return noMatch
	}
	target, err := parseISODate(statementDate)
	if err != nil {
		return noMatch
	}

	var best *AssetSnapshot
	bestDays := 0
	for i := range snapshots {
		snap := snapshots[i]
		if snap.StatementDate == nil || *snap.StatementDate == "" {
			continue
		}
		snapDate, err := parseISODate(*snap.StatementDate)
		if err != nil {
			continue
		}
		days := absDays(target, snapDate)
		if best == nil || days < bestDays {
			best = &snapshots[i]
			bestDays = days
		}
	}
	if best == nil {
		return noMatch
	}

	result := &SnapshotMatchResult{
		MatchedSnapshot: best,
		DaysDifference:  bestDays,
	}
	switch {
	case bestDays == 0:
		result.MatchType = MatchExact
		result.SuggestedAction = ActionMerge
	case bestDays <= c.pipeline.DateMatcher.NearWindowDays:
		result.MatchType = MatchNear
		result.SuggestedAction = ActionCreateNew
	default:
		result.MatchType = MatchNone
		result.SuggestedAction = ActionCreateNew
	}
	return result
}

func absDays(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// suggestSnapshotName derives a human-friendly snapshot name from a
// statement date, falling back to the upload day.
func suggestSnapshotName(statementDate string) string {
	date, err := parseISODate(statementDate)
	if err != nil {
		return fmt.Sprintf("Statement %s", todayISO())
	}
	return fmt.Sprintf("Statement %s", date.Format("Jan 2006"))
}
