package snapfolio

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DetectorConfig tunes duplicate detection. NameWeight and ValueWeight are
// expected to sum to 1; both weight conventions seen in the wild (0.7/0.3
// and 0.9/0.1) are supported by making the split explicit here.
type DetectorConfig struct {
	NameWeight          float64
	ValueWeight         float64
	SimilarityThreshold float64 // composite score cutoff, 0..100
	ValueTolerancePct   float64 // max value deviation considered comparable
	MaxMatches          int     // ranked matches retained per asset
	ExistingWindow      int     // recent existing assets considered
}

// DefaultDetectorConfig returns the shipped detector defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		NameWeight:          0.7,
		ValueWeight:         0.3,
		SimilarityThreshold: 85,
		ValueTolerancePct:   5,
		MaxMatches:          3,
		ExistingWindow:      1000,
	}
}

func (c DetectorConfig) normalized() DetectorConfig {
	def := DefaultDetectorConfig()
	if c.NameWeight <= 0 && c.ValueWeight <= 0 {
		c.NameWeight = def.NameWeight
		c.ValueWeight = def.ValueWeight
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.ValueTolerancePct <= 0 {
		c.ValueTolerancePct = def.ValueTolerancePct
	}
	if c.MaxMatches <= 0 {
		c.MaxMatches = def.MaxMatches
	}
	if c.ExistingWindow <= 0 {
		c.ExistingWindow = def.ExistingWindow
	}
	return c
}

// detectDuplicates scores each classified asset against the user's recent
// existing assets and annotates likely duplicates with ranked matches.
func (c *Core) detectDuplicates(userID string, assets []ClassifiedAsset) ([]ReviewableAsset, error) {
	cfg := c.pipeline.Detector
	existing, err := c.recentAssets(userID, cfg.ExistingWindow)
	if err != nil {
		return nil, err
	}

	reviewable := make([]ReviewableAsset, 0, len(assets))
	for _, asset := range assets {
		matches := findDuplicateMatches(cfg, asset, existing)
		reviewable = append(reviewable, ReviewableAsset{
			ClassifiedAsset:  asset,
			IsDuplicate:      len(matches) > 0,
			DuplicateMatches: matches,
			IsSelected:       len(matches) == 0,
		})
	}
	return reviewable, nil
}

func findDuplicateMatches(cfg DetectorConfig, asset ClassifiedAsset, existing []Asset) []DuplicateMatch {
	var matches []DuplicateMatch
	for _, old := range existing {
		valueScore, comparable := valueSimilarity(asset.CurrentValue, old.CurrentValue, cfg.ValueTolerancePct)
		if !comparable {
			// Values outside tolerance are never duplicates, whatever the name says.
			continue
		}
		nameScore := nameSimilarity(asset.Name, old.Name)
		score := cfg.NameWeight*nameScore + cfg.ValueWeight*valueScore
		if score < cfg.SimilarityThreshold {
			continue
		}
		matches = append(matches, DuplicateMatch{
			AssetID:      old.ID,
			SnapshotID:   old.SnapshotID,
			Name:         old.Name,
			CurrentValue: old.CurrentValue,
			Score:        score,
			NameScore:    nameScore,
			ValueScore:   valueScore,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > cfg.MaxMatches {
		matches = matches[:cfg.MaxMatches]
	}
	if matches == nil {
		matches = []DuplicateMatch{}
	}
	return matches
}

// valueSimilarity returns a 0..100 score scaled by how close the values are
// within the tolerance window. The second return is false when the deviation
// exceeds tolerance, which disqualifies the pair entirely.
func valueSimilarity(a, b Amount, tolerancePct float64) (float64, bool) {
	if a.IsZero() && b.IsZero() {
		return 100, true
	}
	larger := decimal.Max(a.Abs(), b.Abs())
	if larger.IsZero() {
		return 0, false
	}
	diffPct, _ := a.Sub(b.Decimal).Abs().Div(larger).Mul(decimal.NewFromInt(100)).Float64()
	if diffPct > tolerancePct {
		return 0, false
	}
	return 100 * (1 - diffPct/tolerancePct), true
}

// nameSimilarity returns a 0..100 normalized Levenshtein ratio over
// canonicalized names.
func nameSimilarity(a, b string) float64 {
	ca := canonicalizeAssetName(a)
	cb := canonicalizeAssetName(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 100
	}
	distance := levenshtein(ca, cb)
	maxLen := len(ca)
	if len(cb) > maxLen {
		maxLen = len(cb)
	}
	return 100 * (1 - float64(distance)/float64(maxLen))
}

// Corporate suffix variants collapse to one canonical token so that
// "HDFC Bank Ltd" and "HDFC Bank Limited" compare equal.
var corporateSuffixes = map[string]string{
	"limited":      "ltd",
	"ltd.":         "ltd",
	"corporation":  "corp",
	"corp.":        "corp",
	"incorporated": "inc",
	"inc.":         "inc",
	"company":      "co",
	"co.":          "co",
	"private":      "pvt",
	"pvt.":         "pvt",
}

func canonicalizeAssetName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var builder strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '.':
			builder.WriteRune(r)
		default:
			builder.WriteRune(' ')
		}
	}
	fields := strings.Fields(builder.String())
	for i, f := range fields {
		if canonical, ok := corporateSuffixes[f]; ok {
			fields[i] = canonical
		} else {
			fields[i] = strings.TrimSuffix(f, ".")
		}
	}
	return strings.Join(fields, " ")
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// recentAssets returns the user's most recent non-duplicate permanent assets.
func (c *Core) recentAssets(userID string, limit int) ([]Asset, error) {
	rows, err := c.db.Query(`
		SELECT id, snapshot_id, name, current_value
		FROM assets
		WHERE user_id = ? AND is_duplicate = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query existing assets", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.SnapshotID, &a.Name, &a.CurrentValue); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan existing asset", err)
		}
		a.UserID = userID
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate existing assets", err)
	}
	return assets, nil
}
