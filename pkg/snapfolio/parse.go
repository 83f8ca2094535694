package snapfolio

import (
	"context"
	"strings"
)

// ParseRequest defines inputs for a statement parse run.
type ParseRequest struct {
	UserID     string
	Documents  []Document
	OnProgress ProgressFunc
}

// ParseResult is the full output of one parse run: per-file outcomes, merged
// reviewable assets, and statement period groups with snapshot matches.
type ParseResult struct {
	FileResults  []FileResult           `json:"per_file_results"`
	Assets       []ReviewableAsset      `json:"merged_reviewable_assets"`
	PeriodGroups []StatementPeriodGroup `json:"statement_period_groups"`
}

// Parse runs the ingestion pipeline over uploaded documents:
// extraction, merging, classification, duplicate detection, and
// statement-period matching. Per-file failures are reported alongside
// successful results; Parse fails only when no file yields usable assets.
func (c *Core) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, NewError(ErrCodeValidation, "user id is required")
	}

	extractions, err := c.extractDocuments(ctx, req.Documents, req.OnProgress)
	if err != nil {
		return nil, err
	}

	merged := mergeExtractions(extractions)

	classified, err := c.classifyAssets(ctx, merged)
	if err != nil {
		return nil, err
	}

	reviewable, err := c.detectDuplicates(userID, classified)
	if err != nil {
		return nil, err
	}

	groups := groupStatementPeriods(c.pipeline.DateMatcher, extractions)
	if err := c.matchPeriodGroups(userID, groups); err != nil {
		return nil, err
	}

	result := &ParseResult{
		FileResults:  buildFileResults(extractions),
		Assets:       reviewable,
		PeriodGroups: groups,
	}

	c.logger.Info("parse completed",
		"user", userID,
		"files", len(req.Documents),
		"assets", len(reviewable),
		"period_groups", len(groups))
	return result, nil
}

func buildFileResults(extractions []ExtractionResult) []FileResult {
	results := make([]FileResult, 0, len(extractions))
	for _, e := range extractions {
		fr := FileResult{
			FileName:   e.FileName,
			Success:    e.Success,
			AssetCount: len(e.Assets),
			DateGuess:  e.DateGuess,
		}
		if e.Err != nil {
			fr.Error = e.Err.Error()
		}
		results = append(results, fr)
	}
	return results
}
