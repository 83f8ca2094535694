package snapfolio

import (
	"context"
	"testing"
	"time"
)

func parseTestParser() *fakeParser {
	return &fakeParser{docs: map[string]*ParsedDocument{
		"bank.csv": {
			Assets: []RawAsset{
				{Name: "HDFC Bank Ltd", CurrentValue: NewAmount(250000)},
				{Name: "Savings", CurrentValue: NewAmount(50000)},
			},
			StatementDate: &DateGuess{Date: "2024-11-30", Confidence: DateConfidenceHigh, Source: DateSourceDocument},
		},
		"broker.csv": {
			Assets: []RawAsset{
				{Name: "Nifty Index Fund", CurrentValue: NewAmount(120000)},
			},
			StatementDate: &DateGuess{Date: "2024-11-30", Confidence: DateConfidenceHigh, Source: DateSourceDocument},
		},
	}}
}

func parseTestCategorizer() *fakeCategorizer {
	return &fakeCategorizer{byName: map[string]Categorization{
		"HDFC Bank Ltd":    {AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.95},
		"Savings":          {AssetClass: "cash", AssetSubclass: "savings_account", Confidence: 0.9},
		"Nifty Index Fund": {AssetClass: "equity", AssetSubclass: "mutual_funds", Confidence: 0.9},
	}}
}

func TestParsePartialFailureStillSucceeds(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      parseTestParser(),
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	result, err := core.Parse(context.Background(), ParseRequest{
		UserID: "user-1",
		Documents: []Document{
			{FileName: "bank.csv", UploadedAt: time.Now()},
			{FileName: "broker.csv", UploadedAt: time.Now()},
			{FileName: "corrupt.pdf", UploadedAt: time.Now()},
		},
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(result.FileResults) != 3 {
		t.Fatalf("expected 3 file results, got %d", len(result.FileResults))
	}
	failures := 0
	for _, fr := range result.FileResults {
		if !fr.Success {
			failures++
			if fr.FileName != "corrupt.pdf" {
				t.Errorf("wrong file failed: %s", fr.FileName)
			}
			if fr.Error == "" {
				t.Error("failed file result should carry a reason")
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}

	if len(result.Assets) != 3 {
		t.Fatalf("expected 3 merged assets, got %d", len(result.Assets))
	}
	// File order is preserved through the merge.
	if result.Assets[0].Name != "HDFC Bank Ltd" || result.Assets[2].Name != "Nifty Index Fund" {
		t.Errorf("merged assets out of order: %v, %v", result.Assets[0].Name, result.Assets[2].Name)
	}
	if result.Assets[0].AssetClass != "equity" || result.Assets[1].AssetClass != "cash" {
		t.Errorf("classification missing: %+v", result.Assets[:2])
	}

	if len(result.PeriodGroups) != 1 {
		t.Fatalf("expected 1 period group, got %d", len(result.PeriodGroups))
	}
	group := result.PeriodGroups[0]
	if group.StatementDate != "2024-11-30" || len(group.Files) != 2 {
		t.Errorf("period group wrong: %+v", group)
	}
	if group.MatchResult == nil || group.MatchResult.MatchType != MatchNone {
		t.Errorf("fresh user should have no snapshot match: %+v", group.MatchResult)
	}
}

func TestParseAllFilesFailing(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      &fakeParser{docs: map[string]*ParsedDocument{}},
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	_, err := core.Parse(context.Background(), ParseRequest{
		UserID: "user-1",
		Documents: []Document{
			{FileName: "one.pdf", UploadedAt: time.Now()},
			{FileName: "two.pdf", UploadedAt: time.Now()},
		},
	})
	assertErrorCode(t, err, ErrCodeFatal)
}

func TestParseRejectsEmptyBatch(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      parseTestParser(),
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	_, err := core.Parse(context.Background(), ParseRequest{UserID: "user-1"})
	assertErrorCode(t, err, ErrCodeValidation)
}

func TestParseRejectsOversizedBatch(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      parseTestParser(),
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	docs := make([]Document, 11)
	for i := range docs {
		docs[i] = Document{FileName: "bank.csv", UploadedAt: time.Now()}
	}
	_, err := core.Parse(context.Background(), ParseRequest{UserID: "user-1", Documents: docs})
	assertErrorCode(t, err, ErrCodeValidation)
}

func TestParseRequiresCategorizer(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{Parser: parseTestParser()})
	defer cleanup()

	_, err := core.Parse(context.Background(), ParseRequest{
		UserID:    "user-1",
		Documents: []Document{{FileName: "bank.csv", UploadedAt: time.Now()}},
	})
	assertErrorCode(t, err, ErrCodeFatal)
}

func TestParseFlagsDuplicatesAgainstHistory(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      parseTestParser(),
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	snapID := testSnapshot(t, core, "user-1", "2024-10-31", "2024-10-31", "October")
	testAsset(t, core, snapID, "user-1", "HDFC Bank Limited", "equity", "stocks", 249000)

	result, err := core.Parse(context.Background(), ParseRequest{
		UserID:    "user-1",
		Documents: []Document{{FileName: "bank.csv", UploadedAt: time.Now()}},
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var flagged *ReviewableAsset
	for i := range result.Assets {
		if result.Assets[i].Name == "HDFC Bank Ltd" {
			flagged = &result.Assets[i]
		}
	}
	if flagged == nil {
		t.Fatal("HDFC asset missing from results")
	}
	if !flagged.IsDuplicate || len(flagged.DuplicateMatches) == 0 {
		t.Error("prior holding with suffix variant should be flagged")
	}
}

func TestParseProgressCallback(t *testing.T) {
	core, cleanup := setupTestDBWithOptions(t, Options{
		Parser:      parseTestParser(),
		Categorizer: parseTestCategorizer(),
	})
	defer cleanup()

	var seen []int
	_, err := core.Parse(context.Background(), ParseRequest{
		UserID: "user-1",
		Documents: []Document{
			{FileName: "bank.csv", UploadedAt: time.Now()},
			{FileName: "broker.csv", UploadedAt: time.Now()},
		},
		OnProgress: func(current, total int) {
			seen = append(seen, current)
			if total != 2 {
				t.Errorf("total = %d, want 2", total)
			}
		},
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("progress callbacks wrong: %v", seen)
	}
}
