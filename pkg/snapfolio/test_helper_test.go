package snapfolio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// setupTestDB creates a temporary database for testing and returns a Core instance.
// The caller should defer cleanup() to remove the temp file.
func setupTestDB(t *testing.T) (*Core, func()) {
	t.Helper()
	return setupTestDBWithOptions(t, Options{})
}

func setupTestDBWithOptions(t *testing.T, opts Options) (*Core, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "snapfolio-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	opts.DBPath = filepath.Join(tmpDir, "test.db")
	core, err := OpenWithOptions(opts)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return core, cleanup
}

// fakeCategorizer classifies by a name-keyed lookup, falling back to
// equity/stocks. Names listed in fail cause a classification error.
type fakeCategorizer struct {
	byName map[string]Categorization
	fail   map[string]bool
}

func (f *fakeCategorizer) Categorize(_ context.Context, asset RawAsset, _ []TaxonomyPair) (*Categorization, error) {
	if f.fail[asset.Name] {
		return nil, fmt.Errorf("categorizer unavailable for %q", asset.Name)
	}
	if cat, ok := f.byName[asset.Name]; ok {
		return &cat, nil
	}
	return &Categorization{AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.9}, nil
}

// concurrencyProbe records the peak number of in-flight Categorize calls.
type concurrencyProbe struct {
	limit   int
	mu      sync.Mutex
	current int
	max     int
}

func (p *concurrencyProbe) Categorize(_ context.Context, _ RawAsset, _ []TaxonomyPair) (*Categorization, error) {
	p.mu.Lock()
	p.current++
	if p.current > p.max {
		p.max = p.current
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.current--
	p.mu.Unlock()
	return &Categorization{AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.9}, nil
}

func (p *concurrencyProbe) peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}

func (p *concurrencyProbe) exceeded() bool {
	return p.peak() > p.limit
}

// fakeParser returns canned results keyed by file name. Unknown files fail.
type fakeParser struct {
	docs map[string]*ParsedDocument
}

func (f *fakeParser) ParseDocument(_ context.Context, doc Document) (*ParsedDocument, error) {
	parsed, ok := f.docs[doc.FileName]
	if !ok {
		return nil, fmt.Errorf("unreadable document %q", doc.FileName)
	}
	return parsed, nil
}

// testSnapshot inserts a snapshot row directly and returns its id.
func testSnapshot(t *testing.T, core *Core, userID, snapshotDate, statementDate, name string) string {
	t.Helper()
	id := fmt.Sprintf("snap-%s-%s", name, snapshotDate)
	var stmtDate any
	if statementDate != "" {
		stmtDate = statementDate
	}
	_, err := core.db.Exec(`
		INSERT INTO asset_snapshots (id, user_id, snapshot_date, statement_date, snapshot_name, source_type)
		VALUES (?, ?, ?, ?, ?, 'statement_upload')`,
		id, userID, snapshotDate, stmtDate, name)
	if err != nil {
		t.Fatalf("failed to insert test snapshot: %v", err)
	}
	return id
}

// testAsset inserts a committed asset into a snapshot and returns its id.
func testAsset(t *testing.T, core *Core, snapshotID, userID, name, class, subclass string, value float64) int64 {
	t.Helper()
	res, err := core.db.Exec(`
		INSERT INTO assets (snapshot_id, user_id, name, asset_class, asset_subclass, current_value)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshotID, userID, name, class, subclass, value)
	if err != nil {
		t.Fatalf("failed to insert test asset: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read asset id: %v", err)
	}
	return id
}

// testReviewSession creates a review session with simple staged assets.
func testReviewSession(t *testing.T, core *Core, userID string, assets ...ReviewableAsset) string {
	t.Helper()
	if len(assets) == 0 {
		assets = []ReviewableAsset{reviewable("HDFC Bank Ltd", "equity", "stocks", 250000)}
	}
	date := "2024-11-30"
	id, err := core.CreateReviewSession(CreateSessionRequest{
		UserID:        userID,
		Assets:        assets,
		FileNames:     []string{"statement.csv"},
		StatementDate: &date,
	})
	if err != nil {
		t.Fatalf("failed to create test review session: %v", err)
	}
	return id
}

func reviewable(name, class, subclass string, value float64) ReviewableAsset {
	return ReviewableAsset{
		ClassifiedAsset: ClassifiedAsset{
			RawAsset: RawAsset{
				Name:         name,
				CurrentValue: NewAmount(value),
				SourceFile:   "statement.csv",
			},
			AssetClass:               class,
			AssetSubclass:            subclass,
			ClassificationConfidence: 0.9,
			RiskLevel:                "high",
			ExpectedReturnPct:        12,
		},
		IsSelected:       true,
		DuplicateMatches: []DuplicateMatch{},
	}
}

func csvDocument(name string, rows ...string) Document {
	content := "name,value\n" + strings.Join(rows, "\n")
	return Document{
		FileName:    name,
		ContentType: "text/csv",
		Data:        []byte(content),
		UploadedAt:  time.Now(),
	}
}

func assertErrorCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !IsErrorCode(err, code) {
		t.Fatalf("expected %s error, got: %v", code, err)
	}
}
