package snapfolio

// AssetClasses is the closed set of top-level asset classes.
var AssetClasses = []string{"equity", "debt", "cash", "real_estate", "other"}

const (
	AssetClassEquity     = "equity"
	AssetClassDebt       = "debt"
	AssetClassCash       = "cash"
	AssetClassRealEstate = "real_estate"
	AssetClassOther      = "other"
)

// Statement-date confidence tiers.
const (
	DateConfidenceHigh   = "high"
	DateConfidenceMedium = "medium"
	DateConfidenceLow    = "low"
)

// Statement-date sources, ordered by decreasing reliability.
const (
	DateSourceDocument   = "document_content"
	DateSourceFilename   = "filename"
	DateSourceUserInput  = "user_input"
	DateSourceUploadTime = "upload_timestamp"
)

// SessionStatus is the review-session lifecycle state. Transitions are
// one-directional: in_review -> completed | cancelled.
type SessionStatus string

const (
	SessionInReview  SessionStatus = "in_review"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionInReview, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is immutable.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransitionTo reports whether the transition s -> next is allowed.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return s == SessionInReview && next.Terminal()
}

// Snapshot match types and suggested actions.
const (
	MatchExact = "exact"
	MatchNear  = "near"
	MatchNone  = "none"

	ActionMerge     = "merge"
	ActionCreateNew = "create_new"
)

// Snapshot source types.
const (
	SourceTypeStatement = "statement_upload"
	SourceTypeManual    = "manual"
)

// RawAsset is one holding extracted from a document, before classification.
type RawAsset struct {
	Name          string   `json:"name"`
	CurrentValue  Amount   `json:"current_value"`
	Quantity      *float64 `json:"quantity,omitempty"`
	PurchasePrice *Amount  `json:"purchase_price,omitempty"`
	PurchaseDate  *string  `json:"purchase_date,omitempty"`
	SourceFile    string   `json:"source_file"`
}

// ClassifiedAsset is a RawAsset with a taxonomy assignment.
type ClassifiedAsset struct {
	RawAsset
	AssetClass               string  `json:"asset_class"`
	AssetSubclass            string  `json:"asset_subclass"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	RiskLevel                string  `json:"risk_level"`
	ExpectedReturnPct        float64 `json:"expected_return_percentage"`
}

// DuplicateMatch is one existing asset a new asset likely duplicates.
type DuplicateMatch struct {
	AssetID      int64   `json:"asset_id"`
	SnapshotID   string  `json:"snapshot_id"`
	Name         string  `json:"name"`
	CurrentValue Amount  `json:"current_value"`
	Score        float64 `json:"score"`
	NameScore    float64 `json:"name_score"`
	ValueScore   float64 `json:"value_score"`
}

// ReviewableAsset is a ClassifiedAsset annotated for user review.
type ReviewableAsset struct {
	ClassifiedAsset
	IsDuplicate      bool             `json:"is_duplicate"`
	DuplicateMatches []DuplicateMatch `json:"duplicate_matches"`
	IsSelected       bool             `json:"is_selected"`
	IsEdited         bool             `json:"is_edited"`
}

// DateGuess is a statement-date extraction result for one file.
type DateGuess struct {
	Date       string `json:"date"`
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
}

// FileResult is the per-file outcome of a parse request.
type FileResult struct {
	FileName   string     `json:"file_name"`
	Success    bool       `json:"success"`
	AssetCount int        `json:"asset_count"`
	Error      string     `json:"error,omitempty"`
	DateGuess  *DateGuess `json:"statement_date,omitempty"`
}

// StatementPeriodGroup groups files that represent the same statement period.
// StatementDate is empty when no date could be extracted for the group.
type StatementPeriodGroup struct {
	StatementDate string               `json:"statement_date,omitempty"`
	Files         []string             `json:"files"`
	MatchResult   *SnapshotMatchResult `json:"match_result"`
}

// SnapshotMatchResult is the outcome of matching a period group against
// the user's existing snapshots.
type SnapshotMatchResult struct {
	MatchType       string         `json:"match_type"`
	MatchedSnapshot *AssetSnapshot `json:"matched_snapshot,omitempty"`
	DaysDifference  int            `json:"days_difference"`
	SuggestedAction string         `json:"suggested_action"`
}

// TempUploadSession is a staged review session pending user commit.
type TempUploadSession struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"user_id"`
	FileNames               []string      `json:"file_names"`
	StatementDate           *string       `json:"statement_date"`
	StatementDateConfidence *string       `json:"statement_date_confidence"`
	StatementDateSource     *string       `json:"statement_date_source"`
	SuggestedSnapshotName   string        `json:"suggested_snapshot_name"`
	MatchedSnapshotID       *string       `json:"matched_snapshot_id"`
	MergeDecision           *string       `json:"merge_decision"`
	Status                  SessionStatus `json:"status"`
	ExpiresAt               string        `json:"expires_at"`
	CreatedAt               string        `json:"created_at"`
	UpdatedAt               *string       `json:"updated_at"`
}

// TempAsset is a persisted ReviewableAsset bound to a TempUploadSession.
type TempAsset struct {
	ID                       int64            `json:"id"`
	SessionID                string           `json:"session_id"`
	Name                     string           `json:"name"`
	AssetClass               string           `json:"asset_class"`
	AssetSubclass            string           `json:"asset_subclass"`
	CurrentValue             Amount           `json:"current_value"`
	Quantity                 *float64         `json:"quantity"`
	PurchasePrice            *Amount          `json:"purchase_price"`
	PurchaseDate             *string          `json:"purchase_date"`
	SourceFile               string           `json:"source_file"`
	ClassificationConfidence float64          `json:"classification_confidence"`
	RiskLevel                string           `json:"risk_level"`
	ExpectedReturnPct        float64          `json:"expected_return_percentage"`
	IsDuplicate              bool             `json:"is_duplicate"`
	DuplicateMatches         []DuplicateMatch `json:"duplicate_matches"`
	IsSelected               bool             `json:"is_selected"`
	IsEdited                 bool             `json:"is_edited"`
}

// ClassTotals holds per-class value totals for a snapshot.
type ClassTotals struct {
	Equity     Amount `json:"equity"`
	Debt       Amount `json:"debt"`
	Cash       Amount `json:"cash"`
	RealEstate Amount `json:"real_estate"`
	Other      Amount `json:"other"`
}

// AssetSnapshot is a named, dated capture of a user's total holdings.
type AssetSnapshot struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	SnapshotDate  string      `json:"snapshot_date"`
	StatementDate *string     `json:"statement_date"`
	SnapshotName  string      `json:"snapshot_name"`
	TotalNetworth Amount      `json:"total_networth"`
	ClassTotals   ClassTotals `json:"class_totals"`
	SourceType    string      `json:"source_type"`
	SourceFiles   []string    `json:"source_files"`
	Notes         *string     `json:"notes"`
	CreatedAt     string      `json:"created_at"`
}

// Asset is a permanent holding record bound to exactly one snapshot.
type Asset struct {
	ID            int64    `json:"id"`
	SnapshotID    string   `json:"snapshot_id"`
	UserID        string   `json:"user_id"`
	Name          string   `json:"name"`
	AssetClass    string   `json:"asset_class"`
	AssetSubclass string   `json:"asset_subclass"`
	CurrentValue  Amount   `json:"current_value"`
	Quantity      *float64 `json:"quantity"`
	PurchasePrice *Amount  `json:"purchase_price"`
	PurchaseDate  *string  `json:"purchase_date"`
	SourceFile    string   `json:"source_file"`
	IsDuplicate   bool     `json:"is_duplicate"`
	CreatedAt     *string  `json:"created_at"`
}

// TaxonomyPair is one valid (asset_class, asset_subclass) combination.
type TaxonomyPair struct {
	ID            int64  `json:"id"`
	AssetClass    string `json:"asset_class"`
	AssetSubclass string `json:"asset_subclass"`
	IsActive      bool   `json:"is_active"`
}

// classDefaults supply risk level and expected return when the
// categorization collaborator omits them.
var classDefaults = map[string]struct {
	RiskLevel         string
	ExpectedReturnPct float64
}{
	AssetClassEquity:     {"high", 12},
	AssetClassDebt:       {"low", 7},
	AssetClassCash:       {"low", 4},
	AssetClassRealEstate: {"medium", 9},
	AssetClassOther:      {"medium", 8},
}
