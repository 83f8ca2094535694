package api

import (
	"snapfolio/pkg/snapfolio"
)

type createReviewSessionPayload struct {
	Assets                  []snapfolio.ReviewableAsset `json:"assets"`
	FileNames               []string                    `json:"file_names"`
	StatementDate           *string                     `json:"statement_date"`
	StatementDateConfidence *string                     `json:"statement_date_confidence"`
	StatementDateSource     *string                     `json:"statement_date_source"`
	SuggestedSnapshotName   string                      `json:"suggested_snapshot_name"`
	MatchedSnapshotID       *string                     `json:"matched_snapshot_id"`
	MergeDecision           *string                     `json:"merge_decision"`
}

type updateReviewSessionPayload struct {
	Edits []snapfolio.TempAssetEdit `json:"edits"`
}

type reviewSessionResponse struct {
	Session *snapfolio.TempUploadSession `json:"session"`
	Assets  []snapfolio.TempAsset        `json:"assets"`
}

type addTaxonomyPairPayload struct {
	AssetClass    string `json:"asset_class"`
	AssetSubclass string `json:"asset_subclass"`
}

type setTaxonomyActivePayload struct {
	Active bool `json:"active"`
}
