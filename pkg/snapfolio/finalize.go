package snapfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FinalizeRequest commits a review session into a snapshot. Action must be
// "create_new" or "merge". For merge, TargetSnapshotID falls back to the
// session's matched snapshot. SelectedAssetIDs narrows the commit to those
// staged assets; when empty, all assets with is_selected are saved.
type FinalizeRequest struct {
	Action           string  `json:"action"`
	SnapshotName     string  `json:"snapshot_name,omitempty"`
	SnapshotDate     string  `json:"snapshot_date,omitempty"`
	TargetSnapshotID string  `json:"target_snapshot_id,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	SelectedAssetIDs []int64 `json:"selected_asset_ids,omitempty"`
}

// FinalizeResult reports what a commit produced.
type FinalizeResult struct {
	SnapshotID    string `json:"snapshot_id"`
	AssetsSaved   int    `json:"assets_saved"`
	IsNewSnapshot bool   `json:"is_new_snapshot"`
}

// Finalize commits a review session. The snapshot insert (or merge), the
// asset rows, the totals recompute and the session status change all happen
// in one transaction, so a failed commit leaves no partial snapshot behind
// and the session stays editable.
func (c *Core) Finalize(ctx context.Context, userID, sessionID string, req FinalizeRequest) (*FinalizeResult, error) {
	session, err := c.sessionByID(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sessionExpired(session) {
		return nil, NewError(ErrCodeExpired, "review session has expired")
	}
	if session.Status != SessionInReview {
		return nil, NewError(ErrCodeConflict,
			fmt.Sprintf("session already %s", session.Status))
	}
	if req.Action != ActionCreateNew && req.Action != ActionMerge {
		return nil, NewError(ErrCodeValidation, "action must be create_new or merge")
	}

	staged, err := c.sessionAssets(sessionID)
	if err != nil {
		return nil, err
	}
	selected := selectStagedAssets(staged, req.SelectedAssetIDs)
	if len(selected) == 0 {
		return nil, NewError(ErrCodeValidation, "no assets selected for commit")
	}

	var result FinalizeResult
	err = c.WithTx(ctx, func(tx *sql.Tx) error {
		snapshotID, isNew, err := c.resolveTargetSnapshot(tx, userID, session, req)
		if err != nil {
			return err
		}

		for _, asset := range selected {
			if _, err := tx.Exec(`
				INSERT INTO assets (
					snapshot_id, user_id, name, asset_class, asset_subclass,
					current_value, quantity, purchase_price, purchase_date,
					source_file, is_duplicate
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snapshotID, userID, asset.Name, asset.AssetClass, asset.AssetSubclass,
				asset.CurrentValue, asset.Quantity, asset.PurchasePrice, asset.PurchaseDate,
				asset.SourceFile, boolToInt(asset.IsDuplicate),
			); err != nil {
				return WrapError(ErrCodeDatabase, "insert asset", err)
			}
		}

		if !isNew {
			if err := mergeSnapshotSources(tx, snapshotID, session.FileNames); err != nil {
				return err
			}
		}
		if err := recomputeSnapshotTotals(tx, snapshotID); err != nil {
			return err
		}

		if !session.Status.CanTransitionTo(SessionCompleted) {
			return NewError(ErrCodeConflict, "session cannot be completed")
		}
		if _, err := tx.Exec(`
			UPDATE temp_upload_sessions
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, string(SessionCompleted), sessionID); err != nil {
			return WrapError(ErrCodeDatabase, "complete session", err)
		}

		result = FinalizeResult{
			SnapshotID:    snapshotID,
			AssetsSaved:   len(selected),
			IsNewSnapshot: isNew,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("review session finalized",
		"session", sessionID, "user", userID, "snapshot", result.SnapshotID,
		"assets", result.AssetsSaved, "new_snapshot", result.IsNewSnapshot)
	return &result, nil
}

// resolveTargetSnapshot returns the snapshot id the assets land in, creating
// a new snapshot row for create_new and validating ownership for merge.
func (c *Core) resolveTargetSnapshot(tx *sql.Tx, userID string, session *TempUploadSession, req FinalizeRequest) (string, bool, error) {
	if req.Action == ActionMerge {
		targetID := strings.TrimSpace(req.TargetSnapshotID)
		if targetID == "" && session.MatchedSnapshotID != nil {
			targetID = *session.MatchedSnapshotID
		}
		if targetID == "" {
			return "", false, NewError(ErrCodeValidation, "merge requires a target snapshot")
		}
		var owner string
		err := tx.QueryRow(
			"SELECT user_id FROM asset_snapshots WHERE id = ?", targetID).Scan(&owner)
		if err == sql.ErrNoRows || (err == nil && owner != userID) {
			return "", false, NewError(ErrCodeNotFound, "target snapshot not found")
		}
		if err != nil {
			return "", false, WrapError(ErrCodeDatabase, "query target snapshot", err)
		}
		return targetID, false, nil
	}

	snapshotID := uuid.NewString()
	snapshotDate := strings.TrimSpace(req.SnapshotDate)
	if snapshotDate == "" {
		if session.StatementDate != nil {
			snapshotDate = *session.StatementDate
		} else {
			snapshotDate = todayISO()
		}
	}
	if _, err := parseISODate(snapshotDate); err != nil {
		return "", false, NewError(ErrCodeValidation, "invalid snapshot date: "+snapshotDate)
	}
	name := strings.TrimSpace(req.SnapshotName)
	if name == "" {
		name = session.SuggestedSnapshotName
	}
	if name == "" {
		name = suggestSnapshotName(snapshotDate)
	}

	if _, err := tx.Exec(`
		INSERT INTO asset_snapshots (
			id, user_id, snapshot_date, statement_date, snapshot_name,
			source_type, source_files, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, userID, snapshotDate, session.StatementDate, name,
		SourceTypeStatement, marshalStrings(session.FileNames), req.Notes,
	); err != nil {
		return "", false, WrapError(ErrCodeDatabase, "insert snapshot", err)
	}
	return snapshotID, true, nil
}

// mergeSnapshotSources appends the session's file names to an existing
// snapshot's source_files, skipping names already recorded.
func mergeSnapshotSources(tx *sql.Tx, snapshotID string, fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}
	var raw sql.NullString
	if err := tx.QueryRow(
		"SELECT source_files FROM asset_snapshots WHERE id = ?", snapshotID).Scan(&raw); err != nil {
		return WrapError(ErrCodeDatabase, "query snapshot sources", err)
	}
	var existing []string
	if raw.Valid {
		existing = unmarshalStrings(&raw.String)
	}
	for _, name := range fileNames {
		if !contains(existing, name) {
			existing = append(existing, name)
		}
	}
	if _, err := tx.Exec(
		"UPDATE asset_snapshots SET source_files = ? WHERE id = ?",
		marshalStrings(existing), snapshotID); err != nil {
		return WrapError(ErrCodeDatabase, "update snapshot sources", err)
	}
	return nil
}

func selectStagedAssets(staged []TempAsset, ids []int64) []TempAsset {
	var out []TempAsset
	if len(ids) > 0 {
		wanted := make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
		for _, asset := range staged {
			if wanted[asset.ID] {
				out = append(out, asset)
			}
		}
		return out
	}
	for _, asset := range staged {
		if asset.IsSelected {
			out = append(out, asset)
		}
	}
	return out
}

// Cancel marks an in_review session cancelled. Its staged assets are kept
// until the expiry sweeper removes the session.
func (c *Core) Cancel(userID, sessionID string) error {
	session, err := c.sessionByID(userID, sessionID)
	if err != nil {
		return err
	}
	if !session.Status.CanTransitionTo(SessionCancelled) {
		return NewError(ErrCodeConflict,
			fmt.Sprintf("cannot cancel a %s session", session.Status))
	}
	if _, err := c.db.Exec(`
		UPDATE temp_upload_sessions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, string(SessionCancelled), sessionID); err != nil {
		return WrapError(ErrCodeDatabase, "cancel session", err)
	}
	c.logger.Info("review session cancelled", "session", sessionID, "user", userID)
	return nil
}
