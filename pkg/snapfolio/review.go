package snapfolio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateSessionRequest defines inputs to stage a review session.
type CreateSessionRequest struct {
	UserID                  string
	Assets                  []ReviewableAsset
	FileNames               []string
	StatementDate           *string
	StatementDateConfidence *string
	StatementDateSource     *string
	SuggestedSnapshotName   string
	MatchedSnapshotID       *string
	MergeDecision           *string
}

// CreateReviewSession persists a new TempUploadSession with its TempAssets
// and returns the session id.
func (c *Core) CreateReviewSession(req CreateSessionRequest) (string, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "", NewError(ErrCodeValidation, "user id is required")
	}
	if len(req.Assets) == 0 {
		return "", NewError(ErrCodeValidation, "cannot create a review session with zero assets")
	}

	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(c.pipeline.SessionTTL).UTC().Format(time.RFC3339)
	suggestedName := strings.TrimSpace(req.SuggestedSnapshotName)
	if suggestedName == "" && req.StatementDate != nil {
		suggestedName = suggestSnapshotName(*req.StatementDate)
	}

	err := c.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO temp_upload_sessions (
				id, user_id, file_names, statement_date, statement_date_confidence,
				statement_date_source, suggested_snapshot_name, matched_snapshot_id,
				merge_decision, status, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, userID, marshalStrings(req.FileNames),
			req.StatementDate, req.StatementDateConfidence, req.StatementDateSource,
			suggestedName, req.MatchedSnapshotID, req.MergeDecision,
			string(SessionInReview), expiresAt,
		); err != nil {
			return WrapError(ErrCodeDatabase, "insert review session", err)
		}

		for _, asset := range req.Assets {
			if _, err := tx.Exec(`
				INSERT INTO temp_assets (
					session_id, name, asset_class, asset_subclass, current_value,
					quantity, purchase_price, purchase_date, source_file,
					classification_confidence, risk_level, expected_return_pct,
					is_duplicate, duplicate_matches, is_selected, is_edited
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sessionID, asset.Name, asset.AssetClass, asset.AssetSubclass, asset.CurrentValue,
				asset.Quantity, asset.PurchasePrice, asset.PurchaseDate, asset.SourceFile,
				asset.ClassificationConfidence, asset.RiskLevel, asset.ExpectedReturnPct,
				boolToInt(asset.IsDuplicate), marshalMatches(asset.DuplicateMatches),
				boolToInt(asset.IsSelected), boolToInt(asset.IsEdited),
			); err != nil {
				return WrapError(ErrCodeDatabase, "insert temp asset", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("review session created",
		"session", sessionID, "user", userID, "assets", len(req.Assets))
	return sessionID, nil
}

// GetReviewSession returns a session and its staged assets. A session past
// its expiry returns EXPIRED even when its status is still in_review, so the
// UI can offer "start over" instead of "check your link".
func (c *Core) GetReviewSession(userID, sessionID string) (*TempUploadSession, []TempAsset, error) {
	session, err := c.sessionByID(userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sessionExpired(session) {
		return nil, nil, NewError(ErrCodeExpired, "review session has expired")
	}

	assets, err := c.sessionAssets(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, assets, nil
}

// TempAssetEdit is a partial update for one staged asset. Nil fields are
// left untouched.
type TempAssetEdit struct {
	AssetID       int64    `json:"asset_id"`
	Name          *string  `json:"name,omitempty"`
	CurrentValue  *Amount  `json:"current_value,omitempty"`
	AssetClass    *string  `json:"asset_class,omitempty"`
	AssetSubclass *string  `json:"asset_subclass,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	IsSelected    *bool    `json:"is_selected,omitempty"`
	IsDuplicate   *bool    `json:"is_duplicate,omitempty"`
}

// UpdateReviewSession applies partial edits to staged assets. Edits to
// missing assets are skipped; the whole update is rejected when the session
// is terminal. Returns the number of assets actually updated.
func (c *Core) UpdateReviewSession(userID, sessionID string, edits []TempAssetEdit) (int, error) {
	session, err := c.sessionByID(userID, sessionID)
	if err != nil {
		return 0, err
	}
	if sessionExpired(session) {
		return 0, NewError(ErrCodeExpired, "review session has expired")
	}
	if session.Status.Terminal() {
		return 0, NewError(ErrCodeConflict,
			fmt.Sprintf("cannot edit a %s session", session.Status))
	}
	if len(edits) == 0 {
		return 0, NewError(ErrCodeValidation, "no edits provided")
	}

	updated := 0
	err = c.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, edit := range edits {
			n, err := applyTempAssetEdit(tx, sessionID, edit)
			if err != nil {
				return err
			}
			updated += n
		}
		if _, err := tx.Exec(
			"UPDATE temp_upload_sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			sessionID); err != nil {
			return WrapError(ErrCodeDatabase, "touch session", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func applyTempAssetEdit(tx *sql.Tx, sessionID string, edit TempAssetEdit) (int, error) {
	var sets []string
	var args []any
	contentEdited := false

	if edit.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*edit.Name))
		contentEdited = true
	}
	if edit.CurrentValue != nil {
		sets = append(sets, "current_value = ?")
		args = append(args, *edit.CurrentValue)
		contentEdited = true
	}
	if edit.AssetClass != nil {
		class := normalizeAssetClass(*edit.AssetClass)
		if !isValidAssetClass(class) {
			return 0, NewError(ErrCodeValidation, "invalid asset class: "+*edit.AssetClass)
		}
		sets = append(sets, "asset_class = ?")
		args = append(args, class)
		contentEdited = true
	}
	if edit.AssetSubclass != nil {
		sets = append(sets, "asset_subclass = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*edit.AssetSubclass)))
		contentEdited = true
	}
	if edit.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *edit.Quantity)
	}
	if edit.IsSelected != nil {
		sets = append(sets, "is_selected = ?")
		args = append(args, boolToInt(*edit.IsSelected))
	}
	if edit.IsDuplicate != nil {
		sets = append(sets, "is_duplicate = ?")
		args = append(args, boolToInt(*edit.IsDuplicate))
	}
	if len(sets) == 0 {
		return 0, nil
	}
	if contentEdited {
		sets = append(sets, "is_edited = 1")
	}

	args = append(args, edit.AssetID, sessionID)
	result, err := tx.Exec(
		"UPDATE temp_assets SET "+strings.Join(sets, ", ")+" WHERE id = ? AND session_id = ?",
		args...)
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "update temp asset", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "update temp asset", err)
	}
	return int(affected), nil
}

// CleanupExpiredSessions deletes sessions past their expiry along with their
// staged assets (cascade). Returns the number of sessions removed.
func (c *Core) CleanupExpiredSessions() (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := c.db.Exec(
		"DELETE FROM temp_upload_sessions WHERE expires_at < ?", now)
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "delete expired sessions", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "delete expired sessions", err)
	}
	if affected > 0 {
		c.logger.Info("expired review sessions removed", "count", affected)
	}
	return int(affected), nil
}

func (c *Core) sessionByID(userID, sessionID string) (*TempUploadSession, error) {
	row := c.db.QueryRow(`
		SELECT id, user_id, file_names, statement_date, statement_date_confidence,
		       statement_date_source, suggested_snapshot_name, matched_snapshot_id,
		       merge_decision, status, expires_at, created_at, updated_at
		FROM temp_upload_sessions
		WHERE id = ? AND user_id = ?`, sessionID, userID)

	var s TempUploadSession
	var fileNames, statementDate, confidence, source sql.NullString
	var suggestedName, matchedID, mergeDecision, updatedAt sql.NullString
	var status string
	err := row.Scan(&s.ID, &s.UserID, &fileNames, &statementDate, &confidence,
		&source, &suggestedName, &matchedID, &mergeDecision, &status,
		&s.ExpiresAt, &s.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, NewError(ErrCodeNotFound, "review session not found")
	}
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query review session", err)
	}

	s.Status = SessionStatus(status)
	if fileNames.Valid {
		s.FileNames = unmarshalStrings(&fileNames.String)
	} else {
		s.FileNames = []string{}
	}
	if statementDate.Valid && statementDate.String != "" {
		s.StatementDate = &statementDate.String
	}
	if confidence.Valid && confidence.String != "" {
		s.StatementDateConfidence = &confidence.String
	}
	if source.Valid && source.String != "" {
		s.StatementDateSource = &source.String
	}
	if suggestedName.Valid {
		s.SuggestedSnapshotName = suggestedName.String
	}
	if matchedID.Valid && matchedID.String != "" {
		s.MatchedSnapshotID = &matchedID.String
	}
	if mergeDecision.Valid && mergeDecision.String != "" {
		s.MergeDecision = &mergeDecision.String
	}
	if updatedAt.Valid {
		s.UpdatedAt = &updatedAt.String
	}
	return &s, nil
}

func (c *Core) sessionAssets(sessionID string) ([]TempAsset, error) {
	rows, err := c.db.Query(`
		SELECT id, session_id, name, asset_class, asset_subclass, current_value,
		       quantity, purchase_price, purchase_date, source_file,
		       classification_confidence, risk_level, expected_return_pct,
		       is_duplicate, duplicate_matches, is_selected, is_edited
		FROM temp_assets WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query temp assets", err)
	}
	defer rows.Close()

	var assets []TempAsset
	for rows.Next() {
		var a TempAsset
		var quantity sql.NullFloat64
		var purchasePrice any
		var purchaseDate, sourceFile, riskLevel, matches sql.NullString
		var isDuplicate, isSelected, isEdited int
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Name, &a.AssetClass, &a.AssetSubclass,
			&a.CurrentValue, &quantity, &purchasePrice, &purchaseDate, &sourceFile,
			&a.ClassificationConfidence, &riskLevel, &a.ExpectedReturnPct,
			&isDuplicate, &matches, &isSelected, &isEdited); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan temp asset", err)
		}
		if quantity.Valid {
			a.Quantity = &quantity.Float64
		}
		price, err := scanNullAmount(purchasePrice)
		if err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan purchase price", err)
		}
		a.PurchasePrice = price
		if purchaseDate.Valid && purchaseDate.String != "" {
			a.PurchaseDate = &purchaseDate.String
		}
		if sourceFile.Valid {
			a.SourceFile = sourceFile.String
		}
		if riskLevel.Valid {
			a.RiskLevel = riskLevel.String
		}
		if matches.Valid {
			a.DuplicateMatches = unmarshalMatches(&matches.String)
		} else {
			a.DuplicateMatches = []DuplicateMatch{}
		}
		a.IsDuplicate = isDuplicate != 0
		a.IsSelected = isSelected != 0
		a.IsEdited = isEdited != 0
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate temp assets", err)
	}
	if assets == nil {
		assets = []TempAsset{}
	}
	return assets, nil
}

func sessionExpired(s *TempUploadSession) bool {
	expires, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return false
	}
	return time.Now().UTC().After(expires)
}
