package snapfolio

import (
	"testing"
	"time"
)

func TestCreateReviewSessionRejectsEmpty(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := core.CreateReviewSession(CreateSessionRequest{UserID: "user-1"})
	assertErrorCode(t, err, ErrCodeValidation)

	_, err = core.CreateReviewSession(CreateSessionRequest{
		Assets: []ReviewableAsset{reviewable("HDFC Bank Ltd", "equity", "stocks", 250000)},
	})
	assertErrorCode(t, err, ErrCodeValidation)
}

func TestCreateAndGetReviewSession(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	date := "2024-11-30"
	sessionID, err := core.CreateReviewSession(CreateSessionRequest{
		UserID: "user-1",
		Assets: []ReviewableAsset{
			reviewable("HDFC Bank Ltd", "equity", "stocks", 250000),
			reviewable("SBI PPF", "debt", "ppf", 150000),
		},
		FileNames:     []string{"bank.csv", "broker.csv"},
		StatementDate: &date,
	})
	if err != nil {
		t.Fatalf("CreateReviewSession failed: %v", err)
	}

	session, assets, err := core.GetReviewSession("user-1", sessionID)
	if err != nil {
		t.Fatalf("GetReviewSession failed: %v", err)
	}
	if session.Status != SessionInReview {
		t.Errorf("status = %q, want in_review", session.Status)
	}
	if len(session.FileNames) != 2 {
		t.Errorf("file names = %v", session.FileNames)
	}
	if session.StatementDate == nil || *session.StatementDate != date {
		t.Errorf("statement date = %v", session.StatementDate)
	}
	if session.SuggestedSnapshotName != "Statement Nov 2024" {
		t.Errorf("suggested name = %q", session.SuggestedSnapshotName)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 staged assets, got %d", len(assets))
	}
	if assets[0].Name != "HDFC Bank Ltd" || !assets[0].IsSelected {
		t.Errorf("first staged asset wrong: %+v", assets[0])
	}
}

func TestGetReviewSessionIsolatesUsers(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	sessionID := testReviewSession(t, core, "user-1")
	_, _, err := core.GetReviewSession("user-2", sessionID)
	assertErrorCode(t, err, ErrCodeNotFound)
}

func TestGetReviewSessionExpired(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	sessionID := testReviewSession(t, core, "user-1")
	expireSession(t, core, sessionID)

	_, _, err := core.GetReviewSession("user-1", sessionID)
	assertErrorCode(t, err, ErrCodeExpired)
}

func TestUpdateReviewSessionPartialEdits(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	sessionID := testReviewSession(t, core, "user-1",
		reviewable("HDFC Bank Ltd", "equity", "stocks", 250000),
		reviewable("Gold ETF", "other", "gold", 80000),
	)
	_, staged, err := core.GetReviewSession("user-1", sessionID)
	if err != nil {
		t.Fatalf("GetReviewSession failed: %v", err)
	}

	newValue := NewAmount(260000)
	newClass := "debt"
	newSubclass := "bonds"
	deselect := false
	updated, err := core.UpdateReviewSession("user-1", sessionID, []TempAssetEdit{
		{AssetID: staged[0].ID, CurrentValue: &newValue, AssetClass: &newClass, AssetSubclass: &newSubclass},
		{AssetID: staged[1].ID, IsSelected: &deselect},
		{AssetID: 99999, IsSelected: &deselect}, // missing asset, skipped
	})
	if err != nil {
		t.Fatalf("UpdateReviewSession failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	session, staged, err := core.GetReviewSession("user-1", sessionID)
	if err != nil {
		t.Fatalf("GetReviewSession failed: %v", err)
	}
	if session.Status != SessionInReview {
		t.Errorf("edits must not change status, got %q", session.Status)
	}
	if !staged[0].CurrentValue.Equal(newValue.Decimal) {
		t.Errorf("value not updated: %v", staged[0].CurrentValue)
	}
	if staged[0].AssetClass != "debt" || staged[0].AssetSubclass != "bonds" {
		t.Errorf("class not updated: %s/%s", staged[0].AssetClass, staged[0].AssetSubclass)
	}
	if !staged[0].IsEdited {
		t.Error("content edit should set is_edited")
	}
	if staged[1].IsSelected {
		t.Error("deselect not applied")
	}
	if staged[1].IsEdited {
		t.Error("selection change alone must not set is_edited")
	}
}

func TestUpdateReviewSessionRejectsBadClass(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	sessionID := testReviewSession(t, core, "user-1")
	_, staged, _ := core.GetReviewSession("user-1", sessionID)

	bad := "crypto_moonshot"
	_, err := core.UpdateReviewSession("user-1", sessionID, []TempAssetEdit{
		{AssetID: staged[0].ID, AssetClass: &bad},
	})
	assertErrorCode(t, err, ErrCodeValidation)
}

func TestUpdateReviewSessionRejectsTerminal(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	sessionID := testReviewSession(t, core, "user-1")
	if err := core.Cancel("user-1", sessionID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	sel := false
	_, err := core.UpdateReviewSession("user-1", sessionID, []TempAssetEdit{
		{AssetID: 1, IsSelected: &sel},
	})
	assertErrorCode(t, err, ErrCodeConflict)
}

func TestCleanupExpiredSessions(t *testing.T) {
	core, cleanup := setupTestDB(t)
	defer cleanup()

	expired := testReviewSession(t, core, "user-1")
	expireSession(t, core, expired)
	live := testReviewSession(t, core, "user-1")

	removed, err := core.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, _, err := core.GetReviewSession("user-1", expired); !IsErrorCode(err, ErrCodeNotFound) {
		t.Errorf("expired session should be gone, got %v", err)
	}
	if _, _, err := core.GetReviewSession("user-1", live); err != nil {
		t.Errorf("live session should survive cleanup: %v", err)
	}

	// Staged assets go with the session.
	var orphans int
	if err := core.db.QueryRow(
		"SELECT COUNT(*) FROM temp_assets WHERE session_id = ?", expired).Scan(&orphans); err != nil {
		t.Fatalf("count temp assets: %v", err)
	}
	if orphans != 0 {
		t.Errorf("cleanup left %d orphaned temp assets", orphans)
	}
}

func expireSession(t *testing.T, core *Core, sessionID string) {
	t.Helper()
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	if _, err := core.db.Exec(
		"UPDATE temp_upload_sessions SET expires_at = ? WHERE id = ?", past, sessionID); err != nil {
		t.Fatalf("failed to expire session: %v", err)
	}
}
