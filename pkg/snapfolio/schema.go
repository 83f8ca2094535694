package snapfolio

import (
	"database/sql"
	"fmt"
)

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS asset_taxonomy (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_class TEXT NOT NULL CHECK(asset_class IN ('equity', 'debt', 'cash', 'real_estate', 'other')),
			asset_subclass TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			UNIQUE(asset_class, asset_subclass)
		)
	`); err != nil {
		return err
	}

	var taxonomyCount int
	if err := tx.QueryRow("SELECT COUNT(*) FROM asset_taxonomy").Scan(&taxonomyCount); err != nil {
		return err
	}
	if taxonomyCount == 0 {
		defaults := []struct {
			Class    string
			Subclass string
		}{
			{"equity", "stocks"},
			{"equity", "mutual_funds"},
			{"equity", "etf"},
			{"debt", "bonds"},
			{"debt", "fixed_deposit"},
			{"debt", "ppf"},
			{"cash", "savings_account"},
			{"cash", "liquid_funds"},
			{"real_estate", "residential"},
			{"real_estate", "reit"},
			{"other", "gold"},
			{"other", "crypto"},
			{"other", "uncategorized"},
		}
		for _, d := range defaults {
			if _, err := tx.Exec(
				"INSERT INTO asset_taxonomy (asset_class, asset_subclass) VALUES (?, ?)",
				d.Class, d.Subclass,
			); err != nil {
				return err
			}
		}
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS asset_snapshots (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			snapshot_date DATE NOT NULL,
			statement_date DATE,
			snapshot_name TEXT NOT NULL,
			total_networth REAL NOT NULL DEFAULT 0,
			equity_total REAL NOT NULL DEFAULT 0,
			debt_total REAL NOT NULL DEFAULT 0,
			cash_total REAL NOT NULL DEFAULT 0,
			real_estate_total REAL NOT NULL DEFAULT 0,
			other_total REAL NOT NULL DEFAULT 0,
			source_type TEXT NOT NULL DEFAULT 'manual',
			source_files TEXT,
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS assets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			asset_class TEXT NOT NULL CHECK(asset_class IN ('equity', 'debt', 'cash', 'real_estate', 'other')),
			asset_subclass TEXT NOT NULL,
			current_value REAL NOT NULL,
			quantity REAL,
			purchase_price REAL,
			purchase_date DATE,
			source_file TEXT,
			is_duplicate INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(snapshot_id) REFERENCES asset_snapshots(id) ON DELETE CASCADE
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS temp_upload_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			file_names TEXT,
			statement_date DATE,
			statement_date_confidence TEXT,
			statement_date_source TEXT,
			suggested_snapshot_name TEXT,
			matched_snapshot_id TEXT,
			merge_decision TEXT,
			status TEXT NOT NULL DEFAULT 'in_review' CHECK(status IN ('in_review', 'completed', 'cancelled')),
			expires_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS temp_assets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			asset_class TEXT NOT NULL,
			asset_subclass TEXT NOT NULL,
			current_value REAL NOT NULL,
			quantity REAL,
			purchase_price REAL,
			purchase_date DATE,
			source_file TEXT,
			classification_confidence REAL NOT NULL DEFAULT 0,
			risk_level TEXT,
			expected_return_pct REAL NOT NULL DEFAULT 0,
			is_duplicate INTEGER NOT NULL DEFAULT 0,
			duplicate_matches TEXT,
			is_selected INTEGER NOT NULL DEFAULT 1,
			is_edited INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(session_id) REFERENCES temp_upload_sessions(id) ON DELETE CASCADE
		)
	`); err != nil {
		return err
	}

	// Earlier schema versions stored the merge decision only on temp assets.
	if hasMergeDecision, err := tableHasColumn(tx, "temp_upload_sessions", "merge_decision"); err != nil {
		return err
	} else if !hasMergeDecision {
		if err := exec(tx, "ALTER TABLE temp_upload_sessions ADD COLUMN merge_decision TEXT"); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_snapshots_user ON asset_snapshots(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_snapshots_statement_date ON asset_snapshots(statement_date)",
		"CREATE INDEX IF NOT EXISTS idx_assets_snapshot ON assets(snapshot_id)",
		"CREATE INDEX IF NOT EXISTS idx_assets_user ON assets(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_user ON temp_upload_sessions(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires ON temp_upload_sessions(expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_temp_assets_session ON temp_assets(session_id)",
	}
	for _, idx := range indexes {
		if err := exec(tx, idx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func exec(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

func tableExists(tx *sql.Tx, table string) (bool, error) {
	var name string
	err := tx.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func tableHasColumn(tx *sql.Tx, table, column string) (bool, error) {
	exists, err := tableExists(tx, table)
	if err != nil || !exists {
		return false, err
	}
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
