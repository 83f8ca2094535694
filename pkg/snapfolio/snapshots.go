package snapfolio

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

const snapshotColumns = `
	id, user_id, snapshot_date, statement_date, snapshot_name,
	total_networth, equity_total, debt_total, cash_total, real_estate_total, other_total,
	source_type, source_files, notes, created_at`

// ListSnapshots returns the user's snapshots, newest first.
func (c *Core) ListSnapshots(userID string, limit int) ([]AssetSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.Query(
		"SELECT "+snapshotColumns+" FROM asset_snapshots WHERE user_id = ? ORDER BY snapshot_date DESC, created_at DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query snapshots", err)
	}
	defer rows.Close()

	var snapshots []AssetSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate snapshot rows", err)
	}
	if snapshots == nil {
		snapshots = []AssetSnapshot{}
	}
	return snapshots, nil
}

// GetSnapshot returns one snapshot owned by the user, with its assets.
func (c *Core) GetSnapshot(userID, snapshotID string) (*AssetSnapshot, []Asset, error) {
	row := c.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM asset_snapshots WHERE id = ? AND user_id = ?",
		snapshotID, userID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil, NewError(ErrCodeNotFound, "snapshot not found")
	}
	if err != nil {
		return nil, nil, err
	}

	assets, err := c.snapshotAssets(snapshotID)
	if err != nil {
		return nil, nil, err
	}
	return &snap, assets, nil
}

// DeleteSnapshot removes a snapshot and, via cascade, its assets.
func (c *Core) DeleteSnapshot(userID, snapshotID string) error {
	result, err := c.db.Exec(
		"DELETE FROM asset_snapshots WHERE id = ? AND user_id = ?", snapshotID, userID)
	if err != nil {
		return WrapError(ErrCodeDatabase, "delete snapshot", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError(ErrCodeDatabase, "delete snapshot", err)
	}
	if affected == 0 {
		return NewError(ErrCodeNotFound, "snapshot not found")
	}
	return nil
}

func (c *Core) snapshotAssets(snapshotID string) ([]Asset, error) {
	rows, err := c.db.Query(`
		SELECT id, snapshot_id, user_id, name, asset_class, asset_subclass,
		       current_value, quantity, purchase_price, purchase_date,
		       source_file, is_duplicate, created_at
		FROM assets WHERE snapshot_id = ? ORDER BY id`, snapshotID)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query snapshot assets", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		var quantity sql.NullFloat64
		var purchasePrice any
		var purchaseDate, sourceFile, createdAt sql.NullString
		var isDuplicate int
		if err := rows.Scan(&a.ID, &a.SnapshotID, &a.UserID, &a.Name, &a.AssetClass, &a.AssetSubclass,
			&a.CurrentValue, &quantity, &purchasePrice, &purchaseDate,
			&sourceFile, &isDuplicate, &createdAt); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan asset row", err)
		}
		if quantity.Valid {
			a.Quantity = &quantity.Float64
		}
		price, err := scanNullAmount(purchasePrice)
		if err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan purchase price", err)
		}
		a.PurchasePrice = price
		if purchaseDate.Valid {
			a.PurchaseDate = &purchaseDate.String
		}
		if sourceFile.Valid {
			a.SourceFile = sourceFile.String
		}
		if createdAt.Valid {
			a.CreatedAt = &createdAt.String
		}
		a.IsDuplicate = isDuplicate != 0
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate asset rows", err)
	}
	if assets == nil {
		assets = []Asset{}
	}
	return assets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (AssetSnapshot, error) {
	var snap AssetSnapshot
	var statementDate, sourceFiles, notes sql.NullString
	err := row.Scan(&snap.ID, &snap.UserID, &snap.SnapshotDate, &statementDate, &snap.SnapshotName,
		&snap.TotalNetworth, &snap.ClassTotals.Equity, &snap.ClassTotals.Debt, &snap.ClassTotals.Cash,
		&snap.ClassTotals.RealEstate, &snap.ClassTotals.Other,
		&snap.SourceType, &sourceFiles, &notes, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return snap, err
	}
	if err != nil {
		return snap, WrapError(ErrCodeDatabase, "scan snapshot row", err)
	}
	if statementDate.Valid && statementDate.String != "" {
		snap.StatementDate = &statementDate.String
	}
	if sourceFiles.Valid {
		snap.SourceFiles = unmarshalStrings(&sourceFiles.String)
	} else {
		snap.SourceFiles = []string{}
	}
	if notes.Valid {
		snap.Notes = &notes.String
	}
	return snap, nil
}

// recomputeSnapshotTotals recalculates per-class totals and total networth
// from scratch over the snapshot's non-duplicate assets. Recomputing the full
// set instead of applying deltas keeps totals drift-free across merges.
func recomputeSnapshotTotals(tx *sql.Tx, snapshotID string) error {
	rows, err := tx.Query(`
		SELECT asset_class, current_value
		FROM assets
		WHERE snapshot_id = ? AND is_duplicate = 0`, snapshotID)
	if err != nil {
		return WrapError(ErrCodeDatabase, "query assets for totals", err)
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	networth := decimal.Zero
	for rows.Next() {
		var class string
		var value Amount
		if err := rows.Scan(&class, &value); err != nil {
			return WrapError(ErrCodeDatabase, "scan asset value", err)
		}
		totals[class] = totals[class].Add(value.Decimal)
		networth = networth.Add(value.Decimal)
	}
	if err := rows.Err(); err != nil {
		return WrapError(ErrCodeDatabase, "iterate asset values", err)
	}

	if _, err := tx.Exec(`
		UPDATE asset_snapshots
		SET total_networth = ?, equity_total = ?, debt_total = ?, cash_total = ?,
		    real_estate_total = ?, other_total = ?
		WHERE id = ?`,
		Amount{networth},
		Amount{totals[AssetClassEquity]},
		Amount{totals[AssetClassDebt]},
		Amount{totals[AssetClassCash]},
		Amount{totals[AssetClassRealEstate]},
		Amount{totals[AssetClassOther]},
		snapshotID,
	); err != nil {
		return WrapError(ErrCodeDatabase, "update snapshot totals", err)
	}
	return nil
}
