package snapfolio

import (
	"strings"
)

const taxonomyCacheKey = "taxonomy:active"

// GetTaxonomy returns all taxonomy pairs, active and inactive.
func (c *Core) GetTaxonomy() ([]TaxonomyPair, error) {
	rows, err := c.db.Query(
		"SELECT id, asset_class, asset_subclass, is_active FROM asset_taxonomy ORDER BY asset_class, asset_subclass")
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "query taxonomy", err)
	}
	defer rows.Close()

	var pairs []TaxonomyPair
	for rows.Next() {
		var p TaxonomyPair
		var active int
		if err := rows.Scan(&p.ID, &p.AssetClass, &p.AssetSubclass, &active); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan taxonomy row", err)
		}
		p.IsActive = active != 0
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "iterate taxonomy rows", err)
	}
	if pairs == nil {
		pairs = []TaxonomyPair{}
	}
	return pairs, nil
}

// activeTaxonomy returns the active taxonomy pairs, cached with a short TTL
// since the table changes rarely but is read on every classification batch.
func (c *Core) activeTaxonomy() ([]TaxonomyPair, error) {
	if cached, ok := c.taxCache.Get(taxonomyCacheKey); ok {
		if pairs, ok := cached.([]TaxonomyPair); ok {
			return pairs, nil
		}
	}

	all, err := c.GetTaxonomy()
	if err != nil {
		return nil, WrapError(ErrCodeFatal, "load active taxonomy", err)
	}
	var active []TaxonomyPair
	for _, p := range all {
		if p.IsActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, NewError(ErrCodeFatal, "no active taxonomy pairs configured")
	}
	c.taxCache.SetDefault(taxonomyCacheKey, active)
	return active, nil
}

// AddTaxonomyPair registers a new (class, subclass) pair.
func (c *Core) AddTaxonomyPair(assetClass, assetSubclass string) (int64, error) {
	assetClass = normalizeAssetClass(assetClass)
	assetSubclass = strings.ToLower(strings.TrimSpace(assetSubclass))
	if !isValidAssetClass(assetClass) {
		return 0, NewError(ErrCodeValidation, "invalid asset class: "+assetClass)
	}
	if assetSubclass == "" {
		return 0, NewError(ErrCodeValidation, "asset subclass is required")
	}

	result, err := c.db.Exec(
		"INSERT INTO asset_taxonomy (asset_class, asset_subclass) VALUES (?, ?)",
		assetClass, assetSubclass)
	if err != nil {
		return 0, WrapError(ErrCodeDatabase, "insert taxonomy pair", err)
	}
	c.taxCache.Delete(taxonomyCacheKey)
	return result.LastInsertId()
}

// SetTaxonomyPairActive toggles a pair's active flag. Inactive pairs are
// excluded from classification but stay valid on historical assets.
func (c *Core) SetTaxonomyPairActive(id int64, active bool) error {
	result, err := c.db.Exec(
		"UPDATE asset_taxonomy SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return WrapError(ErrCodeDatabase, "update taxonomy pair", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError(ErrCodeDatabase, "update taxonomy pair", err)
	}
	if affected == 0 {
		return NewError(ErrCodeNotFound, "taxonomy pair not found")
	}
	c.taxCache.Delete(taxonomyCacheKey)
	return nil
}

func taxonomyContains(pairs []TaxonomyPair, assetClass, assetSubclass string) bool {
	for _, p := range pairs {
		if p.AssetClass == assetClass && p.AssetSubclass == assetSubclass {
			return true
		}
	}
	return false
}
