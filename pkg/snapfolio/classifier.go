package snapfolio

import (
	"context"
	"sync"
)

// Categorization is the collaborator's classification for one asset.
type Categorization struct {
	AssetClass        string  `json:"asset_class"`
	AssetSubclass     string  `json:"asset_subclass"`
	Confidence        float64 `json:"confidence"`
	RiskLevel         string  `json:"risk_level,omitempty"`
	ExpectedReturnPct float64 `json:"expected_return_percentage,omitempty"`
}

// Categorizer assigns a taxonomy pair to a raw asset. Implementations call
// an external categorization service; the AI-backed client in this package
// is the default.
type Categorizer interface {
	Categorize(ctx context.Context, asset RawAsset, taxonomy []TaxonomyPair) (*Categorization, error)
}

type classifyOutcome struct {
	index  int
	result *Categorization
	err    error
}

// classifyAssets categorizes merged raw assets with bounded concurrency.
// Results are re-associated with their originating asset by index, never by
// completion order. Assets the collaborator cannot classify are dropped;
// the call fails only when zero assets classify.
func (c *Core) classifyAssets(ctx context.Context, raws []RawAsset) ([]ClassifiedAsset, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	if c.categorizer == nil {
		return nil, NewError(ErrCodeFatal, "no categorizer configured")
	}

	taxonomy, err := c.activeTaxonomy()
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, c.pipeline.ClassifyConcurrency)
	ch := make(chan classifyOutcome, len(raws))
	var wg sync.WaitGroup

	for i, raw := range raws {
		wg.Add(1)
		go func(idx int, asset RawAsset) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := c.categorizer.Categorize(ctx, asset, taxonomy)
			ch <- classifyOutcome{index: idx, result: result, err: err}
		}(i, raw)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	categorized := make([]*Categorization, len(raws))
	for outcome := range ch {
		if outcome.err != nil {
			c.logger.Warn("asset classification failed",
				"asset", raws[outcome.index].Name, "err", outcome.err)
			continue
		}
		categorized[outcome.index] = outcome.result
	}

	var classified []ClassifiedAsset
	for i, cat := range categorized {
		if cat == nil {
			continue
		}
		normalized, ok := normalizeCategorization(*cat, taxonomy)
		if !ok {
			c.logger.Warn("categorizer returned a pair outside the active taxonomy",
				"asset", raws[i].Name, "class", cat.AssetClass, "subclass", cat.AssetSubclass)
			continue
		}
		classified = append(classified, ClassifiedAsset{
			RawAsset:                 raws[i],
			AssetClass:               normalized.AssetClass,
			AssetSubclass:            normalized.AssetSubclass,
			ClassificationConfidence: normalized.Confidence,
			RiskLevel:                normalized.RiskLevel,
			ExpectedReturnPct:        normalized.ExpectedReturnPct,
		})
	}

	if len(classified) == 0 {
		return nil, NewError(ErrCodeFatal, "no assets could be classified")
	}
	return classified, nil
}

// normalizeCategorization validates the collaborator output against the
// active taxonomy and fills class-level defaults for omitted fields.
func normalizeCategorization(cat Categorization, taxonomy []TaxonomyPair) (Categorization, bool) {
	cat.AssetClass = normalizeAssetClass(cat.AssetClass)
	cat.AssetSubclass = normalizeAssetClass(cat.AssetSubclass)
	if !taxonomyContains(taxonomy, cat.AssetClass, cat.AssetSubclass) {
		return cat, false
	}
	if cat.Confidence < 0 {
		cat.Confidence = 0
	}
	if cat.Confidence > 1 {
		cat.Confidence = 1
	}
	if defaults, ok := classDefaults[cat.AssetClass]; ok {
		if cat.RiskLevel == "" {
			cat.RiskLevel = defaults.RiskLevel
		}
		if cat.ExpectedReturnPct == 0 {
			cat.ExpectedReturnPct = defaults.ExpectedReturnPct
		}
	}
	return cat, true
}
