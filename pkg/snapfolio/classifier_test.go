package snapfolio

import (
	"context"
	"fmt"
	"testing"
)

func rawAssets(names ...string) []RawAsset {
	raws := make([]RawAsset, len(names))
	for i, name := range names {
		raws[i] = RawAsset{Name: name, CurrentValue: NewAmount(1000), SourceFile: "statement.csv"}
	}
	return raws
}

func TestClassifyAssetsPreservesOrder(t *testing.T) {
	cat := &fakeCategorizer{byName: map[string]Categorization{
		"A": {AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.9},
		"B": {AssetClass: "debt", AssetSubclass: "bonds", Confidence: 0.8},
		"C": {AssetClass: "cash", AssetSubclass: "savings_account", Confidence: 0.7},
	}}
	core, cleanup := setupTestDBWithOptions(t, Options{Categorizer: cat})
	defer cleanup()

	classified, err := core.classifyAssets(context.Background(), rawAssets("A", "B", "C"))
	if err != nil {
		t.Fatalf("classifyAssets failed: %v", err)
	}
	if len(classified) != 3 {
		t.Fatalf("expected 3 classified assets, got %d", len(classified))
	}
	// Results re-associate by input index regardless of goroutine completion order.
	want := []string{"equity", "debt", "cash"}
	for i, asset := range classified {
		if asset.AssetClass != want[i] {
			t.Errorf("asset %d class = %q, want %q", i, asset.AssetClass, want[i])
		}
	}
}

func TestClassifyAssetsDropsFailures(t *testing.T) {
	cat := &fakeCategorizer{
		byName: map[string]Categorization{
			"Good": {AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.9},
		},
		fail: map[string]bool{"Bad": true},
	}
	core, cleanup := setupTestDBWithOptions(t, Options{Categorizer: cat})
	defer cleanup()

	classified, err := core.classifyAssets(context.Background(), rawAssets("Good", "Bad"))
	if err != nil {
		t.Fatalf("classifyAssets failed: %v", err)
	}
	if len(classified) != 1 || classified[0].Name != "Good" {
		t.Errorf("failed asset should be dropped: %+v", classified)
	}
}

func TestClassifyAssetsAllFailing(t *testing.T) {
	cat := &fakeCategorizer{fail: map[string]bool{"A": true, "B": true}}
	core, cleanup := setupTestDBWithOptions(t, Options{Categorizer: cat})
	defer cleanup()

	_, err := core.classifyAssets(context.Background(), rawAssets("A", "B"))
	assertErrorCode(t, err, ErrCodeFatal)
}

func TestClassifyAssetsRejectsUnknownTaxonomy(t *testing.T) {
	cat := &fakeCategorizer{byName: map[string]Categorization{
		"Weird": {AssetClass: "equity", AssetSubclass: "meme_coins", Confidence: 0.9},
		"Fine":  {AssetClass: "equity", AssetSubclass: "stocks", Confidence: 0.9},
	}}
	core, cleanup := setupTestDBWithOptions(t, Options{Categorizer: cat})
	defer cleanup()

	classified, err := core.classifyAssets(context.Background(), rawAssets("Weird", "Fine"))
	if err != nil {
		t.Fatalf("classifyAssets failed: %v", err)
	}
	if len(classified) != 1 || classified[0].Name != "Fine" {
		t.Errorf("off-taxonomy result should be dropped: %+v", classified)
	}
}

func TestClassifyAssetsBoundedConcurrency(t *testing.T) {
	probe := &concurrencyProbe{limit: 5}
	core, cleanup := setupTestDBWithOptions(t, Options{Categorizer: probe})
	defer cleanup()

	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("asset-%d", i)
	}
	if _, err := core.classifyAssets(context.Background(), rawAssets(names...)); err != nil {
		t.Fatalf("classifyAssets failed: %v", err)
	}
	if probe.exceeded() {
		t.Errorf("observed %d concurrent calls, limit is %d", probe.peak(), probe.limit)
	}
}

func TestNormalizeCategorization(t *testing.T) {
	taxonomy := []TaxonomyPair{
		{AssetClass: "equity", AssetSubclass: "stocks"},
		{AssetClass: "debt", AssetSubclass: "bonds"},
	}

	cat, ok := normalizeCategorization(Categorization{
		AssetClass:    "Equity",
		AssetSubclass: " Stocks ",
		Confidence:    1.7,
	}, taxonomy)
	if !ok {
		t.Fatal("valid pair rejected")
	}
	if cat.Confidence != 1 {
		t.Errorf("confidence not clamped: %v", cat.Confidence)
	}
	if cat.RiskLevel != "high" || cat.ExpectedReturnPct != 12 {
		t.Errorf("class defaults not filled: %+v", cat)
	}

	if _, ok := normalizeCategorization(Categorization{
		AssetClass:    "cash",
		AssetSubclass: "savings_account",
	}, taxonomy); ok {
		t.Error("pair outside taxonomy should be rejected")
	}
}
