package snapfolio

// mergeExtractions concatenates raw assets from successful extractions in
// file-processing order. Each asset already carries its source file tag.
// Deduplication is deliberately left to the duplicate detector.
func mergeExtractions(results []ExtractionResult) []RawAsset {
	var merged []RawAsset
	for _, r := range results {
		if !r.Success {
			continue
		}
		merged = append(merged, r.Assets...)
	}
	return merged
}
