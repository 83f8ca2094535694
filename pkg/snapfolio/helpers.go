package snapfolio

import (
	"encoding/json"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

func todayISO() string {
	return time.Now().Format(isoDate)
}

func parseISODate(value string) (time.Time, error) {
	return time.Parse(isoDate, strings.TrimSpace(value))
}

func normalizeAssetClass(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}

func isValidAssetClass(class string) bool {
	class = normalizeAssetClass(class)
	for _, c := range AssetClasses {
		if c == class {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// marshalStrings encodes a string slice as a JSON column value.
// Returns nil for empty slices so the column stays NULL.
func marshalStrings(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func unmarshalStrings(raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal([]byte(*raw), &values); err != nil {
		return []string{}
	}
	return values
}

func marshalMatches(matches []DuplicateMatch) *string {
	if len(matches) == 0 {
		return nil
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func unmarshalMatches(raw *string) []DuplicateMatch {
	if raw == nil || *raw == "" {
		return []DuplicateMatch{}
	}
	var matches []DuplicateMatch
	if err := json.Unmarshal([]byte(*raw), &matches); err != nil {
		return []DuplicateMatch{}
	}
	return matches
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
