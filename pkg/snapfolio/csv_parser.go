package snapfolio

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// csvParser is the built-in DocumentParser for CSV holding statements.
// Columns are located by header name, so exports from different providers
// work as long as they carry a name and a value column.
type csvParser struct{}

func newCSVParser() *csvParser {
	return &csvParser{}
}

var csvHeaderAliases = map[string][]string{
	"name":           {"name", "asset", "asset_name", "holding", "description", "scheme_name"},
	"value":          {"value", "current_value", "amount", "market_value", "balance"},
	"quantity":       {"quantity", "units", "shares", "qty"},
	"purchase_price": {"purchase_price", "avg_cost", "cost", "buy_price"},
	"purchase_date":  {"purchase_date", "buy_date", "acquired"},
	"statement_date": {"statement_date", "as_of", "as_of_date", "valuation_date"},
}

// ParseDocument implements DocumentParser.
func (p *csvParser) ParseDocument(_ context.Context, doc Document) (*ParsedDocument, error) {
	reader := csv.NewReader(bytes.NewReader(doc.Data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := mapCSVColumns(header)
	nameIdx, ok := columns["name"]
	if !ok {
		return nil, fmt.Errorf("csv has no recognizable name column")
	}
	valueIdx, ok := columns["value"]
	if !ok {
		return nil, fmt.Errorf("csv has no recognizable value column")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv records: %w", err)
	}

	var assets []RawAsset
	var statementDate string
	for _, record := range records {
		name := fieldAt(record, nameIdx)
		if name == "" {
			continue
		}
		value, err := parseCSVNumber(fieldAt(record, valueIdx))
		if err != nil {
			continue
		}

		asset := RawAsset{Name: name, CurrentValue: NewAmount(value)}
		if idx, ok := columns["quantity"]; ok {
			if q, err := parseCSVNumber(fieldAt(record, idx)); err == nil {
				asset.Quantity = &q
			}
		}
		if idx, ok := columns["purchase_price"]; ok {
			if pp, err := parseCSVNumber(fieldAt(record, idx)); err == nil {
				price := NewAmount(pp)
				asset.PurchasePrice = &price
			}
		}
		if idx, ok := columns["purchase_date"]; ok {
			if raw := fieldAt(record, idx); raw != "" {
				if _, err := parseISODate(raw); err == nil {
					date := raw
					asset.PurchaseDate = &date
				}
			}
		}
		assets = append(assets, asset)

		if statementDate == "" {
			if idx, ok := columns["statement_date"]; ok {
				if raw := fieldAt(record, idx); raw != "" {
					if _, err := parseISODate(raw); err == nil {
						statementDate = raw
					}
				}
			}
		}
	}

	parsed := &ParsedDocument{Assets: assets}
	if statementDate != "" {
		parsed.StatementDate = &DateGuess{
			Date:       statementDate,
			Confidence: DateConfidenceHigh,
			Source:     DateSourceDocument,
		}
	}
	return parsed, nil
}

func mapCSVColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, raw := range header {
		normalized := strings.ToLower(strings.TrimSpace(raw))
		normalized = strings.ReplaceAll(normalized, " ", "_")
		for field, aliases := range csvHeaderAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			if contains(aliases, normalized) {
				columns[field] = i
			}
		}
	}
	return columns
}

func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseCSVNumber accepts plain and comma-grouped numbers ("1,00,000.50").
func parseCSVNumber(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(cleaned, 64)
}
