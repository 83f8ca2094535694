package snapfolio

import (
	"context"
	"testing"
)

func TestCSVParserHeaderAliases(t *testing.T) {
	doc := Document{
		FileName: "holdings.csv",
		Data: []byte("Asset Name,Market Value,Units,As Of Date\n" +
			"HDFC Bank Ltd,\"2,50,000.50\",100,2024-11-30\n" +
			"SBI PPF,150000,,2024-11-30\n"),
	}

	parsed, err := newCSVParser().ParseDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(parsed.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(parsed.Assets))
	}

	first := parsed.Assets[0]
	if first.Name != "HDFC Bank Ltd" {
		t.Errorf("name = %q", first.Name)
	}
	if !first.CurrentValue.Equal(NewAmount(250000.50).Decimal) {
		t.Errorf("comma-grouped value parsed wrong: %v", first.CurrentValue)
	}
	if first.Quantity == nil || *first.Quantity != 100 {
		t.Errorf("quantity = %v", first.Quantity)
	}

	if parsed.StatementDate == nil {
		t.Fatal("statement date column should produce a date guess")
	}
	if parsed.StatementDate.Date != "2024-11-30" {
		t.Errorf("statement date = %q", parsed.StatementDate.Date)
	}
	if parsed.StatementDate.Confidence != DateConfidenceHigh {
		t.Errorf("confidence = %q", parsed.StatementDate.Confidence)
	}
}

func TestCSVParserSkipsBadRows(t *testing.T) {
	doc := Document{
		FileName: "holdings.csv",
		Data: []byte("name,value\n" +
			"Good Fund,1000\n" +
			",500\n" +
			"No Value,\n" +
			"Bad Value,abc\n"),
	}

	parsed, err := newCSVParser().ParseDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(parsed.Assets) != 1 || parsed.Assets[0].Name != "Good Fund" {
		t.Errorf("expected only the valid row, got %+v", parsed.Assets)
	}
}

func TestCSVParserRejectsMissingColumns(t *testing.T) {
	doc := Document{
		FileName: "holdings.csv",
		Data:     []byte("foo,bar\n1,2\n"),
	}
	if _, err := newCSVParser().ParseDocument(context.Background(), doc); err == nil {
		t.Error("csv without name/value columns should fail")
	}
}

func TestParseCSVNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1000", 1000, false},
		{"1,00,000.50", 100000.50, false},
		{"  42.5  ", 42.5, false},
		{"", 0, true},
		{"n/a", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCSVNumber(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("parseCSVNumber(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseCSVNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
