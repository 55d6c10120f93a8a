package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/oofd-receipts/models"
	"github.com/shopspring/decimal"
)

func TestValidateReceipt(t *testing.T) {
	items := []models.LineItem{{Index: 1, Name: "Хлеб", Price: dec("150"), Quantity: dec("1"), Total: dec("150")}}
	valid := models.NewReceipt(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), "ТОО Магнум", items)

	tests := []struct {
		name    string
		receipt *models.Receipt
		wantErr bool
	}{
		{name: "valid receipt", receipt: &valid, wantErr: false},
		{name: "nil receipt", receipt: nil, wantErr: true},
		{
			name:    "missing seller",
			receipt: &models.Receipt{Timestamp: valid.Timestamp, Items: items, Total: valid.Total},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			receipt: &models.Receipt{Seller: "S", Items: items, Total: valid.Total},
			wantErr: true,
		},
		{
			name:    "no items",
			receipt: &models.Receipt{Timestamp: valid.Timestamp, Seller: "S"},
			wantErr: true,
		},
		{
			name:    "total mismatch",
			receipt: &models.Receipt{Timestamp: valid.Timestamp, Seller: "S", Items: items, Total: dec("151")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReceipt(tt.receipt)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReceipt() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeTotal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nbsp thousands and comma", input: "1\u00a0234,50\u00a0₸", expected: "1234.50"},
		{name: "plain space before glyph", input: " 99,90 ₸ ", expected: "99.90"},
		{name: "already clean", input: "25.99", expected: "25.99"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeTotal(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTotal(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with currency glyph", input: "515.00 ₸", expected: "515.00"},
		{name: "nbsp thousands", input: "1\u00a0234.50\u00a0₸", expected: "1234.50"},
		{name: "comma kept", input: "10,50 ₸", expected: "10,50"},
		{name: "with whitespace", input: "  10  ", expected: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePrice(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nbsp removed", input: "Сыр\u00a0Гауда", expected: "СырГауда"},
		{name: "surrounding whitespace", input: "\n  Кефир 1%  ", expected: "Кефир 1%"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "1.", want: 1},
		{input: " 12. ", want: 12},
		{input: "7", want: 7},
		{input: "", wantErr: true},
		{input: "1.2.", wantErr: true},
		{input: "-3.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIndex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIndex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseIndex(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAmountLineTotal(t *testing.T) {
	got, err := ParseAmount("total", NormalizeTotal("1\u00a0234,50\u00a0₸"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1234.50")) {
		t.Fatalf("amount = %s, want 1234.50", got)
	}
}
