package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/oofd-receipts/models"
	"github.com/shopspring/decimal"
)

const (
	nbsp          = "\u00a0"
	currencyGlyph = "₸"
)

// ValidateReceipt ensures the extractor produced a complete receipt.
func ValidateReceipt(r *models.Receipt) error {
	if r == nil {
		return fmt.Errorf("receipt is nil")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("receipt missing timestamp")
	}
	if strings.TrimSpace(r.Seller) == "" {
		return fmt.Errorf("receipt missing seller")
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("receipt from %s has no items", r.Seller)
	}
	if !r.Total.Equal(models.SumTotals(r.Items)) {
		return fmt.Errorf("receipt total %s does not match item totals", r.Total)
	}
	return nil
}

// NormalizeName drops non-breaking spaces and surrounding whitespace.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, nbsp, "")
	return strings.TrimSpace(name)
}

// NormalizePrice removes non-breaking spaces, the tenge glyph and
// surrounding whitespace. Decimal commas are left alone.
func NormalizePrice(price string) string {
	price = strings.ReplaceAll(price, nbsp, "")
	price = strings.ReplaceAll(price, currencyGlyph, "")
	return strings.TrimSpace(price)
}

// NormalizeTotal is NormalizePrice plus a comma to period swap.
func NormalizeTotal(total string) string {
	return strings.ReplaceAll(NormalizePrice(total), ",", ".")
}

// ParseIndex reads a row number such as "3.".
func ParseIndex(text string) (int, error) {
	value := strings.TrimSuffix(strings.TrimSpace(text), ".")
	index, err := strconv.Atoi(value)
	if err != nil {
		return 0, &FormatError{Field: "index", Value: text, Err: err}
	}
	if index < 1 {
		return 0, &FormatError{Field: "index", Value: text, Err: errNotPositive}
	}
	return index, nil
}

// ParseAmount parses an already normalized non-negative decimal.
func ParseAmount(field, text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, &FormatError{Field: field, Value: text, Err: err}
	}
	if amount.IsNegative() {
		return decimal.Zero, &FormatError{Field: field, Value: text, Err: errNegative}
	}
	return amount, nil
}
