// Package models defines data structures for scraped receipts.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one row of a receipt's itemized table.
type LineItem struct {
	Index    int             `json:"index"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// Receipt is a parsed purchase receipt. Total is always the sum of the
// item totals, never the figure printed on the page.
type Receipt struct {
	Timestamp time.Time       `json:"timestamp"`
	Seller    string          `json:"seller"`
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
}

// NewReceipt assembles a receipt and computes its total from items.
func NewReceipt(ts time.Time, seller string, items []LineItem) Receipt {
	return Receipt{
		Timestamp: ts,
		Seller:    seller,
		Items:     items,
		Total:     SumTotals(items),
	}
}

// SumTotals adds up the line totals.
func SumTotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total)
	}
	return total
}

// Record is a receipt together with where and when it was fetched.
type Record struct {
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`
	Receipt   Receipt   `json:"receipt"`
}

// BatchResult holds the overall result of a batch run.
type BatchResult struct {
	Records      []*Record
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	SkippedCount int
	FailedInputs []string
	ErrorsByType map[string]int
}
