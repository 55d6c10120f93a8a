// Package parser turns a rendered oofd.kz receipt page into a models.Receipt.
//
// The page is an Angular application. Once rendered it carries an
// <app-ticket> element with a nested <app-ticket-items> table whose rows are
// marked with the classes "row row-position", and an <app-ticket-header>
// holding the issue date followed by a paragraph with the seller name.
package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/oofd-receipts/models"
	"golang.org/x/net/html"
)

// Selectors for the receipt markup.
const (
	TicketSelector = "app-ticket"
	ItemsSelector  = "app-ticket-items"
	RowSelector    = "div.row.row-position"
	HeaderSelector = "app-ticket-header"
	sellerTag      = "p"
)

// Row cell positions. Position 2 holds a column that is not part of the
// receipt record and is never read.
const (
	cellIndex = iota
	cellName
	_
	cellPrice
	cellQuantity
	cellTotal
	cellCount
)

const timestampLayout = "02.01.2006 15:04"

var timestampPattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}`)

// Options tune extraction.
type Options struct {
	// Location the receipt timestamp is interpreted in. Defaults to UTC.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Extract parses rendered receipt HTML from r.
func Extract(r io.Reader, opts Options) (*models.Receipt, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return ExtractDocument(doc, opts)
}

// ExtractString is Extract over an in-memory page.
func ExtractString(page string, opts Options) (*models.Receipt, error) {
	return Extract(strings.NewReader(page), opts)
}

// ExtractDocument builds a receipt from an already parsed document. Either a
// complete receipt or an error is returned, never a partial result.
func ExtractDocument(doc *goquery.Document, opts Options) (*models.Receipt, error) {
	ticket := doc.Find(TicketSelector).First()
	if ticket.Length() == 0 {
		return nil, missing(TicketSelector)
	}
	container := ticket.Find(ItemsSelector).First()
	if container.Length() == 0 {
		return nil, missing(ItemsSelector)
	}

	items, err := extractItems(container)
	if err != nil {
		return nil, err
	}

	header := doc.Find(HeaderSelector).First()
	if header.Length() == 0 {
		return nil, missing(HeaderSelector)
	}
	ts, err := extractTimestamp(header, opts.location())
	if err != nil {
		return nil, err
	}
	seller, err := extractSeller(doc, header)
	if err != nil {
		return nil, err
	}

	receipt := models.NewReceipt(ts, seller, items)
	return &receipt, nil
}

func extractItems(container *goquery.Selection) ([]models.LineItem, error) {
	rows := container.Find(RowSelector)
	if rows.Length() == 0 {
		return nil, missing(RowSelector)
	}

	items := make([]models.LineItem, 0, rows.Length())
	var rowErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		item, err := extractItem(rowCells(row))
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i+1, err)
			return false
		}
		items = append(items, item)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return items, nil
}

func rowCells(row *goquery.Selection) []string {
	return row.Children().Map(func(_ int, cell *goquery.Selection) string {
		return cell.Text()
	})
}

func extractItem(cells []string) (models.LineItem, error) {
	if len(cells) < cellCount {
		return models.LineItem{}, &StructureError{
			Element: RowSelector + " cells",
			Err:     fmt.Errorf("got %d cells, want %d", len(cells), cellCount),
		}
	}

	index, err := ParseIndex(cells[cellIndex])
	if err != nil {
		return models.LineItem{}, err
	}
	price, err := ParseAmount("price", NormalizePrice(cells[cellPrice]))
	if err != nil {
		return models.LineItem{}, err
	}
	quantity, err := ParseAmount("quantity", strings.TrimSpace(cells[cellQuantity]))
	if err != nil {
		return models.LineItem{}, err
	}
	total, err := ParseAmount("total", NormalizeTotal(cells[cellTotal]))
	if err != nil {
		return models.LineItem{}, err
	}

	return models.LineItem{
		Index:    index,
		Name:     NormalizeName(cells[cellName]),
		Price:    price,
		Quantity: quantity,
		Total:    total,
	}, nil
}

// ParseTimestamp finds the first DD.MM.YYYY HH:MM substring in text.
func ParseTimestamp(text string, loc *time.Location) (time.Time, error) {
	match := timestampPattern.FindString(text)
	if match == "" {
		return time.Time{}, missing(HeaderSelector + " timestamp")
	}
	ts, err := time.ParseInLocation(timestampLayout, match, loc)
	if err != nil {
		return time.Time{}, &FormatError{Field: "timestamp", Value: match, Err: err}
	}
	return ts, nil
}

func extractTimestamp(header *goquery.Selection, loc *time.Location) (time.Time, error) {
	return ParseTimestamp(header.Text(), loc)
}

// extractSeller reads the first paragraph at or after the header in document
// order and returns its first non-blank direct text node.
func extractSeller(doc *goquery.Document, header *goquery.Selection) (string, error) {
	headerNode := header.Get(0)
	seenHeader := false
	var paragraph *html.Node
	for _, node := range doc.Find(HeaderSelector + ", " + sellerTag).Nodes {
		if node == headerNode {
			seenHeader = true
			continue
		}
		if seenHeader && node.Data == sellerTag {
			paragraph = node
			break
		}
	}
	if paragraph == nil {
		return "", missing("seller paragraph")
	}

	for child := paragraph.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.TextNode {
			continue
		}
		if seller := strings.TrimSpace(child.Data); seller != "" {
			return seller, nil
		}
	}
	return "", missing("seller text")
}
