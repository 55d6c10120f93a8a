package scraper

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the compact timestamp format of the t query parameter.
const TimeLayout = "20060102T150405"

// Params are the four values printed inside a receipt QR code.
type Params struct {
	ID       string          // i: receipt identifier
	FiscalID string          // f: fiscal sign / register identifier
	Total    decimal.Decimal // s: receipt total
	Time     time.Time       // t: issue time
}

// BuildURL embeds p into the lookup URL template. Identifiers are not
// validated or escaped; bad ones simply fail to resolve at the service.
func BuildURL(base string, p Params) string {
	return fmt.Sprintf("%s?i=%s&f=%s&s=%s&t=%s",
		base,
		p.ID,
		p.FiscalID,
		p.Total.StringFixed(1),
		p.Time.Format(TimeLayout),
	)
}

// ParseURL reads the lookup parameters back out of a receipt URL, such as
// the payload of a scanned QR code.
func ParseURL(raw string) (Params, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Params{}, fmt.Errorf("parse lookup url: %w", err)
	}
	query := u.Query()

	p := Params{
		ID:       query.Get("i"),
		FiscalID: query.Get("f"),
	}
	if p.ID == "" || p.FiscalID == "" {
		return Params{}, fmt.Errorf("lookup url %q is missing i or f", raw)
	}
	if p.Total, err = decimal.NewFromString(query.Get("s")); err != nil {
		return Params{}, fmt.Errorf("lookup url total: %w", err)
	}
	if p.Time, err = time.Parse(TimeLayout, query.Get("t")); err != nil {
		return Params{}, fmt.Errorf("lookup url time: %w", err)
	}
	return p, nil
}
