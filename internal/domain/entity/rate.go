package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedRate is one row of a reconstructed series: the rate in effect on
// RequestDate, taken from the observation published on SourceDate
type ResolvedRate struct {
	RequestDate time.Time       `json:"request_date"`
	SourceDate  time.Time       `json:"source_date"`
	Currency    string          `json:"currency"`
	Rate        decimal.Decimal `json:"rate"`
}

// Carried reports whether the rate was carried forward from an earlier day
func (r ResolvedRate) Carried() bool {
	return !r.SourceDate.Equal(r.RequestDate)
}

// FormatRate renders a rate with the number of fractional digits it was
// published with, so 1.0500 is not shortened to 1.05
func FormatRate(rate decimal.Decimal) string {
	if exp := rate.Exponent(); exp < 0 {
		return rate.StringFixed(-exp)
	}
	return rate.String()
}
