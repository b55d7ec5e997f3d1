package handler

import (
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
)

// RateResponse represents one day of a series
type RateResponse struct {
	RequestDate string `json:"request_date"`
	SourceDate  string `json:"source_date"`
	Currency    string `json:"currency"`
	Rate        string `json:"rate"`
	Carried     bool   `json:"carried"`
}

// SeriesResponse represents the response for the series endpoint
type SeriesResponse struct {
	Currency   string             `json:"currency"`
	Start      string             `json:"start"`
	End        string             `json:"end"`
	Days       int                `json:"days"`
	Currencies []string           `json:"currencies"`
	Stats      entity.SeriesStats `json:"stats"`
	Rates      []RateResponse     `json:"rates"`
}

// CurrenciesResponse represents the response for the currencies endpoint
type CurrenciesResponse struct {
	Currencies []string `json:"currencies"`
	Count      int      `json:"count"`
}

// SnapshotResponse describes one archived copy of the feed
type SnapshotResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	FetchedAt string `json:"fetched_at"`
	Size      int    `json:"size"`
}

func newSeriesResponse(s *entity.Series) SeriesResponse {
	rates := make([]RateResponse, 0, len(s.Rates))
	for _, r := range s.Rates {
		rates = append(rates, RateResponse{
			RequestDate: entity.FormatDay(r.RequestDate),
			SourceDate:  entity.FormatDay(r.SourceDate),
			Currency:    r.Currency,
			Rate:        entity.FormatRate(r.Rate),
			Carried:     r.Carried(),
		})
	}

	return SeriesResponse{
		Currency:   s.Summary.Currency,
		Start:      entity.FormatDay(s.Summary.Window.Start),
		End:        entity.FormatDay(s.Summary.Window.End),
		Days:       s.Summary.Days,
		Currencies: s.Summary.Currencies.Codes(),
		Stats:      s.Summary.Stats,
		Rates:      rates,
	}
}
