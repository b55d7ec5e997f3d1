package entity

import "time"

// SeriesStats counts how each requested day was resolved
type SeriesStats struct {
	Direct  int `json:"direct"`
	Carried int `json:"carried"`
	Omitted int `json:"omitted"`
}

// SeriesSummary describes a reconstruction run
type SeriesSummary struct {
	Currency   string      `json:"currency"`
	Window     DateWindow  `json:"window"`
	Days       int         `json:"days"`
	Currencies CurrencySet `json:"currencies"`
	Stats      SeriesStats `json:"stats"`
}

// Series is a materialized reconstruction result
type Series struct {
	Summary SeriesSummary  `json:"summary"`
	Rates   []ResolvedRate `json:"rates"`
}

// FeedSnapshot is a raw copy of the feed as it was fetched
type FeedSnapshot struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Size      int       `json:"size"`
	Body      []byte    `json:"body,omitempty"`
}
