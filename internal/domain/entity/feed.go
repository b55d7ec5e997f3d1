package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FeedEntry holds the rates published on a single day
type FeedEntry struct {
	Date  time.Time
	Codes []string // document order
	Rates map[string]decimal.Decimal
}

// NewFeedEntry creates an empty entry for the given day
func NewFeedEntry(date time.Time) FeedEntry {
	return FeedEntry{
		Date:  Day(date),
		Rates: make(map[string]decimal.Decimal),
	}
}

// Set records a rate, keeping the first-seen position of the code
func (e *FeedEntry) Set(currency string, rate decimal.Decimal) {
	if e.Rates == nil {
		e.Rates = make(map[string]decimal.Decimal)
	}
	if _, exists := e.Rates[currency]; !exists {
		e.Codes = append(e.Codes, currency)
	}
	e.Rates[currency] = rate
}

// Rate returns the rate published for currency on this day
func (e FeedEntry) Rate(currency string) (decimal.Decimal, bool) {
	rate, ok := e.Rates[currency]
	return rate, ok
}

// Feed is a parsed rate feed indexed by publication day
type Feed struct {
	entries map[string]FeedEntry
	days    []string
}

// NewFeed builds a feed from entries. Entries sharing a day are merged, later
// rates replacing earlier ones.
func NewFeed(entries []FeedEntry) Feed {
	f := Feed{entries: make(map[string]FeedEntry, len(entries))}

	for _, e := range entries {
		key := FormatDay(e.Date)
		existing, ok := f.entries[key]
		if !ok {
			existing = NewFeedEntry(e.Date)
			f.days = append(f.days, key)
		}
		for _, code := range e.Codes {
			existing.Set(code, e.Rates[code])
		}
		f.entries[key] = existing
	}

	sort.Strings(f.days)
	return f
}

// Len returns the number of distinct publication days
func (f Feed) Len() int {
	return len(f.days)
}

// Entry returns the entry published on day
func (f Feed) Entry(day time.Time) (FeedEntry, bool) {
	e, ok := f.entries[FormatDay(day)]
	return e, ok
}

// Rate returns the rate for currency published exactly on day
func (f Feed) Rate(day time.Time, currency string) (decimal.Decimal, bool) {
	e, ok := f.Entry(day)
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.Rate(currency)
}

// LatestBefore finds the most recent observation of currency strictly before day
func (f Feed) LatestBefore(day time.Time, currency string) (time.Time, decimal.Decimal, bool) {
	key := FormatDay(day)
	i := sort.SearchStrings(f.days, key)

	for i--; i >= 0; i-- {
		e := f.entries[f.days[i]]
		if rate, ok := e.Rate(currency); ok {
			return e.Date, rate, true
		}
	}

	return time.Time{}, decimal.Decimal{}, false
}

// FirstObservation returns the earliest day currency was published
func (f Feed) FirstObservation(currency string) (time.Time, bool) {
	for _, key := range f.days {
		e := f.entries[key]
		if _, ok := e.Rate(currency); ok {
			return e.Date, true
		}
	}
	return time.Time{}, false
}

// Days returns the publication days in ascending order
func (f Feed) Days() []time.Time {
	days := make([]time.Time, 0, len(f.days))
	for _, key := range f.days {
		days = append(days, f.entries[key].Date)
	}
	return days
}

// Currencies collects every currency code in the feed, ordered by first
// appearance
func (f Feed) Currencies() CurrencySet {
	var set CurrencySet
	for _, key := range f.days {
		for _, code := range f.entries[key].Codes {
			set.Add(code)
		}
	}
	return set
}
