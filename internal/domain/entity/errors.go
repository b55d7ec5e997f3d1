package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is returned for missing, malformed or reversed dates
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrInvalidCurrency is returned for currency codes that are not 3 letters
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrUnorderedDays is returned when reconstruction is given days out of order
	ErrUnorderedDays = errors.New("days must be strictly ascending")
)

// FetchError reports a failure to retrieve the raw feed
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FeedFormatError reports a feed from which no dated block could be parsed
type FeedFormatError struct {
	Reason string
	Err    error
}

func (e *FeedFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparseable feed: %s: %v", e.Reason, e.Err)
	}
	return "unparseable feed: " + e.Reason
}

func (e *FeedFormatError) Unwrap() error {
	return e.Err
}
