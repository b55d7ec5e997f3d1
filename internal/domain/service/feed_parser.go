package service

import (
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
)

// FeedParser defines the interface for turning raw feed bytes into dated rates
type FeedParser interface {
	// Parse decodes the feed. It fails only when nothing usable can be extracted.
	Parse(raw []byte) (entity.Feed, error)
}
