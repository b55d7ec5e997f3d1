package repository

import (
	"context"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
)

// FeedArchive defines the interface for keeping raw copies of fetched feeds
type FeedArchive interface {
	// Store saves a snapshot of the raw feed
	Store(ctx context.Context, snapshot *entity.FeedSnapshot) error
}
