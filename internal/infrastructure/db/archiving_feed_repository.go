// Package db internal/infrastructure/db/archiving_feed_repository.go
package db

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/domain/repository"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// FeedProvider defines an interface for providers of the raw feed
type FeedProvider interface {
	FetchFeed(ctx context.Context) ([]byte, error)
}

// ArchivingFeedRepository implements the FeedSource interface. Every feed it
// fetches is copied to the configured archives unless it is identical to the
// last feed archived successfully.
type ArchivingFeedRepository struct {
	provider FeedProvider
	archives []repository.FeedArchive
	source   string
	logger   logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastDigest [sha256.Size]byte
	hasDigest  bool
}

// NewArchivingFeedRepository creates a new feed source backed by provider.
// source is recorded on each snapshot (normally the feed URL).
func NewArchivingFeedRepository(provider FeedProvider, source string, log logger.Logger, archives ...repository.FeedArchive) *ArchivingFeedRepository {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &ArchivingFeedRepository{
		provider: provider,
		archives: archives,
		source:   source,
		logger:   log,
		now:      time.Now,
	}
}

// Fetch retrieves the feed and archives it. Archive failures are logged and
// do not fail the fetch.
func (r *ArchivingFeedRepository) Fetch(ctx context.Context) ([]byte, error) {
	r.logger.Info("Fetching feed", map[string]interface{}{"source": r.source})

	body, err := r.provider.FetchFeed(ctx)
	if err != nil {
		r.logger.Error("Failed to retrieve feed", map[string]interface{}{
			"source": r.source,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("failed to retrieve feed: %w", err)
	}

	digest := sha256.Sum256(body)
	if r.unchanged(digest) {
		r.logger.Debug("Feed unchanged since last snapshot", map[string]interface{}{
			"source": r.source,
			"bytes":  len(body),
		})
		return body, nil
	}

	snapshot := &entity.FeedSnapshot{
		ID:        uuid.NewString(),
		Source:    r.source,
		FetchedAt: r.now().UTC(),
		Size:      len(body),
		Body:      body,
	}

	failed := false
	for _, archive := range r.archives {
		if err := archive.Store(ctx, snapshot); err != nil {
			failed = true
			r.logger.Warn("Failed to archive feed", map[string]interface{}{
				"snapshot_id": snapshot.ID,
				"archive":     fmt.Sprintf("%T", archive),
				"error":       err.Error(),
			})
		}
	}
	if !failed {
		r.remember(digest)
	}

	return body, nil
}

func (r *ArchivingFeedRepository) unchanged(digest [sha256.Size]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasDigest && r.lastDigest == digest
}

func (r *ArchivingFeedRepository) remember(digest [sha256.Size]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastDigest = digest
	r.hasDigest = true
}
