// internal/infrastructure/db/archiving_feed_repository_test.go
package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSource = "https://www.bsi.si/_data/tecajnice/dtecbs-l.xml"

func TestArchivingFeedRepository(t *testing.T) {
	ctx := context.Background()
	body := []byte(`<DtecBS><tecajnica datum="2023-01-02"><tecaj oznaka="USD">1.0683</tecaj></tecajnica></DtecBS>`)
	fetchedAt := time.Date(2023, 1, 2, 15, 30, 0, 0, time.UTC)

	t.Run("Successful fetch is archived", func(t *testing.T) {
		// Setup
		provider := new(mocks.MockFeedProvider)
		archive := new(mocks.MockFeedArchive)
		log := new(mocks.MockLogger)
		log.On("Info", "Fetching feed", mock.Anything).Once()

		repo := NewArchivingFeedRepository(provider, testSource, log, archive)
		repo.now = func() time.Time { return fetchedAt }

		provider.On("FetchFeed", ctx).Return(body, nil).Once()
		archive.On("Store", ctx, mock.MatchedBy(func(s *entity.FeedSnapshot) bool {
			return s.ID != "" &&
				s.Source == testSource &&
				s.FetchedAt.Equal(fetchedAt) &&
				s.Size == len(body) &&
				string(s.Body) == string(body)
		})).Return(nil).Once()

		// Execute
		got, err := repo.Fetch(ctx)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, body, got)
		provider.AssertExpectations(t)
		archive.AssertExpectations(t)
		log.AssertExpectations(t)
	})

	t.Run("Archive failure does not fail the fetch", func(t *testing.T) {
		// Setup
		provider := new(mocks.MockFeedProvider)
		broken := new(mocks.MockFeedArchive)
		working := new(mocks.MockFeedArchive)
		log := new(mocks.MockLogger)
		log.On("Info", "Fetching feed", mock.Anything).Once()
		log.On("Warn", "Failed to archive feed", mock.MatchedBy(func(f map[string]interface{}) bool {
			return f["error"] == "disk full"
		})).Once()

		repo := NewArchivingFeedRepository(provider, testSource, log, broken, working)

		provider.On("FetchFeed", ctx).Return(body, nil).Once()
		broken.On("Store", ctx, mock.Anything).Return(errors.New("disk full")).Once()
		working.On("Store", ctx, mock.Anything).Return(nil).Once()

		// Execute
		got, err := repo.Fetch(ctx)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, body, got)
		broken.AssertExpectations(t)
		working.AssertExpectations(t)
		log.AssertExpectations(t)
	})

	t.Run("Unchanged feed is archived once", func(t *testing.T) {
		// Setup
		provider := new(mocks.MockFeedProvider)
		archive := new(mocks.MockFeedArchive)
		log := new(mocks.MockLogger)
		log.On("Info", "Fetching feed", mock.Anything).Times(3)
		log.On("Debug", "Feed unchanged since last snapshot", mock.Anything).Once()

		repo := NewArchivingFeedRepository(provider, testSource, log, archive)

		changed := []byte(`<DtecBS><tecajnica datum="2023-01-03"><tecaj oznaka="USD">1.0545</tecaj></tecajnica></DtecBS>`)
		provider.On("FetchFeed", ctx).Return(body, nil).Twice()
		provider.On("FetchFeed", ctx).Return(changed, nil).Once()
		archive.On("Store", ctx, mock.Anything).Return(nil).Twice()

		// Execute
		for i := 0; i < 3; i++ {
			_, err := repo.Fetch(ctx)
			require.NoError(t, err)
		}

		// Assert
		archive.AssertNumberOfCalls(t, "Store", 2)
		log.AssertExpectations(t)
	})

	t.Run("Failed archive is retried on next fetch", func(t *testing.T) {
		// Setup
		provider := new(mocks.MockFeedProvider)
		archive := new(mocks.MockFeedArchive)
		log := new(mocks.MockLogger)
		log.On("Info", "Fetching feed", mock.Anything)
		log.On("Warn", "Failed to archive feed", mock.Anything).Once()

		repo := NewArchivingFeedRepository(provider, testSource, log, archive)

		provider.On("FetchFeed", ctx).Return(body, nil)
		archive.On("Store", ctx, mock.Anything).Return(errors.New("disk full")).Once()
		archive.On("Store", ctx, mock.Anything).Return(nil).Once()

		// Execute
		_, err := repo.Fetch(ctx)
		require.NoError(t, err)
		_, err = repo.Fetch(ctx)
		require.NoError(t, err)

		// Assert
		archive.AssertNumberOfCalls(t, "Store", 2)
		log.AssertExpectations(t)
	})

	t.Run("Provider error", func(t *testing.T) {
		// Setup
		provider := new(mocks.MockFeedProvider)
		archive := new(mocks.MockFeedArchive)
		log := new(mocks.MockLogger)
		log.On("Info", mock.Anything, mock.Anything)
		log.On("Error", "Failed to retrieve feed", mock.Anything).Once()

		repo := NewArchivingFeedRepository(provider, testSource, log, archive)
		fetchErr := &entity.FetchError{URL: testSource, StatusCode: 503, Err: errors.New("unexpected status")}
		provider.On("FetchFeed", ctx).Return(nil, fetchErr).Once()

		// Execute
		got, err := repo.Fetch(ctx)

		// Assert
		assert.Nil(t, got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to retrieve feed")
		var target *entity.FetchError
		assert.True(t, errors.As(err, &target))
		archive.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})
}
