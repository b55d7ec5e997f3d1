package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const (
	snapshotPrefix = "feed:"
	// keyTimeLayout sorts lexicographically in time order
	keyTimeLayout = "20060102T150405.000000000Z"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested ID
var ErrSnapshotNotFound = errors.New("snapshot not found")

// OpenBadger opens (creating if needed) a Badger database in dir with
// Badger's own logging disabled
func OpenBadger(dir string) (*badger.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// BadgerFeedArchive keeps raw feed snapshots in BadgerDB, each expiring after a TTL
type BadgerFeedArchive struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerFeedArchive creates a new BadgerDB feed archive. A non-positive ttl
// keeps snapshots forever.
func NewBadgerFeedArchive(db *badger.DB, ttl time.Duration) *BadgerFeedArchive {
	return &BadgerFeedArchive{db: db, ttl: ttl}
}

func snapshotKey(s *entity.FeedSnapshot) []byte {
	return []byte(snapshotPrefix + s.FetchedAt.UTC().Format(keyTimeLayout) + ":" + s.ID)
}

// Store saves a snapshot, body included
func (a *BadgerFeedArchive) Store(ctx context.Context, snapshot *entity.FeedSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(snapshotKey(snapshot), data)
		if a.ttl > 0 {
			e = e.WithTTL(a.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	return nil
}

// List returns up to limit snapshots, newest first, without their bodies.
// A non-positive limit returns all of them.
func (a *BadgerFeedArchive) List(ctx context.Context, limit int) ([]entity.FeedSnapshot, error) {
	var snapshots []entity.FeedSnapshot

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(snapshotPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the last key carrying the prefix
		seek := append([]byte(snapshotPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var s entity.FeedSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			s.Body = nil
			snapshots = append(snapshots, s)

			if limit > 0 && len(snapshots) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return snapshots, nil
}

// FindByID retrieves a snapshot, body included
func (a *BadgerFeedArchive) FindByID(ctx context.Context, id string) (*entity.FeedSnapshot, error) {
	var found *entity.FeedSnapshot
	suffix := ":" + id

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			if len(key) < len(suffix) || string(key[len(key)-len(suffix):]) != suffix {
				continue
			}

			var s entity.FeedSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			found = &s
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve snapshot: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}

	return found, nil
}
