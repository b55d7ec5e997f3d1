// Package repository internal/domain/repository/feed_source.go
package repository

import "context"

// FeedSource defines the interface for retrieving the raw rate feed
type FeedSource interface {
	// Fetch returns the feed bytes exactly as published
	Fetch(ctx context.Context) ([]byte, error)
}
