package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
)

// DefaultArchiveFile is where the last fetched feed is dumped
const DefaultArchiveFile = "logs/dtecbs-l.xml"

// FileFeedArchive writes the latest raw feed verbatim to a single file
type FileFeedArchive struct {
	path string
}

// NewFileFeedArchive creates a file archive. An empty path uses DefaultArchiveFile.
func NewFileFeedArchive(path string) *FileFeedArchive {
	if path == "" {
		path = DefaultArchiveFile
	}
	return &FileFeedArchive{path: path}
}

// Path returns the archive file location
func (a *FileFeedArchive) Path() string {
	return a.path
}

// Store replaces the archive file with the snapshot body. The body is written
// to a temporary file first so readers never see a partial feed.
func (a *FileFeedArchive) Store(ctx context.Context, snapshot *entity.FeedSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(snapshot.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace archive file: %w", err)
	}

	return nil
}
