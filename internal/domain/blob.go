package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports settled game history to cold storage.
type Archiver interface {
	// ArchiveRounds exports rounds closed strictly before the cutoff,
	// together with their bets, and returns the number of rounds written.
	ArchiveRounds(ctx context.Context, before time.Time) (int64, error)
}
