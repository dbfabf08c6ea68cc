// Package store persists session snapshots. Backends: in-process memory,
// an embedded Badger database, or an S3-compatible bucket.
package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/GriffinCanCode/speakerline/internal/config"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

// ErrNotFound is returned by Load when no snapshot exists for a session.
var ErrNotFound = stderrors.New("store: session not found")

// Store saves opaque snapshot blobs keyed by session id.
type Store interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Open builds the backend selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return NewMemory(), nil
	case config.StoreBadger:
		return NewBadger(BadgerOptions{Dir: cfg.Dir})
	case config.StoreS3:
		return NewS3(NewS3Client(cfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, apperr.Newf(apperr.ConfigInvalid, "unknown store backend %q", cfg.Backend)
	}
}

func failed(err error, op, id string) error {
	if err == nil || stderrors.Is(err, ErrNotFound) {
		return err
	}
	return apperr.Wrap(err, apperr.StoreFailed, fmt.Sprintf("%s session", op)).WithMetadata("session", id)
}
