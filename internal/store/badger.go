package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
)

const badgerKeyPrefix = "session:"

// BadgerOptions configures the embedded store.
type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string

	// InMemory runs without disk persistence.
	InMemory bool
}

// Badger stores snapshots in an embedded BadgerDB.
type Badger struct {
	db *badger.DB
}

func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, apperr.New(apperr.ConfigInvalid, "badger store requires a directory")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(slogLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.StoreFailed, "open badger at %s", opts.Dir)
	}
	return &Badger{db: db}, nil
}

func badgerKey(id string) []byte { return []byte(badgerKeyPrefix + id) }

func (b *Badger) Save(_ context.Context, id string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(id), data)
	})
	return failed(err, "save", id)
}

func (b *Badger) Load(_ context.Context, id string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, failed(err, "load", id)
}

func (b *Badger) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
	return failed(err, "delete", id)
}

func (b *Badger) List(context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix))
		}
		return nil
	})
	return ids, failed(err, "list", "")
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger routes badger output through slog; info and debug are dropped.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
}

func (slogLogger) Warningf(f string, v ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
}

func (slogLogger) Infof(string, ...any)  {}
func (slogLogger) Debugf(string, ...any) {}
