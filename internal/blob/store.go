package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound indicates that no blob exists for the given handle.
var ErrNotFound = errors.New("blob not found")

// Store persists raw document bytes in an embedded BadgerDB keyed by an
// opaque handle. Handles are generated on save and never reused.
type Store struct {
	db *badger.DB
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the blob store at path, creating the directory if needed.
// With inMemory set, nothing touches disk; used by tests.
func Open(path string, inMemory bool) (*Store, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("creating blob directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	return &Store{db: db}, nil
}

// Save stores data under a fresh handle and returns it. The handle embeds the
// sanitized original filename purely for operator legibility; callers must
// treat it as opaque.
func (s *Store) Save(ctx context.Context, filename string, data []byte) (string, error) {
	handle := uuid.New().String() + "_" + filepath.Base(filename)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(handle), data)
	})
	if err != nil {
		return "", fmt.Errorf("saving blob %s: %w", handle, err)
	}

	return handle, nil
}

// Read returns the bytes stored under handle, or ErrNotFound.
func (s *Store) Read(ctx context.Context, handle string) ([]byte, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(handle))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", handle, err)
	}

	return data, nil
}

// Delete removes the blob for handle. Deleting a missing handle succeeds.
func (s *Store) Delete(ctx context.Context, handle string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(handle))
	})
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", handle, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
