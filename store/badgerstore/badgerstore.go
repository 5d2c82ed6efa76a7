// Package badgerstore provides a compliance result store on the embedded
// BadgerDB key-value store.
//
// Each result is a JSON value under a key made of its check name, entity
// type, object ID and attribute, so the results of one object share a
// prefix and are read back with a single prefix scan.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/google/uuid"
)

const (
	resultPrefix = "result/"
	sep          = "\x00"
)

// Config holds the options for opening a store.
type Config struct {
	// Directory for the database files. Ignored when InMemory is true.
	Path string

	// Keep everything in memory, for tests
	InMemory bool

	// Logger for badger's own messages. Nil silences them.
	Logger *slog.Logger
}

// Results is a compliance.ResultStore backed by badger.
type Results struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens the store described by cfg. The caller must Close it.
func Open(cfg Config) (*Results, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badgerstore: path is required for a persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Results{db: db}, nil
}

// Close closes the database.
func (s *Results) Close() error {
	return s.db.Close()
}

func key(k compliance.Key) []byte {
	return []byte(objectPrefix(k.CheckName, k.EntityType, k.ObjectID) + k.Attribute)
}

func objectPrefix(checkName, entityType, objectID string) string {
	return resultPrefix + checkName + sep + entityType + sep + objectID + sep
}

func (s *Results) Upsert(_ context.Context, r compliance.Result) error {
	k := key(r.Key())
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		switch {
		case err == nil:
			var prev compliance.Result
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &prev) }); err != nil {
				return err
			}
			r.ID = prev.ID
		case errors.Is(err, badger.ErrKeyNotFound):
			if r.ID == uuid.Nil {
				r.ID = compliance.NewID()
			}
		default:
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("upserting result %s: %w", r.Key(), err)
	}
	return nil
}

func (s *Results) ForObject(_ context.Context, checkName, entityType, objectID string) ([]compliance.Result, error) {
	return s.scan(objectPrefix(checkName, entityType, objectID))
}

func (s *Results) All(_ context.Context) ([]compliance.Result, error) {
	return s.scan(resultPrefix)
}

func (s *Results) Delete(_ context.Context, k compliance.Key) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(k)); err != nil {
			return err
		}
		return txn.Delete(key(k))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", compliance.ErrResultNotFound, k)
	}
	if err != nil {
		return fmt.Errorf("deleting result %s: %w", k, err)
	}
	return nil
}

// scan returns the results under the prefix in key order.
func (s *Results) scan(prefix string) ([]compliance.Result, error) {
	out := []compliance.Result{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var r compliance.Result
			err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &r) })
			if err != nil {
				return fmt.Errorf("decoding %q: %w", it.Item().Key(), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return out, nil
}
