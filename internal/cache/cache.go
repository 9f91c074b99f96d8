// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package cache provides a durable TTL key-value cache on BadgerDB. The
// blueprint refresher uses it to keep competitor blueprints warm across
// restarts without re-spending provider calls.
package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/clipsight/clipsight/internal/logging"
	"github.com/clipsight/clipsight/internal/metrics"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a TTL-aware BadgerDB wrapper. Values are JSON-encoded.
type Cache struct {
	db *badger.DB
}

// badgerLogger routes Badger's chatter through the application logger at
// debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { logging.Error().Msgf(format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { logging.Warn().Msgf(format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { logging.Debug().Msgf(format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { logging.Debug().Msgf(format, args...) }

// Open creates or opens the cache at path. An empty path opens an
// in-memory cache, used by tests.
func Open(path string) (*Cache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Set stores a JSON-encoded value under key with a TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get decodes the value under key into out. Returns ErrMiss when absent.
func (c *Cache) Get(cacheType, key string, out any) error {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("failed to read cache key: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})

	if errors.Is(err, ErrMiss) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return ErrMiss
	}
	if err != nil {
		return err
	}
	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
