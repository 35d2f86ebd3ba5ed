// Package store implements the top-level registry of named collections,
// the Go stand-in for exar-core's Database (a mutex-guarded map of
// Collections, lazily populated on first use) — styled after the teacher's
// internal/db.Store registry/connection pattern.
package store

import (
	"os"
	"sync"

	"github.com/klppl/evlogd/internal/collection"
	"github.com/klppl/evlogd/internal/dberr"
)

// CollectionConfigFunc resolves the Config a newly opened collection should
// use, keyed by name — internal/config.Config.CollectionConfig satisfies
// this, applying any per-collection override on top of the database-wide
// defaults.
type CollectionConfigFunc func(name string) collection.Config

// Store is a registry of named Collections, lazily opening each one on
// first use and guarding the registry itself with a mutex (collections
// manage their own internal concurrency once open).
type Store struct {
	mu          sync.Mutex
	logsPath    string
	configFor   CollectionConfigFunc
	collections map[string]*collection.Collection
	order       []string // registration order, for Close
}

// Open resolves logsPath (creating the directory if needed) and returns an
// empty registry; collections are created lazily by Collection.
func Open(logsPath string, configFor CollectionConfigFunc) (*Store, error) {
	if err := os.MkdirAll(logsPath, 0o755); err != nil {
		return nil, dberr.Wrap(dberr.IO, "failed to create logs directory", err)
	}
	return &Store{
		logsPath:    logsPath,
		configFor:   configFor,
		collections: make(map[string]*collection.Collection),
	}, nil
}

// Collection lazily opens (or returns the already-open) collection named
// name, checking the registry and opening under one hold of the registry
// lock so concurrent first-use callers never race to create two Collections
// for the same name.
func (s *Store) Collection(name string) (*collection.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	c, err := collection.Open(name, s.configFor(name))
	if err != nil {
		return nil, err
	}
	s.collections[name] = c
	s.order = append(s.order, name)
	return c, nil
}

// DropCollection truncates and removes a collection's backing file,
// evicting it from the registry. A no-op if the collection was never
// opened.
func (s *Store) DropCollection(name string) error {
	s.mu.Lock()
	c, ok := s.collections[name]
	if ok {
		delete(s.collections, name)
		s.order = removeName(s.order, name)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := c.Truncate(); err != nil {
		return err
	}
	return c.Close()
}

// Close stops every open collection's threads, in the order they were
// first opened, and clears the registry.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, name := range s.order {
		if err := s.collections[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.collections = make(map[string]*collection.Collection)
	s.order = nil
	return firstErr
}

// Stats returns an operational snapshot of every currently open collection.
func (s *Store) Stats() map[string]collection.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]collection.Stats, len(s.collections))
	for name, c := range s.collections {
		out[name] = c.Stats()
	}
	return out
}

func removeName(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
