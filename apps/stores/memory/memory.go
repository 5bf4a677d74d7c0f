// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package memory provides a storage area that lives as long as the process, the Go
// counterpart of a browser's sessionStorage.
package memory

import (
	"context"
	"sort"

	gocache "github.com/patrickmn/go-cache"
)

// Store is an in-memory storage area. It is safe for concurrent use.
type Store struct {
	items *gocache.Cache
}

// New creates an empty Store. Entries never expire.
func New() *Store {
	return &Store{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get implements cache.Store.Get().
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// Set implements cache.Store.Set().
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.items.Set(key, value, gocache.NoExpiration)
	return nil
}

// Remove implements cache.Store.Remove().
func (s *Store) Remove(ctx context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Clear implements cache.Store.Clear().
func (s *Store) Clear(ctx context.Context) error {
	s.items.Flush()
	return nil
}

// Keys implements cache.Store.Keys(). Keys are returned in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	items := s.items.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
