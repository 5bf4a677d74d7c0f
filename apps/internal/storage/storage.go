// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package storage selects the storage area a cache writes to. The area is chosen once, by an
// explicit Kind, when the cache is built and never changes afterwards.
package storage

import (
	"context"
	"fmt"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/logger"
)

// Kind is a storage area.
type Kind int

const (
	// Local is the persistent area of the host.
	Local Kind = iota
	// Session is the area that lives as long as the host session.
	Session
	// Custom is an area supplied directly by the application.
	Custom
)

// String returns the name the browser library used for the area.
func (k Kind) String() string {
	switch k {
	case Local:
		return "localStorage"
	case Session:
		return "sessionStorage"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String().
func ParseKind(s string) (Kind, error) {
	switch s {
	case "localStorage", "local":
		return Local, nil
	case "sessionStorage", "session":
		return Session, nil
	case "custom":
		return Custom, nil
	}
	return 0, &errors.ConfigurationError{Field: "cacheLocation", Reason: fmt.Sprintf("unknown storage kind %q", s)}
}

// Areas are the storage areas a host exposes. A nil field means the host has no such area.
type Areas struct {
	Local   cache.Store
	Session cache.Store
}

// Backend is the single storage area used by a cache.
type Backend struct {
	kind  Kind
	store cache.Store
	log   *logger.Logger
}

// New returns the Backend for kind. Local and Session come from areas and fail with
// *errors.UnsupportedStorageError when the host does not provide them. Custom uses custom.
func New(kind Kind, areas Areas, custom cache.Store, log *logger.Logger) (*Backend, error) {
	var store cache.Store
	switch kind {
	case Local:
		store = areas.Local
	case Session:
		store = areas.Session
	case Custom:
		if custom == nil {
			return nil, &errors.ConfigurationError{Field: "store", Reason: "custom storage selected without a store"}
		}
		store = custom
	default:
		return nil, &errors.UnsupportedStorageError{Kind: kind.String()}
	}
	if store == nil {
		return nil, &errors.UnsupportedStorageError{Kind: kind.String()}
	}
	return &Backend{kind: kind, store: store, log: log.With(logger.Field("storage", kind.String()))}, nil
}

// Kind returns the area the backend was built for.
func (b *Backend) Kind() Kind {
	return b.kind
}

// Get reads key. ok is false when the key is absent.
func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.log.Log(ctx, logger.Err, "storage get failed", logger.Field("key", key), logger.Field("error", err))
		return "", false, err
	}
	return v, ok, nil
}

// Set writes key.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	b.log.Log(ctx, logger.Debug, "storage set", logger.Field("key", key))
	if err := b.store.Set(ctx, key, value); err != nil {
		b.log.Log(ctx, logger.Err, "storage set failed", logger.Field("key", key), logger.Field("error", err))
		return err
	}
	return nil
}

// Remove deletes key.
func (b *Backend) Remove(ctx context.Context, key string) error {
	b.log.Log(ctx, logger.Debug, "storage remove", logger.Field("key", key))
	if err := b.store.Remove(ctx, key); err != nil {
		b.log.Log(ctx, logger.Err, "storage remove failed", logger.Field("key", key), logger.Field("error", err))
		return err
	}
	return nil
}

// Clear deletes every entry of the area, including entries the cache did not write.
func (b *Backend) Clear(ctx context.Context) error {
	b.log.Log(ctx, logger.Info, "storage clear")
	return b.store.Clear(ctx)
}

// Keys lists every key of the area.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.store.Keys(ctx)
	if err != nil {
		b.log.Log(ctx, logger.Err, "storage key listing failed", logger.Field("error", err))
		return nil, err
	}
	return keys, nil
}
