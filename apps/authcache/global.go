// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authcache

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyInitialized is returned by Init when the process-wide cache exists.
	ErrAlreadyInitialized = errors.New("authcache: process-wide cache already initialized; call Shutdown before reconfiguring")
	// ErrNotInitialized is returned by Default before Init.
	ErrNotInitialized = errors.New("authcache: process-wide cache not initialized")
)

var (
	globalMu sync.Mutex
	global   *AuthCache
)

// Init builds the process-wide cache. Applications that pass their cache around explicitly
// should use New instead.
func Init(ctx context.Context, clientID string, host Host, options ...Option) (*AuthCache, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return nil, ErrAlreadyInitialized
	}
	c, err := New(ctx, clientID, host, options...)
	if err != nil {
		return nil, err
	}
	global = c
	return c, nil
}

// Default returns the cache built by Init.
func Default() (*AuthCache, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}

// Shutdown drops the process-wide cache so Init can be called again. Stored entries are kept.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}
