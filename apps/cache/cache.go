// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package cache defines the capabilities the auth cache consumes from its host: a string
key/value Store for each storage area and a Document holding the cookie string.

Third parties can implement Store to back the cache with their own medium (a native bridge,
a database, a remote secret store). Every call may block, so every call takes a
context.Context. The cache does not impose timeouts; callers that need them must set a
deadline on the context.
*/
package cache

import (
	"context"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
)

// Store is a storage area holding string entries.
type Store interface {
	// Get returns (value, true, nil) on a hit and ("", false, nil) on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or overwrites the entry for key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes the entry for key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear deletes every entry in the area.
	Clear(ctx context.Context) error
	// Keys lists every key in the area, including keys the auth cache did not write.
	Keys(ctx context.Context) ([]string, error)
}

// StoreFuncs adapts a set of functions to Store. A host may leave any of them nil; calling
// the matching operation then returns an *errors.UnimplementedError.
type StoreFuncs struct {
	GetFunc    func(ctx context.Context, key string) (string, bool, error)
	SetFunc    func(ctx context.Context, key, value string) error
	RemoveFunc func(ctx context.Context, key string) error
	ClearFunc  func(ctx context.Context) error
	KeysFunc   func(ctx context.Context) ([]string, error)
}

// Get implements Store.Get().
func (s StoreFuncs) Get(ctx context.Context, key string) (string, bool, error) {
	if s.GetFunc == nil {
		return "", false, &errors.UnimplementedError{Op: "Get"}
	}
	return s.GetFunc(ctx, key)
}

// Set implements Store.Set().
func (s StoreFuncs) Set(ctx context.Context, key, value string) error {
	if s.SetFunc == nil {
		return &errors.UnimplementedError{Op: "Set"}
	}
	return s.SetFunc(ctx, key, value)
}

// Remove implements Store.Remove().
func (s StoreFuncs) Remove(ctx context.Context, key string) error {
	if s.RemoveFunc == nil {
		return &errors.UnimplementedError{Op: "Remove"}
	}
	return s.RemoveFunc(ctx, key)
}

// Clear implements Store.Clear().
func (s StoreFuncs) Clear(ctx context.Context) error {
	if s.ClearFunc == nil {
		return &errors.UnimplementedError{Op: "Clear"}
	}
	return s.ClearFunc(ctx)
}

// Keys implements Store.Keys().
func (s StoreFuncs) Keys(ctx context.Context) ([]string, error) {
	if s.KeysFunc == nil {
		return nil, &errors.UnimplementedError{Op: "Keys"}
	}
	return s.KeysFunc(ctx)
}

// Document is the process-wide cookie string, the equivalent of a browser's document.cookie.
// Cookie returns every live cookie as "name=value" pairs joined by "; ". SetCookie takes a
// single cookie in Set-Cookie syntax; a cookie whose expiry is in the past is deleted.
type Document interface {
	Cookie() string
	SetCookie(raw string)
}
