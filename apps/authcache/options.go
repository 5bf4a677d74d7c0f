// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authcache

import (
	"log/slog"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/storage"
)

// Location selects the storage area a cache writes to.
type Location = storage.Kind

const (
	LocalStorage   = storage.Local
	SessionStorage = storage.Session
	CustomStorage  = storage.Custom
)

// ParseLocation parses "localStorage", "sessionStorage" or "custom".
func ParseLocation(s string) (Location, error) {
	return storage.ParseKind(s)
}

// Host holds what the embedding environment provides. A nil area is an area the host does not
// support; a nil Cookies disables cookie mirroring.
type Host struct {
	Local   cache.Store
	Session cache.Store
	Cookies cache.Document
}

// Options configures a cache.
type Options struct {
	// Location is the storage area. The default is SessionStorage.
	Location Location
	// Store is the area used when Location is CustomStorage.
	Store cache.Store
	// Prefix namespaces every physical key. The default is "msal".
	Prefix string
	// LegacySchema keeps the legacy key schema written next to the current one, so older
	// clients sharing the storage can read entries. The default is true.
	LegacySchema bool
	// CookieExpiryDays is the lifetime of mirrored cookies. Zero means session cookies.
	CookieExpiryDays int

	logger *slog.Logger
}

// Option is an optional argument to New.
type Option func(o *Options)

// WithLocation selects the storage area.
func WithLocation(l Location) Option {
	return func(o *Options) {
		o.Location = l
	}
}

// WithStore uses a store supplied by the application instead of a host area.
func WithStore(s cache.Store) Option {
	return func(o *Options) {
		o.Location = CustomStorage
		o.Store = s
	}
}

// WithPrefix changes the namespace of physical keys.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithoutLegacySchema stops writing and removing legacy-schema entries.
func WithoutLegacySchema() Option {
	return func(o *Options) {
		o.LegacySchema = false
	}
}

// WithCookieExpiry sets the lifetime, in days, of mirrored cookies.
func WithCookieExpiry(days int) Option {
	return func(o *Options) {
		o.CookieExpiryDays = days
	}
}

// WithLogger enables logging within the cache. Values are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// ItemOptions are the optional settings of a single Set or Get call.
type ItemOptions struct {
	// Cookie mirrors the entry in a cookie. To set, use WithCookie().
	Cookie bool
}

// ItemOption changes ItemOptions.
type ItemOption func(o *ItemOptions)

// WithCookie mirrors a Set into a cookie, and makes Get prefer the cookie.
func WithCookie() ItemOption {
	return func(o *ItemOptions) {
		o.Cookie = true
	}
}
