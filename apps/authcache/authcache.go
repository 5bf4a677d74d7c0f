// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package authcache stores the short-lived artifacts of an authentication client: ID tokens,
access tokens, request nonce and state, and renewal markers.

An AuthCache writes to exactly one storage area, chosen when it is built. Logical keys are
namespaced per client ("msal.<clientID>.<key>"); while the legacy schema is kept, every write
is duplicated under "msal.<key>" for older clients that share the same storage. Access token
entries use structured JSON keys that are stored verbatim.

Entries tied to a request state are reaped by ResetTemporaryEntries and
RemoveAcquireTokenEntries, but never while a renewal for that state is in progress.

Every operation may block on the storage area and takes a context.Context. The cache sets no
timeouts of its own.
*/
package authcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/cookie"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/keys"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/logger"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/storage"
	"github.com/tidwall/gjson"
)

// Key is a cache key, either logical or structured.
type Key = keys.Key

// Logical returns a key that is namespaced before it is written.
func Logical(name string) Key {
	return keys.Logical(name)
}

// Structured returns a key holding v JSON encoded, written without namespacing.
func Structured(v any) (Key, error) {
	return keys.Structured(v)
}

// ParseKey returns raw as a structured key when it holds a JSON object, otherwise as a
// logical key.
func ParseKey(raw string) Key {
	return keys.Parse(raw)
}

// AcquireTokenAccountKey returns the logical key recording the account of the token request
// made with state.
func AcquireTokenAccountKey(accountID, state string) string {
	return keys.AcquireTokenAccountKey(accountID, state)
}

// AuthorityKey returns the logical key recording the authority of the request made with state.
func AuthorityKey(state string) string {
	return keys.AuthorityKey(state)
}

// TemporaryKey returns the logical key of temporary entry name for state.
func TemporaryKey(name, state string) string {
	return keys.TemporaryKey(name, state)
}

// NewState returns a fresh request state.
func NewState() string {
	return keys.NewState()
}

// AuthCache is the auth-specific view of a storage area. It is safe for concurrent use, but
// see ResetTemporaryEntries for what concurrent writers outside the cache may observe.
type AuthCache struct {
	clientID   string
	ns         keys.Namespacer
	backend    *storage.Backend
	cookies    *cookie.Mirror
	legacy     bool
	cookieDays int
	log        *logger.Logger
	slog       *slog.Logger

	// reapMu serializes renewal flag changes made through the cache with the
	// check-then-remove scans.
	reapMu sync.Mutex
}

// New builds the cache for clientID. It fails with *errors.UnsupportedStorageError when the
// selected area is not provided by host. While the legacy schema is kept, entries written by
// older clients are copied to the current schema.
func New(ctx context.Context, clientID string, host Host, options ...Option) (*AuthCache, error) {
	opts := Options{
		Location:     SessionStorage,
		Prefix:       keys.Prefix,
		LegacySchema: true,
	}
	for _, o := range options {
		o(&opts)
	}
	if err := opts.validate(clientID); err != nil {
		return nil, err
	}

	log := logger.New(opts.logger).With(logger.Field("clientID", clientID))
	backend, err := storage.New(opts.Location, storage.Areas{Local: host.Local, Session: host.Session}, opts.Store, log)
	if err != nil {
		return nil, err
	}

	c := &AuthCache{
		clientID:   clientID,
		ns:         keys.Namespacer{Prefix: opts.Prefix, ClientID: clientID},
		backend:    backend,
		cookies:    cookie.New(host.Cookies),
		legacy:     opts.LegacySchema,
		cookieDays: opts.CookieExpiryDays,
		log:        log,
		slog:       opts.logger,
	}
	if c.legacy {
		if err := c.migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating legacy cache entries: %w", err)
		}
	}
	return c, nil
}

func (o Options) validate(clientID string) error {
	if clientID == "" {
		return &errors.ConfigurationError{Field: "clientID", Reason: "cannot be empty"}
	}
	if o.Prefix == "" {
		return &errors.ConfigurationError{Field: "prefix", Reason: "cannot be empty"}
	}
	if strings.Contains(o.Prefix, keys.Delimiter) {
		return &errors.ConfigurationError{Field: "prefix", Reason: fmt.Sprintf("cannot contain %q", keys.Delimiter)}
	}
	if o.CookieExpiryDays < 0 {
		return &errors.ConfigurationError{Field: "cookieExpiryDays", Reason: "cannot be negative"}
	}
	return nil
}

// ClientID returns the client the cache namespaces keys for.
func (c *AuthCache) ClientID() string {
	return c.clientID
}

// Logger returns the logger passed with WithLogger, or nil.
func (c *AuthCache) Logger() *slog.Logger {
	return c.slog
}

// Location returns the storage area in use.
func (c *AuthCache) Location() Location {
	return c.backend.Kind()
}

// PhysicalKeys returns the current and legacy physical keys of key. Both are equal for
// structured and already namespaced keys.
func (c *AuthCache) PhysicalKeys(key Key) (current, legacy string) {
	return c.ns.Physical(key, keys.Current), c.ns.Physical(key, keys.Legacy)
}

// Set writes value under key: the current schema first, then the legacy schema, then the
// cookie when WithCookie is passed. A failed step does not undo earlier ones.
func (c *AuthCache) Set(ctx context.Context, key Key, value string, options ...ItemOption) error {
	opts := itemOptions(options)

	current := c.ns.Physical(key, keys.Current)
	if err := c.backend.Set(ctx, current, value); err != nil {
		return err
	}
	if c.legacy {
		if legacy := c.ns.Physical(key, keys.Legacy); legacy != current {
			if err := c.backend.Set(ctx, legacy, value); err != nil {
				return err
			}
		}
	}
	if opts.Cookie {
		c.cookies.Set(current, value, c.cookieDays)
	}
	return nil
}

// Get reads key from the current schema. With WithCookie, a non-empty mirrored cookie wins
// over the storage area.
func (c *AuthCache) Get(ctx context.Context, key Key, options ...ItemOption) (string, bool, error) {
	opts := itemOptions(options)

	current := c.ns.Physical(key, keys.Current)
	if opts.Cookie {
		if v := c.cookies.Get(current); v != "" {
			return v, true, nil
		}
	}
	return c.backend.Get(ctx, current)
}

// Remove deletes key from the current and, while kept, the legacy schema. Removing an absent
// key is not an error. Mirrored cookies are left alone.
func (c *AuthCache) Remove(ctx context.Context, key Key) error {
	current := c.ns.Physical(key, keys.Current)
	if err := c.backend.Remove(ctx, current); err != nil {
		return err
	}
	if c.legacy {
		if legacy := c.ns.Physical(key, keys.Legacy); legacy != current {
			return c.backend.Remove(ctx, legacy)
		}
	}
	return nil
}

// Keys lists the physical keys of the entries ResetAll would remove.
func (c *AuthCache) Keys(ctx context.Context) ([]string, error) {
	physical, err := c.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var owned []string
	for _, k := range physical {
		if c.ns.Owns(k) || c.ownsStructured(k) {
			owned = append(owned, k)
		}
	}
	return owned, nil
}

// ResetAll removes every entry whose physical key contains the namespace prefix, and the
// access token entries of this client. Other entries sharing the storage area are left alone.
func (c *AuthCache) ResetAll(ctx context.Context) error {
	owned, err := c.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range owned {
		if err := c.backend.Remove(ctx, k); err != nil {
			return err
		}
	}
	c.log.Log(ctx, logger.Info, "cache reset", logger.Field("removed", len(owned)))
	return nil
}

// IsRenewalInProgress reports whether a token renewal for state has started and not finished.
func (c *AuthCache) IsRenewalInProgress(ctx context.Context, state string) (bool, error) {
	v, ok, err := c.Get(ctx, Logical(keys.RenewStatusKey(state)))
	if err != nil {
		return false, err
	}
	return ok && v == keys.InProgress, nil
}

// MarkRenewalInProgress flags a renewal for state as running. Entries for state are not
// reaped until CompleteRenewal is called.
func (c *AuthCache) MarkRenewalInProgress(ctx context.Context, state string) error {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()
	return c.Set(ctx, Logical(keys.RenewStatusKey(state)), keys.InProgress)
}

// CompleteRenewal clears the renewal flag for state.
func (c *AuthCache) CompleteRenewal(ctx context.Context, state string) error {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()
	return c.Remove(ctx, Logical(keys.RenewStatusKey(state)))
}

// migrate copies the persistent entries written by clients that only knew the legacy schema.
func (c *AuthCache) migrate(ctx context.Context) error {
	for _, name := range keys.MigratedKeys {
		key := Logical(name)
		v, ok, err := c.backend.Get(ctx, c.ns.Physical(key, keys.Legacy))
		if err != nil {
			return err
		}
		if !ok || v == "" {
			continue
		}
		// Older clients only write the legacy schema, so its value wins.
		if err := c.Set(ctx, key, v); err != nil {
			return err
		}
		c.log.Log(ctx, logger.Debug, "migrated legacy entry", logger.Field("key", name))
	}
	return nil
}

// ownsStructured reports whether physical is a structured key written for this client.
func (c *AuthCache) ownsStructured(physical string) bool {
	if !keys.Parse(physical).IsStructured() {
		return false
	}
	return gjson.Get(physical, "clientId").String() == c.clientID
}

func itemOptions(options []ItemOption) ItemOptions {
	var opts ItemOptions
	for _, o := range options {
		o(&opts)
	}
	return opts
}
