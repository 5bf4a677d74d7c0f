// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authcache

import (
	"context"
	"strings"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/keys"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/logger"
)

// AllAccessTokens returns the access token entries whose physical key contains both clientID
// and homeAccountID. Entries that do not decode as access tokens are skipped. Items come in
// the order the storage area lists its keys.
func (c *AuthCache) AllAccessTokens(ctx context.Context, clientID, homeAccountID string) ([]AccessTokenCacheItem, error) {
	physical, err := c.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var items []AccessTokenCacheItem
	for _, k := range physical {
		if !strings.Contains(k, clientID) || !strings.Contains(k, homeAccountID) {
			continue
		}
		v, ok, err := c.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok || v == "" {
			continue
		}
		item, err := decodeAccessToken(k, v)
		if err != nil {
			c.log.Log(ctx, logger.Debug, "skipping entry that is not an access token", logger.Field("key", k), logger.Field("reason", err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ResetTemporaryEntries removes the entries of a finished request. With a non-empty state it
// removes every entry whose physical key contains state; with an empty state every entry of
// the namespace. Nothing is removed while a renewal for state is in progress; a later call
// reaps the entries once CompleteRenewal has run. Removed entries lose their mirrored cookie,
// and the request's state cookies are cleared. The interaction status and redirect request
// entries are always removed.
//
// The renewal check and the removal are not atomic with respect to writers that bypass this
// AuthCache, such as another process sharing the storage area.
func (c *AuthCache) ResetTemporaryEntries(ctx context.Context, state string) error {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()

	physical, err := c.backend.Keys(ctx)
	if err != nil {
		return err
	}

	reaped, skipped := 0, 0
	for _, k := range physical {
		if state == "" {
			if !c.ns.Owns(k) {
				continue
			}
		} else if !strings.Contains(k, state) {
			continue
		}

		renewing, err := c.IsRenewalInProgress(ctx, state)
		if err != nil {
			return err
		}
		if renewing {
			skipped++
			continue
		}
		if err := c.Remove(ctx, keys.Parse(k)); err != nil {
			return err
		}
		c.cookies.Clear(k)
		reaped++
	}
	if reaped > 0 {
		c.clearStateCookies(state)
	}
	if skipped > 0 {
		c.log.Log(ctx, logger.Debug, "renewal in progress, temporary entries kept", logger.Field("state", state), logger.Field("kept", skipped))
	}

	if err := c.Remove(ctx, Logical(keys.InteractionStatus)); err != nil {
		return err
	}
	return c.Remove(ctx, Logical(keys.RedirectRequest))
}

// RemoveAcquireTokenEntries removes the authority and account entries recorded for token
// requests, limited to keys containing state when state is not empty. For each entry the
// request state is read from the key's last segment; when no renewal for it is in progress the
// entry, the renewal status and the login and acquire-token state for it are removed, and
// their cookies cleared.
func (c *AuthCache) RemoveAcquireTokenEntries(ctx context.Context, state string) error {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()

	physical, err := c.backend.Keys(ctx)
	if err != nil {
		return err
	}

	for _, k := range physical {
		if !c.isAcquireTokenEntry(k) {
			continue
		}
		if state != "" && !strings.Contains(k, state) {
			continue
		}
		s, ok := keys.StateFromKey(k)
		if !ok {
			continue
		}
		renewing, err := c.IsRenewalInProgress(ctx, s)
		if err != nil {
			return err
		}
		if renewing {
			c.log.Log(ctx, logger.Debug, "renewal in progress, acquire token entry kept", logger.Field("key", k))
			continue
		}

		related := []string{
			keys.RenewStatusKey(s),
			keys.TemporaryKey(keys.StateLogin, s),
			keys.TemporaryKey(keys.StateAcquireToken, s),
		}
		if err := c.Remove(ctx, keys.Parse(k)); err != nil {
			return err
		}
		for _, r := range related {
			if err := c.Remove(ctx, Logical(r)); err != nil {
				return err
			}
		}
		c.cookies.Clear(k)
		c.cookies.Clear(c.ns.Physical(Logical(keys.TemporaryKey(keys.StateLogin, s)), keys.Current))
		c.cookies.Clear(c.ns.Physical(Logical(keys.TemporaryKey(keys.StateAcquireToken, s)), keys.Current))
	}
	return nil
}

func (c *AuthCache) isAcquireTokenEntry(physical string) bool {
	if !c.ns.Owns(physical) || keys.Parse(physical).IsStructured() {
		return false
	}
	return strings.Contains(physical, keys.Authority) || strings.Contains(physical, keys.AcquireTokenAccount)
}

// clearStateCookies clears the state cookies of a request, or every cookie of the namespace
// when state is empty.
func (c *AuthCache) clearStateCookies(state string) {
	if !c.cookies.Enabled() {
		return
	}
	if state == "" {
		for _, name := range c.cookies.Names() {
			if c.ns.Owns(name) {
				c.cookies.Clear(name)
			}
		}
		return
	}
	for _, name := range keys.StateCookies {
		c.cookies.Clear(c.ns.Physical(Logical(keys.TemporaryKey(name, state)), keys.Current))
	}
}
