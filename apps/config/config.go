// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package config loads the settings of a cache from a TOML file and AUTHCACHE_ environment
// variables, and opens the storage areas they describe.
package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cache"
	cacheErrors "github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cookies"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/stores/bolt"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/stores/keyvault"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/stores/memory"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config holds the settings of a cache. Environment variables win over the file.
type Config struct {
	ClientID         string `toml:"client_id" env:"AUTHCACHE_CLIENT_ID"`
	Location         string `toml:"location" env:"AUTHCACHE_LOCATION"`
	Prefix           string `toml:"prefix" env:"AUTHCACHE_PREFIX"`
	LegacySchema     bool   `toml:"legacy_schema" env:"AUTHCACHE_LEGACY_SCHEMA"`
	CookieExpiryDays int    `toml:"cookie_expiry_days" env:"AUTHCACHE_COOKIE_EXPIRY_DAYS"`

	// LocalPath is the bolt file backing localStorage.
	LocalPath string `toml:"local_path" env:"AUTHCACHE_LOCAL_PATH"`
	// SecretKey, 64 hex digits, seals the values in LocalPath.
	SecretKey string `toml:"secret_key" env:"AUTHCACHE_SECRET_KEY"`

	// KeyVaultURL selects the Key Vault store as the custom area.
	KeyVaultURL    string `toml:"key_vault_url" env:"AUTHCACHE_KEY_VAULT_URL"`
	KeyVaultPrefix string `toml:"key_vault_prefix" env:"AUTHCACHE_KEY_VAULT_PREFIX"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Location:       authcache.SessionStorage.String(),
		Prefix:         "msal",
		LegacySchema:   true,
		KeyVaultPrefix: keyvault.DefaultNamePrefix,
	}
}

// Load reads the file at path over Default() and applies the environment. A missing file is
// not an error. The result is not validated.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &c); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return c, nil
}

// Validate reports the first invalid setting as a *errors.ConfigurationError.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return &cacheErrors.ConfigurationError{Field: "client_id", Reason: "cannot be empty"}
	}
	loc, err := authcache.ParseLocation(c.Location)
	if err != nil {
		return err
	}
	switch loc {
	case authcache.LocalStorage:
		if c.LocalPath == "" {
			return &cacheErrors.ConfigurationError{Field: "local_path", Reason: "required for localStorage"}
		}
	case authcache.CustomStorage:
		if c.KeyVaultURL == "" {
			return &cacheErrors.ConfigurationError{Field: "key_vault_url", Reason: "required for custom storage"}
		}
	}
	if c.SecretKey != "" {
		if _, err := c.secretKey(); err != nil {
			return err
		}
	}
	if c.CookieExpiryDays < 0 {
		return &cacheErrors.ConfigurationError{Field: "cookie_expiry_days", Reason: "cannot be negative"}
	}
	return nil
}

func (c Config) secretKey() ([32]byte, error) {
	var key [32]byte
	b, err := hex.DecodeString(c.SecretKey)
	if err != nil || len(b) != len(key) {
		return key, &cacheErrors.ConfigurationError{Field: "secret_key", Reason: "must be 64 hex digits"}
	}
	copy(key[:], b)
	return key, nil
}

// Options returns the cache options the settings describe. The custom store comes from
// OpenHost and is not included.
func (c Config) Options(l *slog.Logger) ([]authcache.Option, error) {
	loc, err := authcache.ParseLocation(c.Location)
	if err != nil {
		return nil, err
	}
	options := []authcache.Option{
		authcache.WithLocation(loc),
		authcache.WithPrefix(c.Prefix),
		authcache.WithCookieExpiry(c.CookieExpiryDays),
		authcache.WithLogger(l),
	}
	if !c.LegacySchema {
		options = append(options, authcache.WithoutLegacySchema())
	}
	return options, nil
}

// Host is the set of storage areas opened by OpenHost.
type Host struct {
	authcache.Host

	// Custom is the Key Vault store when KeyVaultURL is set.
	Custom cache.Store

	closers []io.Closer
}

// Close releases the files held by the host.
func (h *Host) Close() error {
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c.Close())
	}
	h.closers = nil
	return errors.Join(errs...)
}

// OpenHost opens every area the settings name: an in-memory session area, the bolt file when
// LocalPath is set and the Key Vault store when KeyVaultURL is set. cred is only used for Key
// Vault and may be nil otherwise. The caller must Close the host.
func (c Config) OpenHost(ctx context.Context, cred azcore.TokenCredential, l *slog.Logger) (*Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := &Host{Host: authcache.Host{Session: memory.New(), Cookies: cookies.NewJar()}}

	if c.LocalPath != "" {
		var opts []bolt.Option
		if c.SecretKey != "" {
			key, err := c.secretKey()
			if err != nil {
				return nil, err
			}
			opts = append(opts, bolt.WithSecretKey(key))
		}
		local, err := bolt.Open(c.LocalPath, opts...)
		if err != nil {
			return nil, err
		}
		h.Local = local
		h.closers = append(h.closers, local)
	}

	if c.KeyVaultURL != "" {
		if cred == nil {
			h.Close()
			return nil, &cacheErrors.ConfigurationError{Field: "key_vault_url", Reason: "no credential for Key Vault"}
		}
		kv, err := keyvault.New(c.KeyVaultURL, cred, keyvault.WithNamePrefix(c.KeyVaultPrefix), keyvault.WithLogger(l))
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Custom = kv
	}
	return h, nil
}

// Open validates the settings, opens the host and builds the cache on it.
func (c Config) Open(ctx context.Context, cred azcore.TokenCredential, l *slog.Logger) (*authcache.AuthCache, *Host, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	options, err := c.Options(l)
	if err != nil {
		return nil, nil, err
	}
	h, err := c.OpenHost(ctx, cred, l)
	if err != nil {
		return nil, nil, err
	}
	if loc, _ := authcache.ParseLocation(c.Location); loc == authcache.CustomStorage {
		options = append(options, authcache.WithStore(h.Custom))
	}
	ac, err := authcache.New(ctx, c.ClientID, h.Host, options...)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	return ac, h, nil
}
