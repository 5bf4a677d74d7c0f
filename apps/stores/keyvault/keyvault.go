// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package keyvault provides a storage area kept as Azure Key Vault secrets, for hosts that share
cache entries across machines.

Cache keys are free-form but secret names only allow letters, digits and dashes, so every entry
is stored under a name derived from the SHA-256 of its key. The secret value is a small JSON
envelope carrying the original key, which lets Keys list the cache without a side index.
Secrets written by a Store are tagged with its name prefix; untagged secrets in the same vault
are never listed or removed.

Key Vault soft deletes secrets, and a soft-deleted name cannot be written until it is purged or
recovered. Remove waits for the deletion to finish and purges it. Set reclaims a name still held
by a deleted secret, purging it or, when purging is not permitted, recovering and overwriting it.
*/
package keyvault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/logger"
	"github.com/cenkalti/backoff/v5"
)

// DefaultNamePrefix prefixes secret names when WithNamePrefix isn't used.
const DefaultNamePrefix = "msal-auth-cache"

// tagName marks the secrets a Store owns. Its value is the name prefix.
const tagName = "authcache"

const contentType = "application/vnd.msal.cache-entry+json"

// maxWait bounds how long a call waits on Key Vault to finish a delete, purge or recovery.
const maxWait = time.Minute

// secretsClient is the subset of *azsecrets.Client used by Store.
type secretsClient interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
	GetDeletedSecret(ctx context.Context, name string, options *azsecrets.GetDeletedSecretOptions) (azsecrets.GetDeletedSecretResponse, error)
	PurgeDeletedSecret(ctx context.Context, name string, options *azsecrets.PurgeDeletedSecretOptions) (azsecrets.PurgeDeletedSecretResponse, error)
	RecoverDeletedSecret(ctx context.Context, name string, options *azsecrets.RecoverDeletedSecretOptions) (azsecrets.RecoverDeletedSecretResponse, error)
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

type envelope struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Store is a storage area backed by Key Vault secrets. It is safe for concurrent use.
type Store struct {
	client   secretsClient
	prefix   string
	log      *logger.Logger
	backOff  func() backoff.BackOff
	maxTries uint
}

type storeOptions struct {
	prefix        string
	clientOptions *azsecrets.ClientOptions
	logger        *slog.Logger
	backOff       func() backoff.BackOff
	maxTries      uint
}

// Option configures New.
type Option func(*storeOptions)

// WithNamePrefix sets the prefix of secret names and the owner tag. Use distinct prefixes to
// keep several caches in one vault.
func WithNamePrefix(prefix string) Option {
	return func(o *storeOptions) {
		o.prefix = prefix
	}
}

// WithClientOptions passes options to the underlying azsecrets client.
func WithClientOptions(options *azsecrets.ClientOptions) Option {
	return func(o *storeOptions) {
		o.clientOptions = options
	}
}

// WithLogger enables logging of failed purges.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

// New creates a Store for the vault at vaultURL, authenticating with cred.
func New(vaultURL string, cred azcore.TokenCredential, options ...Option) (*Store, error) {
	opts := storeOptions{prefix: DefaultNamePrefix}
	for _, o := range options {
		o(&opts)
	}
	if err := validPrefix(opts.prefix); err != nil {
		return nil, err
	}
	client, err := azsecrets.NewClient(vaultURL, cred, opts.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("creating Key Vault client: %w", err)
	}
	return newStore(client, opts), nil
}

func newStore(client secretsClient, opts storeOptions) *Store {
	if opts.backOff == nil {
		opts.backOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	return &Store{
		client:   client,
		prefix:   opts.prefix,
		log:      logger.New(opts.logger).With(logger.Field("storage", "keyvault")),
		backOff:  opts.backOff,
		maxTries: opts.maxTries,
	}
}

// validPrefix leaves room for the dash and the 32 hex digits of the hash within Key Vault's
// 127 character limit.
func validPrefix(prefix string) error {
	if prefix == "" || len(prefix) > 94 {
		return &errors.ConfigurationError{Field: "namePrefix", Reason: "must be 1 to 94 characters"}
	}
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return &errors.ConfigurationError{Field: "namePrefix", Reason: fmt.Sprintf("invalid character %q", r)}
		}
	}
	return nil
}

// SecretName returns the name of the secret holding key.
func (s *Store) SecretName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + "-" + hex.EncodeToString(sum[:])[:32]
}

// Get implements cache.Store.Get().
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	e, ok, err := s.read(ctx, s.SecretName(key))
	if err != nil || !ok {
		return "", false, err
	}
	// A different key hashing to the same name is treated as absent.
	if e.Key != key {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *Store) read(ctx context.Context, name string) (envelope, bool, error) {
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isNotFound(err) {
			return envelope{}, false, nil
		}
		return envelope{}, false, fmt.Errorf("reading secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return envelope{}, false, nil
	}
	var e envelope
	if err := json.Unmarshal([]byte(*resp.Value), &e); err != nil {
		return envelope{}, false, fmt.Errorf("secret %s does not hold a cache entry: %w", name, err)
	}
	return e, true, nil
}

// Set implements cache.Store.Set().
func (s *Store) Set(ctx context.Context, key, value string) error {
	b, err := json.Marshal(envelope{Key: key, Value: value})
	if err != nil {
		return err
	}
	name := s.SecretName(key)
	params := azsecrets.SetSecretParameters{
		Value:       to.Ptr(string(b)),
		ContentType: to.Ptr(contentType),
		Tags:        map[string]*string{tagName: to.Ptr(s.prefix)},
	}
	_, err = s.client.SetSecret(ctx, name, params, nil)
	if hasStatus(err, http.StatusConflict) {
		// The name is held by a deleted secret that was never purged.
		if err := s.reclaim(ctx, name); err != nil {
			return fmt.Errorf("reclaiming deleted secret %s: %w", name, err)
		}
		err = s.retry(ctx, func() error {
			_, err := s.client.SetSecret(ctx, name, params, nil)
			return err
		}, http.StatusConflict)
	}
	if err != nil {
		return fmt.Errorf("writing secret %s: %w", name, err)
	}
	return nil
}

// Remove implements cache.Store.Remove(). The secret is deleted and, once the deletion is
// complete, purged so the name can be written again right away. A failed purge is logged, not
// returned; Set reclaims the name later.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.remove(ctx, s.SecretName(key))
}

func (s *Store) remove(ctx context.Context, name string) error {
	if _, err := s.client.DeleteSecret(ctx, name, nil); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting secret %s: %w", name, err)
	}
	if err := s.purge(ctx, name); err != nil {
		s.log.Log(ctx, logger.Warn, "purging deleted secret failed", logger.Field("secret", name), logger.Field("error", err))
	}
	return nil
}

// purge waits until the deleted secret is listed as deleted, then purges it.
func (s *Store) purge(ctx context.Context, name string) error {
	err := s.retry(ctx, func() error {
		_, err := s.client.GetDeletedSecret(ctx, name, nil)
		return err
	}, http.StatusNotFound)
	if err != nil {
		return fmt.Errorf("waiting for deletion: %w", err)
	}
	return s.retry(ctx, func() error {
		_, err := s.client.PurgeDeletedSecret(ctx, name, nil)
		return err
	}, http.StatusConflict)
}

// reclaim frees name from a soft-deleted secret. When purging fails the secret is recovered
// instead, so the caller can overwrite it.
func (s *Store) reclaim(ctx context.Context, name string) error {
	perr := s.purge(ctx, name)
	if perr == nil {
		return nil
	}
	s.log.Log(ctx, logger.Warn, "purge failed, recovering deleted secret", logger.Field("secret", name), logger.Field("error", perr))
	err := s.retry(ctx, func() error {
		_, err := s.client.RecoverDeletedSecret(ctx, name, nil)
		return err
	}, http.StatusConflict)
	if err != nil {
		return fmt.Errorf("purge: %w; recover: %w", perr, err)
	}
	return nil
}

// retry calls op until it succeeds, fails with a status not in transient, or the back off gives
// up.
func (s *Store) retry(ctx context.Context, op func() error, transient ...int) error {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxElapsedTime(maxWait),
	}
	if s.maxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(s.maxTries))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		for _, code := range transient {
			if hasStatus(err, code) {
				return struct{}{}, err
			}
		}
		return struct{}{}, backoff.Permanent(err)
	}, opts...)
	return err
}

// Clear implements cache.Store.Clear(). Only secrets tagged with the Store's prefix are removed.
func (s *Store) Clear(ctx context.Context) error {
	names, err := s.ownedNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.remove(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Keys implements cache.Store.Keys(). Keys are returned in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	names, err := s.ownedNames(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		e, ok, err := s.read(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, e.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ownedNames lists the enabled secrets tagged with the Store's prefix.
func (s *Store) ownedNames(ctx context.Context) ([]string, error) {
	var names []string
	pager := s.client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			if tag := props.Tags[tagName]; tag == nil || *tag != s.prefix {
				continue
			}
			if props.Attributes != nil && props.Attributes.Enabled != nil && !*props.Attributes.Enabled {
				continue
			}
			names = append(names, props.ID.Name())
		}
	}
	return names, nil
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == code
}
