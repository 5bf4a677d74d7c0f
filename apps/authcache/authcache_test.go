// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authcache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cache"
	cacheErrors "github.com/AzureAD/microsoft-authentication-cache-for-go/apps/errors"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/cookies"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/keys"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/stores/bolt"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/stores/memory"
	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "app1"

// opRecorder is a custom store that records the order of its calls.
type opRecorder struct {
	mu    sync.Mutex
	ops   []string
	inner *memory.Store
}

func (r *opRecorder) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) store() cache.StoreFuncs {
	return cache.StoreFuncs{
		GetFunc: func(ctx context.Context, key string) (string, bool, error) {
			return r.inner.Get(ctx, key)
		},
		SetFunc: func(ctx context.Context, key, value string) error {
			r.record("set " + key)
			return r.inner.Set(ctx, key, value)
		},
		RemoveFunc: func(ctx context.Context, key string) error {
			r.record("remove " + key)
			return r.inner.Remove(ctx, key)
		},
		ClearFunc: r.inner.Clear,
		KeysFunc:  r.inner.Keys,
	}
}

func newTestCache(t *testing.T, options ...Option) (*AuthCache, *memory.Store, *cookies.Jar) {
	t.Helper()
	session := memory.New()
	jar := cookies.NewJar()
	c, err := New(context.Background(), testClientID, Host{Session: session, Cookies: jar}, options...)
	require.NoError(t, err)
	return c, session, jar
}

func storedKeys(t *testing.T, s cache.Store) []string {
	t.Helper()
	got, err := s.Keys(context.Background())
	require.NoError(t, err)
	return got
}

func TestNewErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, testClientID, Host{Session: memory.New()}, WithLocation(LocalStorage))
	var unsupported *cacheErrors.UnsupportedStorageError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "localStorage", unsupported.Kind)

	_, err = New(ctx, testClientID, Host{}, WithLocation(SessionStorage))
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "sessionStorage", unsupported.Kind)

	tests := []struct {
		desc     string
		clientID string
		options  []Option
	}{
		{desc: "custom without store", clientID: testClientID, options: []Option{WithLocation(CustomStorage)}},
		{desc: "empty client", clientID: ""},
		{desc: "empty prefix", clientID: testClientID, options: []Option{WithPrefix("")}},
		{desc: "delimiter in prefix", clientID: testClientID, options: []Option{WithPrefix("a|b")}},
		{desc: "negative cookie expiry", clientID: testClientID, options: []Option{WithCookieExpiry(-1)}},
	}
	for _, test := range tests {
		_, err := New(ctx, test.clientID, Host{Session: memory.New()}, test.options...)
		var ce *cacheErrors.ConfigurationError
		assert.ErrorAs(t, err, &ce, test.desc)
	}
}

func TestRoundTripPerBackend(t *testing.T) {
	ctx := context.Background()

	local, err := bolt.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	defer local.Close()
	rec := &opRecorder{inner: memory.New()}

	tests := []struct {
		desc    string
		host    Host
		options []Option
	}{
		{desc: "local", host: Host{Local: local}, options: []Option{WithLocation(LocalStorage)}},
		{desc: "session", host: Host{Session: memory.New()}},
		{desc: "custom", options: []Option{WithStore(rec.store())}},
	}

	for _, test := range tests {
		c, err := New(ctx, testClientID, test.host, test.options...)
		require.NoError(t, err, test.desc)

		key := Logical(keys.IDToken)
		require.NoError(t, c.Set(ctx, key, "header.payload.signature"), test.desc)
		got, ok, err := c.Get(ctx, key)
		require.NoError(t, err, test.desc)
		assert.True(t, ok, test.desc)
		assert.Equal(t, "header.payload.signature", got, test.desc)

		_, ok, err = c.Get(ctx, Logical("never.written"))
		require.NoError(t, err, test.desc)
		assert.False(t, ok, test.desc)
	}
}

func TestLegacySchemaCoWrite(t *testing.T) {
	ctx := context.Background()
	c, session, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, Logical(keys.ClientInfo), "info"))
	if diff := pretty.Compare([]string{"msal.app1.client.info", "msal.client.info"}, storedKeys(t, session)); diff != "" {
		t.Errorf("keys after Set: -want/+got:\n%s", diff)
	}
	for _, k := range []string{"msal.app1.client.info", "msal.client.info"} {
		v, ok, err := session.Get(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "info", v, k)
	}

	require.NoError(t, c.Remove(ctx, Logical(keys.ClientInfo)))
	assert.Empty(t, storedKeys(t, session))

	// Removing again is a no-op.
	require.NoError(t, c.Remove(ctx, Logical(keys.ClientInfo)))
	assert.Empty(t, storedKeys(t, session))
}

func TestWithoutLegacySchema(t *testing.T) {
	ctx := context.Background()
	c, session, _ := newTestCache(t, WithoutLegacySchema())

	require.NoError(t, c.Set(ctx, Logical(keys.IDToken), "tok"))
	assert.Equal(t, []string{"msal.app1.idtoken"}, storedKeys(t, session))
}

func TestStructuredKeyWrittenOnce(t *testing.T) {
	ctx := context.Background()
	c, session, _ := newTestCache(t)

	key, err := AccessTokenKey{Authority: "https://login.example/common", ClientID: testClientID, Scopes: "user.read", HomeAccountIdentifier: "acct1"}.Key()
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, key, "{}"))

	got := storedKeys(t, session)
	require.Len(t, got, 1)
	assert.Equal(t, key.String(), got[0])

	current, legacy := c.PhysicalKeys(key)
	assert.Equal(t, current, legacy)
}

func TestSetIdempotent(t *testing.T) {
	ctx := context.Background()
	once, onceStore, _ := newTestCache(t)
	twice, twiceStore, _ := newTestCache(t)

	require.NoError(t, once.Set(ctx, Logical(keys.IDToken), "tok"))
	require.NoError(t, twice.Set(ctx, Logical(keys.IDToken), "tok"))
	require.NoError(t, twice.Set(ctx, Logical(keys.IDToken), "tok"))

	assert.Equal(t, storedKeys(t, onceStore), storedKeys(t, twiceStore))
	v1, _, _ := onceStore.Get(ctx, "msal.app1.idtoken")
	v2, _, _ := twiceStore.Get(ctx, "msal.app1.idtoken")
	assert.Equal(t, v1, v2)
}

func TestWriteOrder(t *testing.T) {
	ctx := context.Background()
	rec := &opRecorder{inner: memory.New()}
	c, err := New(ctx, testClientID, Host{}, WithStore(rec.store()))
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, Logical(keys.IDToken), "tok"))
	require.NoError(t, c.Remove(ctx, Logical(keys.IDToken)))

	want := []string{
		"set msal.app1.idtoken",
		"set msal.idtoken",
		"remove msal.app1.idtoken",
		"remove msal.idtoken",
	}
	if diff := pretty.Compare(want, rec.ops); diff != "" {
		t.Errorf("TestWriteOrder: -want/+got:\n%s", diff)
	}
}

func TestHostErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("bridge unavailable")
	store := cache.StoreFuncs{
		GetFunc: func(context.Context, string) (string, bool, error) { return "", false, boom },
		SetFunc: func(context.Context, string, string) error { return boom },
	}
	c, err := New(ctx, testClientID, Host{}, WithStore(store), WithoutLegacySchema())
	require.NoError(t, err)

	_, _, err = c.Get(ctx, Logical(keys.IDToken))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Set(ctx, Logical(keys.IDToken), "v"), boom)

	var ue *cacheErrors.UnimplementedError
	require.ErrorAs(t, c.Remove(ctx, Logical(keys.IDToken)), &ue)
	assert.Equal(t, "Remove", ue.Op)
	require.ErrorAs(t, c.ResetAll(ctx), &ue)
	assert.Equal(t, "Keys", ue.Op)
}

func TestMigrationFailureAbortsNew(t *testing.T) {
	boom := errors.New("bridge unavailable")
	store := cache.StoreFuncs{
		GetFunc: func(context.Context, string) (string, bool, error) { return "", false, boom },
	}
	_, err := New(context.Background(), testClientID, Host{}, WithStore(store))
	assert.ErrorIs(t, err, boom)
}

func TestCookieMirror(t *testing.T) {
	ctx := context.Background()
	c, session, jar := newTestCache(t, WithoutLegacySchema())

	stateKey := Logical(TemporaryKey(keys.StateLogin, "s1"))
	require.NoError(t, c.Set(ctx, stateKey, "s1", WithCookie()))
	assert.Equal(t, "msal.app1.state.login|s1=s1", jar.Cookie())

	// The cookie wins when asked for, even over a newer backend value.
	require.NoError(t, session.Set(ctx, "msal.app1.state.login|s1", "backend"))
	got, ok, err := c.Get(ctx, stateKey, WithCookie())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s1", got)

	got, _, err = c.Get(ctx, stateKey)
	require.NoError(t, err)
	assert.Equal(t, "backend", got)

	// Without a cookie the backend answers.
	jar.SetCookie("msal.app1.state.login|s1=;path=/;max-age=0")
	got, _, err = c.Get(ctx, stateKey, WithCookie())
	require.NoError(t, err)
	assert.Equal(t, "backend", got)
}

func TestMigrateLegacyEntries(t *testing.T) {
	ctx := context.Background()
	session := memory.New()
	require.NoError(t, session.Set(ctx, "msal.idtoken", "old-token"))
	require.NoError(t, session.Set(ctx, "msal.error", ""))

	c, err := New(ctx, testClientID, Host{Session: session})
	require.NoError(t, err)

	got, ok, err := c.Get(ctx, Logical(keys.IDToken))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "old-token", got)

	_, ok, err = c.Get(ctx, Logical(keys.Error))
	require.NoError(t, err)
	assert.False(t, ok, "empty legacy entries are not migrated")
}

func TestGlobalHandle(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(Shutdown)

	_, err := Default()
	require.ErrorIs(t, err, ErrNotInitialized)

	c, err := Init(ctx, testClientID, Host{Session: memory.New()})
	require.NoError(t, err)

	_, err = Init(ctx, "other", Host{Session: memory.New()})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.Equal(t, testClientID, got.ClientID())

	Shutdown()
	_, err = Init(ctx, "other", Host{Session: memory.New()})
	require.NoError(t, err)
}
