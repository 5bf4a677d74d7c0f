// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCtl runs one invocation against the bolt file in dir.
func runCtl(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "absent.toml"),
		"--client-id", "app1",
		"--db", filepath.Join(dir, "cache.db"),
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func lines(s string) []string {
	return strings.Fields(s)
}

func TestSetGetRemove(t *testing.T) {
	dir := t.TempDir()

	_, err := runCtl(t, dir, "set", "idtoken", "tok")
	require.NoError(t, err)

	out, err := runCtl(t, dir, "get", "idtoken")
	require.NoError(t, err)
	assert.Equal(t, "tok\n", out)

	out, err = runCtl(t, dir, "keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"msal.app1.idtoken", "msal.idtoken"}, lines(out))

	_, err = runCtl(t, dir, "rm", "idtoken")
	require.NoError(t, err)
	_, err = runCtl(t, dir, "get", "idtoken")
	assert.ErrorContains(t, err, "no entry for idtoken")
}

func TestRenewalAndReap(t *testing.T) {
	dir := t.TempDir()

	for _, args := range [][]string{
		{"set", "authority|s1", "https://login.example/common"},
		{"set", "state.login|s1", "s1"},
		{"renewal", "s1", "--start"},
	} {
		_, err := runCtl(t, dir, args...)
		require.NoError(t, err, args)
	}

	out, err := runCtl(t, dir, "renewal", "s1")
	require.NoError(t, err)
	assert.Equal(t, "in progress\n", out)

	_, err = runCtl(t, dir, "reap", "s1")
	require.NoError(t, err)
	out, err = runCtl(t, dir, "keys")
	require.NoError(t, err)
	assert.Len(t, lines(out), 6, "entries are kept during renewal")

	_, err = runCtl(t, dir, "renewal", "s1", "--complete")
	require.NoError(t, err)
	out, err = runCtl(t, dir, "renewal", "s1")
	require.NoError(t, err)
	assert.Equal(t, "idle\n", out)

	_, err = runCtl(t, dir, "purge-acquire")
	require.NoError(t, err)
	out, err = runCtl(t, dir, "keys")
	require.NoError(t, err)
	assert.Empty(t, lines(out))

	_, err = runCtl(t, dir, "renewal", "s1", "--start", "--complete")
	assert.Error(t, err)
}

func TestTokensAndReset(t *testing.T) {
	dir := t.TempDir()
	key := `{"authority":"https://login.example/common","clientId":"app1","scopes":"user.read","homeAccountIdentifier":"acct1"}`
	value := `{"accessToken":"at","idToken":"id","expiresIn":"1700000000","homeAccountIdentifier":"acct1"}`

	_, err := runCtl(t, dir, "set", key, value)
	require.NoError(t, err)

	out, err := runCtl(t, dir, "tokens", "app1", "acct1")
	require.NoError(t, err)
	assert.Equal(t, "https://login.example/common\tuser.read\t2023-11-14T22:13:20Z\n", out)

	out, err = runCtl(t, dir, "keys")
	require.NoError(t, err)
	assert.Equal(t, key+"\n", out)

	_, err = runCtl(t, dir, "reset")
	require.NoError(t, err)
	out, err = runCtl(t, dir, "keys")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestArgumentErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := runCtl(t, dir, "get")
	assert.Error(t, err)
	_, err = runCtl(t, dir, "set", "only-key")
	assert.Error(t, err)

	// The host is released after a failed command.
	_, err = runCtl(t, dir, "get", "absent")
	assert.Error(t, err)
	_, err = runCtl(t, dir, "set", "idtoken", "tok")
	assert.NoError(t, err)
}
