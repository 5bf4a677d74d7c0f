// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package keys builds the physical keys the auth cache writes to storage.

A Key is either logical, an application name such as "idtoken" or "authority|<state>", or
structured, a JSON object used verbatim (access token entries). Logical keys are namespaced
in one of two schema generations:

	Current: <prefix>.<clientID>.<key>
	Legacy:  <prefix>.<key>

Structured keys already carry the client and account in their fields and are never
namespaced.
*/
package keys

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	// Prefix is the default namespace for every entry written by the cache.
	Prefix = "msal"
	// Delimiter separates the segments of temporary keys.
	Delimiter = "|"
	// InProgress is the renewal status value of a renewal that has not finished.
	InProgress = "In Progress"
	// ADALIDToken is the key written by the previous generation of the library.
	ADALIDToken = "adal.idtoken"
)

// Temporary keys hold the state of a single request.
const (
	Authority           = "authority"
	AcquireTokenAccount = "acquireToken.account"
	SessionState        = "session.state"
	StateLogin          = "state.login"
	StateAcquireToken   = "state.acquireToken"
	StateRenew          = "state.renew"
	NonceIDToken        = "nonce.idtoken"
	LoginRequest        = "login.request"
	RenewStatus         = "token.renew.status"
	URLHash             = "urlHash"
	InteractionStatus   = "interaction_status"
	RedirectRequest     = "redirect_request"
)

// Persistent and error keys survive across requests.
const (
	IDToken    = "idtoken"
	ClientInfo = "client.info"

	Error     = "error"
	ErrorDesc = "error.description"
	LoginErr  = "login.error"
)

// MigratedKeys are copied from the legacy to the current schema when a cache opens.
var MigratedKeys = []string{IDToken, ClientInfo, Error, ErrorDesc}

// StateCookies are the cookies that hold per-request state.
var StateCookies = []string{NonceIDToken, StateLogin, LoginRequest, StateAcquireToken}

// Generation is a physical key schema.
type Generation int

const (
	Current Generation = iota
	Legacy
)

func (g Generation) String() string {
	switch g {
	case Current:
		return "current"
	case Legacy:
		return "legacy"
	}
	return fmt.Sprintf("Generation(%d)", int(g))
}

// Key is a cache key before namespacing. The zero value is the empty logical key.
type Key struct {
	raw        string
	structured bool
}

// Logical returns a key that will be namespaced.
func Logical(name string) Key {
	return Key{raw: name}
}

// Structured JSON encodes v, which must encode to a JSON object, into a key that is used as is.
func Structured(v any) (Key, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Key{}, fmt.Errorf("encoding structured key: %w", err)
	}
	if !gjson.ParseBytes(b).IsObject() {
		return Key{}, fmt.Errorf("structured key must encode to a JSON object, got %s", b)
	}
	return Key{raw: string(b), structured: true}, nil
}

// Parse classifies a raw key read back from storage. A string holding a JSON object is
// structured, anything else is logical.
func Parse(raw string) Key {
	return Key{raw: raw, structured: isJSONObject(raw)}
}

func isJSONObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}

// String returns the key text before namespacing.
func (k Key) String() string {
	return k.raw
}

// IsStructured reports whether k is used verbatim.
func (k Key) IsStructured() bool {
	return k.structured
}

// Namespacer maps keys to physical keys.
type Namespacer struct {
	Prefix   string
	ClientID string
}

// Physical returns the physical key for k in generation gen. Keys that are structured or
// already carry a namespace are returned unchanged, so Physical is idempotent.
func (n Namespacer) Physical(k Key, gen Generation) string {
	if k.structured || n.namespaced(k.raw) {
		return k.raw
	}
	if gen == Legacy {
		return n.Prefix + "." + k.raw
	}
	return n.Prefix + "." + n.ClientID + "." + k.raw
}

// Owns reports whether a physical key belongs to this namespace.
func (n Namespacer) Owns(physical string) bool {
	return strings.Contains(physical, n.Prefix)
}

func (n Namespacer) namespaced(raw string) bool {
	return strings.HasPrefix(raw, n.Prefix) || strings.HasPrefix(raw, ADALIDToken)
}

// TemporaryKey returns the key of temporary entry name for request state.
func TemporaryKey(name, state string) string {
	return name + Delimiter + state
}

// RenewStatusKey returns the key of the renewal status entry for state.
func RenewStatusKey(state string) string {
	return TemporaryKey(RenewStatus, state)
}

// AcquireTokenAccountKey returns the key recording which account a token request for state
// was made for.
func AcquireTokenAccountKey(accountID, state string) string {
	return strings.Join([]string{AcquireTokenAccount, accountID, state}, Delimiter)
}

// AuthorityKey returns the key recording the authority of the request for state.
func AuthorityKey(state string) string {
	return TemporaryKey(Authority, state)
}

// StateFromKey returns the request state embedded in a temporary key, which is its last
// delimiter-separated segment. ok is false when the key has no segment after a delimiter.
func StateFromKey(key string) (state string, ok bool) {
	i := strings.LastIndex(key, Delimiter)
	if i < 0 || i == len(key)-1 {
		return "", false
	}
	return key[i+1:], true
}

// NewState returns a fresh request state.
func NewState() string {
	return uuid.NewString()
}
