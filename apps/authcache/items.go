// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authcache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/keys"
)

// AccessTokenKey is the structured key of an access token entry. The field names match what
// the browser library writes, so the two can share storage.
type AccessTokenKey struct {
	Authority             string `json:"authority"`
	ClientID              string `json:"clientId"`
	Scopes                string `json:"scopes"`
	HomeAccountIdentifier string `json:"homeAccountIdentifier"`
}

// Key returns k as a structured cache key.
func (k AccessTokenKey) Key() (Key, error) {
	return keys.Structured(k)
}

// AccessTokenValue is the value of an access token entry.
type AccessTokenValue struct {
	AccessToken           string `json:"accessToken"`
	IDToken               string `json:"idToken"`
	ExpiresIn             string `json:"expiresIn"`
	HomeAccountIdentifier string `json:"homeAccountIdentifier"`
}

// NewAccessTokenValue is the constructor for AccessTokenValue.
func NewAccessTokenValue(accessToken, idToken string, expiresOn time.Time, homeAccountID string) AccessTokenValue {
	return AccessTokenValue{
		AccessToken:           accessToken,
		IDToken:               idToken,
		ExpiresIn:             strconv.FormatInt(expiresOn.Unix(), 10),
		HomeAccountIdentifier: homeAccountID,
	}
}

// ExpiresOn returns the expiry stored in ExpiresIn, which holds epoch seconds.
func (v AccessTokenValue) ExpiresOn() (time.Time, error) {
	secs, err := strconv.ParseInt(v.ExpiresIn, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("access token expiry %q is not epoch seconds: %w", v.ExpiresIn, err)
	}
	return time.Unix(secs, 0), nil
}

// Encode returns v as a cache value.
func (v AccessTokenValue) Encode() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AccessTokenCacheItem is an access token entry read back from storage.
type AccessTokenCacheItem struct {
	Key   AccessTokenKey
	Value AccessTokenValue
}

// decodeAccessToken decodes a physical key and value pair. Any failure means the entry is not
// an access token written by a compatible client.
func decodeAccessToken(physical, value string) (AccessTokenCacheItem, error) {
	var item AccessTokenCacheItem
	if !keys.Parse(physical).IsStructured() {
		return item, fmt.Errorf("key is not structured")
	}
	if err := json.Unmarshal([]byte(physical), &item.Key); err != nil {
		return item, fmt.Errorf("decoding key: %w", err)
	}
	if err := json.Unmarshal([]byte(value), &item.Value); err != nil {
		return item, fmt.Errorf("decoding value: %w", err)
	}
	return item, nil
}
