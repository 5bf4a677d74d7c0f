// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
)

// cacheAccessTokens writes a few access tokens for one account, reads them back and exports
// them to file.
func cacheAccessTokens(ctx context.Context, c *authcache.AuthCache, file string) {
	const account = "my_uid.my_utid"
	for _, scope := range []string{"user.read", "mail.read"} {
		key, err := authcache.AccessTokenKey{
			Authority:             "https://login.microsoftonline.com/common",
			ClientID:              c.ClientID(),
			Scopes:                scope,
			HomeAccountIdentifier: account,
		}.Key()
		if err != nil {
			log.Fatal(err)
		}
		value, err := authcache.NewAccessTokenValue("fake_access_token", "x.e30", time.Now().Add(time.Hour), account).Encode()
		if err != nil {
			log.Fatal(err)
		}
		if err := c.Set(ctx, key, value); err != nil {
			log.Fatal(err)
		}
	}

	items, err := c.AllAccessTokens(ctx, c.ClientID(), account)
	if err != nil {
		log.Fatal(err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		log.Println(err)
	}
	err = os.WriteFile(file, data, 0600)
	if err != nil {
		log.Println(err)
	}
}
