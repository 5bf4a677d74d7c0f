// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// tokenEnv holds a Key Vault access token, for example the output of
// "az account get-access-token --resource https://vault.azure.net --query accessToken".
const tokenEnv = "AUTHCACHE_KEY_VAULT_TOKEN"

// staticCredential hands out a token obtained elsewhere.
type staticCredential struct {
	token string
}

func (c staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: c.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// credentialFromEnv returns nil when no token is set, which config.OpenHost reports if a Key
// Vault is configured.
func credentialFromEnv() azcore.TokenCredential {
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil
	}
	return staticCredential{token: token}
}
