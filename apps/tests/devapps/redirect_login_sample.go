// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/internal/local"
)

func redirectLogin(ctx context.Context, c *authcache.AuthCache) {
	state, err := local.BeginLogin(ctx, c, "https://login.microsoftonline.com/common")
	if err != nil {
		log.Fatal(err)
	}

	srv, err := local.New(c, 0, nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Shutdown()

	fmt.Printf("Open %s/?state=%s&code=fake_code to finish the login\n", srv.Addr, state)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	res := srv.Result(ctx)
	if res.Err != nil {
		log.Fatal(res.Err)
	}
	fmt.Println("Got authorization code " + res.Code)
}
