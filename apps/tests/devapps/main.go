// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("authcache.toml")
	if err != nil {
		log.Fatal(err)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "fake_client_id"
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, host, err := cfg.Open(ctx, nil, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer host.Close()

	// Choose a sample to run.
	exampleType := "1"

	switch exampleType {
	case "1":
		// Waits for a redirect to the printed address, as an authority would send.
		redirectLogin(ctx, c)
	case "2":
		// Writes access tokens and exports them to a file.
		cacheAccessTokens(ctx, c, "serialized_cache.json")
	}
}
