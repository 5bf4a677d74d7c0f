// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/config"
	"github.com/spf13/cobra"
)

// app is the state shared by the commands of one invocation.
type app struct {
	configPath string
	clientID   string
	dbPath     string
	verbose    bool

	cache *authcache.AuthCache
	host  *config.Host
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "authcachectl",
		Short: "Inspect and maintain an auth cache",
		Long: `authcachectl opens the cache described by a TOML config file, AUTHCACHE_
environment variables and flags, in that order of precedence from lowest to highest.

Keys are given as the application writes them: a logical name such as "idtoken"
or a JSON object for access token entries.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "authcache.toml", "Path of the TOML config file")
	cmd.PersistentFlags().StringVar(&a.clientID, "client-id", "", "Client ID, overrides the config")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Bolt file to use as localStorage, overrides the config")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log storage operations to stderr")

	cmd.AddCommand(newKeysCmd(a))
	cmd.AddCommand(newGetCmd(a))
	cmd.AddCommand(newSetCmd(a))
	cmd.AddCommand(newRmCmd(a))
	cmd.AddCommand(newResetCmd(a))
	cmd.AddCommand(newReapCmd(a))
	cmd.AddCommand(newPurgeAcquireCmd(a))
	cmd.AddCommand(newTokensCmd(a))
	cmd.AddCommand(newRenewalCmd(a))

	return cmd
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.clientID != "" {
		cfg.ClientID = a.clientID
	}
	if a.dbPath != "" {
		cfg.LocalPath = a.dbPath
		cfg.Location = authcache.LocalStorage.String()
	}

	var l *slog.Logger
	if a.verbose {
		l = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	c, h, err := cfg.Open(cmd.Context(), credentialFromEnv(), l)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	a.cache, a.host = c, h
	return nil
}

// run wraps a command body so the host is closed whether or not the body fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if cerr := a.close(); err == nil {
			err = cerr
		}
		return err
	}
}

func (a *app) close() error {
	if a.host == nil {
		return nil
	}
	err := a.host.Close()
	a.cache, a.host = nil, nil
	return err
}
