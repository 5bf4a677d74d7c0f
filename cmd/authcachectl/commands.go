// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"fmt"
	"time"

	"github.com/AzureAD/microsoft-authentication-cache-for-go/apps/authcache"
	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the physical keys owned by the cache",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			keys, err := a.cache.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}),
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			v, ok, err := a.cache.Get(cmd.Context(), authcache.ParseKey(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no entry for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}),
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write an entry",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.cache.Set(cmd.Context(), authcache.ParseKey(args[0]), args[1])
		}),
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove an entry",
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.cache.Remove(cmd.Context(), authcache.ParseKey(args[0]))
		}),
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every entry owned by the cache",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.cache.ResetAll(cmd.Context())
		}),
	}
}

func newReapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reap [state]",
		Short: "Remove the temporary entries of a request",
		Long: `Remove the temporary entries of the request made with state, or every entry of
the namespace when state is omitted. Nothing is removed while a renewal for state is
in progress.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.cache.ResetTemporaryEntries(cmd.Context(), optionalArg(args))
		}),
	}
}

func newPurgeAcquireCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-acquire [state]",
		Short: "Remove the authority and account entries of token requests",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.cache.RemoveAcquireTokenEntries(cmd.Context(), optionalArg(args))
		}),
	}
}

func newTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <client-id> <home-account-id>",
		Short: "List the access tokens of an account",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			items, err := a.cache.AllAccessTokens(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, item := range items {
				expiry := item.Value.ExpiresIn
				if t, err := item.Value.ExpiresOn(); err == nil {
					expiry = t.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", item.Key.Authority, item.Key.Scopes, expiry)
			}
			return nil
		}),
	}
}

func newRenewalCmd(a *app) *cobra.Command {
	var start, complete bool
	cmd := &cobra.Command{
		Use:   "renewal <state>",
		Short: "Show or change the renewal status of a request",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx, state := cmd.Context(), args[0]
			switch {
			case start && complete:
				return fmt.Errorf("--start and --complete are mutually exclusive")
			case start:
				return a.cache.MarkRenewalInProgress(ctx, state)
			case complete:
				return a.cache.CompleteRenewal(ctx, state)
			}
			renewing, err := a.cache.IsRenewalInProgress(ctx, state)
			if err != nil {
				return err
			}
			if renewing {
				fmt.Fprintln(cmd.OutOrStdout(), "in progress")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "idle")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&start, "start", false, "Mark a renewal as in progress")
	cmd.Flags().BoolVar(&complete, "complete", false, "Mark the renewal as finished")
	return cmd
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
