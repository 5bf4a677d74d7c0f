// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Command authcachectl inspects and maintains an auth cache outside the application that owns
// it. It is mostly useful with a persistent area: a bolt file or a Key Vault.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
