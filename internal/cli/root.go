// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	JSONOut bool
	Quiet   bool
	Config  string
	Token   string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "photolens",
		Short:         "Offline semantic image search engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON progress events")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (minimal logs)")
	root.PersistentFlags().StringVarP(&ro.Token, "token", "t", "", "Weights repository access token (also reads PHOTOLENS_TOKEN env)")

	serveCmd := newServeCmd(ctx, ro)
	root.AddCommand(serveCmd)
	root.AddCommand(newDownloadModelsCmd(ctx, ro))
	root.AddCommand(newReindexCmd(ctx, ro))
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newConfigCmd())

	// serve is the default when no subcommand is given.
	root.PreRunE = serveCmd.PreRunE
	root.RunE = serveCmd.RunE
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func resolveToken(ro *RootOpts) string {
	if ro.Token != "" {
		return ro.Token
	}
	return os.Getenv("PHOTOLENS_TOKEN")
}
