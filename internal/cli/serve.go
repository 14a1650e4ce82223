// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"photolens/internal/app"
	"photolens/internal/config"
	"photolens/internal/server"
)

func newServeCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search engine and its HTTP API",
		Long: `Run the search engine: opens (or creates) the data directory, starts the
filesystem watcher over every configured folder, and serves the HTTP API
that search, browsing, and settings clients talk to.

Example:
  photolens serve
  photolens serve --port 3000 --data-dir ./photolens-data`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfigFile(cmd, ro, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("start engine: %w", err)
			}
			defer a.Close()

			if tok := resolveToken(ro); tok != "" {
				if err := a.SetToken(tok); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
			}

			srvCfg := server.DefaultConfig()
			srvCfg.Addr = cfg.Addr
			srvCfg.Port = cfg.Port
			srv := server.New(srvCfg, a)

			indexed, _ := a.Store.CountWithEmbedding()
			fmt.Printf("photolens: %d images indexed, data dir %s\n", indexed, cfg.DataDir)
			return srv.ListenAndServe(ctx)
		},
	}

	registerSettingsFlags(cmd, &cfg)
	return cmd
}
