// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"photolens/internal/app"
	"photolens/internal/config"
)

func newReindexCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Walk every watched folder and (re)ingest every supported file",
		Long: `Walks every watched folder, hashing and embedding every supported file it
finds. Files whose content hash hasn't changed since the last run are
skipped; everything else is thumbnailed, embedded, and written to the
database, after which the in-memory vector index is reloaded from disk.`,
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

			roots, err := a.ReindexRoots()
			if err != nil {
				return fmt.Errorf("list watched folders: %w", err)
			}
			if len(roots) == 0 {
				fmt.Println("no watched folders configured; nothing to do")
				return nil
			}

			var succeeded, skipped, failed int64
			report := reindexReporter(ro, &succeeded, &skipped, &failed)
			a.Pipeline.SetProgressHook(report)

			if err := a.Pipeline.WalkRoots(roots); err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			indexed, _ := a.Store.CountWithEmbedding()
			fmt.Printf("reindex complete: %s indexed, %d succeeded, %d skipped, %d failed\n",
				humanize.Comma(int64(indexed)), atomic.LoadInt64(&succeeded), atomic.LoadInt64(&skipped), atomic.LoadInt64(&failed))
			return nil
		},
	}

	registerSettingsFlags(cmd, &cfg)
	return cmd
}

func reindexReporter(ro *RootOpts, succeeded, skipped, failed *int64) func(path, status string) {
	enc := json.NewEncoder(os.Stdout)
	return func(path, status string) {
		switch status {
		case "success":
			atomic.AddInt64(succeeded, 1)
		case "skipped":
			atomic.AddInt64(skipped, 1)
		case "error":
			atomic.AddInt64(failed, 1)
		}
		if ro.Quiet && status == "skipped" {
			return
		}
		if ro.JSONOut {
			_ = enc.Encode(map[string]string{"path": path, "status": status})
			return
		}
		fmt.Printf("%s: %s\n", status, path)
	}
}
