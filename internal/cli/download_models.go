// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"photolens/internal/app"
	"photolens/internal/config"
	"photolens/internal/tui"
	"photolens/internal/weights"
)

func newDownloadModelsCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	cfg := config.Default()
	var repo string

	cmd := &cobra.Command{
		Use:   "download-models",
		Short: "Fetch the encoder weights and tokenizer into the data directory",
		Long: `Downloads the two encoder model artifacts and the tokenizer spec from the
configured weights repository, then loads them so search becomes available
immediately, without needing to restart photolens serve.`,
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

			events, unsubscribe := a.Fetcher.Subscribe()
			defer unsubscribe()

			if err := a.Fetcher.Start(ctx, repo); err != nil {
				return err
			}

			var printer func(weights.ProgressEvent)
			var live *tui.LiveRenderer
			switch {
			case ro.JSONOut:
				printer = jsonModelProgress(os.Stdout)
			case ro.Quiet:
				printer = humanModelProgress(true)
			default:
				r := tui.NewLiveRenderer(cfg.ModelRepo)
				live = r
				printer = r.Feed
			}

			for ev := range events {
				printer(ev)
				if ev.Status == weights.StatusReady || ev.Status == weights.StatusError {
					break
				}
			}
			if live != nil {
				live.Close()
			}
			return nil
		},
	}

	registerSettingsFlags(cmd, &cfg)
	cmd.Flags().StringVar(&repo, "repo", "", "Override the configured weights repository for this run")
	return cmd
}

func humanModelProgress(quiet bool) func(weights.ProgressEvent) {
	return func(ev weights.ProgressEvent) {
		if quiet && ev.Status != weights.StatusReady && ev.Status != weights.StatusError {
			return
		}
		switch ev.Status {
		case weights.StatusDownloading:
			fmt.Printf("downloading %s: %s / %s\n", ev.FileID, humanize.Bytes(uint64(ev.BytesSoFar)), humanize.Bytes(uint64(ev.TotalBytes)))
		case weights.StatusRetrying:
			fmt.Printf("retrying %s: %s\n", ev.FileID, ev.Message)
		case weights.StatusFileComplete:
			fmt.Printf("done: %s\n", ev.FileID)
		case weights.StatusLoading:
			fmt.Println("loading models into the embedding service...")
		case weights.StatusReady:
			fmt.Println("ready: encoder weights loaded, search is now semantic")
		case weights.StatusError:
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		}
	}
}

func jsonModelProgress(w *os.File) func(weights.ProgressEvent) {
	enc := json.NewEncoder(w)
	return func(ev weights.ProgressEvent) {
		_ = enc.Encode(ev)
	}
}
