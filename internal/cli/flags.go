// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/spf13/cobra"

	"photolens/internal/config"
)

// registerSettingsFlags binds cmd's flags to cfg, using config.Default()'s
// values as the flag defaults. Flag names match what
// config.ApplyFileDefaults looks for so a config file only fills in what
// wasn't explicitly passed on the command line.
func registerSettingsFlags(cmd *cobra.Command, cfg *config.Settings) {
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the database, thumbnails, and models")
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	cmd.Flags().StringVar(&cfg.ModelRepo, "model-repo", cfg.ModelRepo, "Remote repository the encoder weights are fetched from")
	cmd.Flags().StringVar(&cfg.ModelsURL, "models-url", cfg.ModelsURL, "Override base URL for the weights repository (e.g. for a mirror)")
	cmd.Flags().BoolVar(&cfg.AutoIndexing, "auto-indexing", cfg.AutoIndexing, "Automatically ingest files the watcher sees created or modified")
	cmd.Flags().BoolVar(&cfg.ExifEnabled, "exif", cfg.ExifEnabled, "Extract EXIF/GPS metadata during ingestion")
	cmd.Flags().Float64Var(&cfg.MinScore, "min-score", cfg.MinScore, "Similarity score floor for search results")
	cmd.Flags().IntVar(&cfg.DebounceMillis, "debounce-ms", cfg.DebounceMillis, "Filesystem event debounce window, in milliseconds")
}

// loadConfigFile resolves and applies an on-disk config file's values to
// cfg for every flag the caller didn't explicitly set, the same
// config-file-as-flag-defaults PreRunE step every subcommand uses.
func loadConfigFile(cmd *cobra.Command, ro *RootOpts, cfg *config.Settings) error {
	path := config.ResolveConfigPath(ro.Config)
	if path == "" {
		return nil
	}
	raw, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	config.ApplyFileDefaults(cmd, cfg, raw)
	if cfg.Token != "" {
		ro.Token = cfg.Token
	}
	return nil
}
