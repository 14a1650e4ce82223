// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package config is the general configuration layer spec §6 calls an
// external collaborator: defaults, an optional JSON/YAML config file, and
// CLI flags, merged in that priority order (flags win, then config file,
// then built-in defaults).
//
// Grounded on internal/cli/root.go's applySettingsDefaults (config file
// discovery, flags.Changed guard so an explicit flag is never overridden by
// the file, JSON-or-YAML-by-extension parsing).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Settings is the full set of boot-time and adjustable engine settings.
// Fields also persisted as "advanced settings" via the HTTP façade
// (AutoIndexing, ExifEnabled, MinScore, DebounceMillis) are seeded from
// here but afterwards live in the settings table (internal/store).
type Settings struct {
	DataDir string `json:"dataDir" yaml:"dataDir"`
	Addr    string `json:"addr" yaml:"addr"`
	Port    int    `json:"port" yaml:"port"`

	ModelRepo string `json:"modelRepo" yaml:"modelRepo"`
	ModelsURL string `json:"modelsUrl" yaml:"modelsUrl"`

	WatchedRoots []string `json:"watchedRoots" yaml:"watchedRoots"`

	AutoIndexing   bool    `json:"autoIndexing" yaml:"autoIndexing"`
	ExifEnabled    bool    `json:"exifEnabled" yaml:"exifEnabled"`
	MinScore       float64 `json:"minScore" yaml:"minScore"`
	DebounceMillis int     `json:"debounceMillis" yaml:"debounceMillis"`

	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Default returns the built-in defaults (spec §4, §6).
func Default() Settings {
	return Settings{
		DataDir:        "./photolens-data",
		Addr:           "0.0.0.0",
		Port:           8080,
		ModelRepo:      "photolens/clip-encoders",
		ModelsURL:      "",
		AutoIndexing:   true,
		ExifEnabled:    true,
		MinScore:       0.24,
		DebounceMillis: 1500,
	}
}

// ResolveConfigPath returns explicit if set, else the first of
// ~/.config/photolens.{json,yaml,yml} that exists, else "".
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"photolens.json", "photolens.yaml", "photolens.yml"} {
		p := filepath.Join(home, ".config", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFile reads and parses a JSON or YAML config file (by extension,
// defaulting to JSON) into a generic map, mirroring the
// applySettingsDefaults parse step below.
func LoadFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("config: invalid YAML file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("config: invalid JSON file %s: %w", path, err)
		}
	}
	return raw, nil
}

// ApplyFileDefaults merges raw config-file values into dst for every flag
// that was NOT explicitly set on cmd — an explicit flag always wins over
// the file, the file always wins over Default() (spec §2 AMBIENT STACK).
func ApplyFileDefaults(cmd *cobra.Command, dst *Settings, raw map[string]any) {
	setStr := func(flag string, set func(string)) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := raw[flag]; ok && v != nil {
			set(fmt.Sprint(v))
		}
	}
	setInt := func(flag string, set func(int)) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := raw[flag]; ok && v != nil {
			var x int
			fmt.Sscan(fmt.Sprint(v), &x)
			set(x)
		}
	}
	setFloat := func(flag string, set func(float64)) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := raw[flag]; ok && v != nil {
			var x float64
			fmt.Sscan(fmt.Sprint(v), &x)
			set(x)
		}
	}
	setBool := func(flag string, set func(bool)) {
		if cmd.Flags().Changed(flag) {
			return
		}
		if v, ok := raw[flag]; ok && v != nil {
			set(fmt.Sprint(v) == "true")
		}
	}

	setStr("data-dir", func(v string) { dst.DataDir = v })
	setStr("addr", func(v string) { dst.Addr = v })
	setInt("port", func(v int) { dst.Port = v })
	setStr("model-repo", func(v string) { dst.ModelRepo = v })
	setStr("models-url", func(v string) { dst.ModelsURL = v })
	setBool("auto-indexing", func(v bool) { dst.AutoIndexing = v })
	setBool("exif", func(v bool) { dst.ExifEnabled = v })
	setFloat("min-score", func(v float64) { dst.MinScore = v })
	setInt("debounce-ms", func(v int) { dst.DebounceMillis = v })

	if !cmd.Flags().Changed("token") && os.Getenv("PHOTOLENS_TOKEN") == "" {
		if v, ok := raw["token"]; ok && v != nil {
			dst.Token = fmt.Sprint(v)
		}
	}

	if roots, ok := raw["watchedRoots"].([]any); ok && len(dst.WatchedRoots) == 0 {
		for _, r := range roots {
			dst.WatchedRoots = append(dst.WatchedRoots, fmt.Sprint(r))
		}
	}
}
