// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestApplyFileDefaultsSkipsExplicitlySetFlags(t *testing.T) {
	cmd := &cobra.Command{}
	var port int
	cmd.Flags().IntVar(&port, "port", 8080, "")
	if err := cmd.Flags().Set("port", "9000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	dst := Default()
	dst.Port = 9000
	raw := map[string]any{"port": 1234, "addr": "127.0.0.1"}
	ApplyFileDefaults(cmd, &dst, raw)

	if dst.Port != 9000 {
		t.Fatalf("expected explicit flag to win, got port=%d", dst.Port)
	}
	if dst.Addr != "127.0.0.1" {
		t.Fatalf("expected file value to apply to unset flag, got addr=%s", dst.Addr)
	}
}

func TestLoadFileParsesJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(jsonPath, []byte(`{"port": 9001}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile json: %v", err)
	}
	if raw["port"] != float64(9001) {
		t.Fatalf("expected port 9001, got %v", raw["port"])
	}

	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte("port: 9002\naddr: 127.0.0.1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err = LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFile yaml: %v", err)
	}
	if raw["addr"] != "127.0.0.1" {
		t.Fatalf("expected addr 127.0.0.1, got %v", raw["addr"])
	}
}

func TestResolveConfigPathPrefersExplicit(t *testing.T) {
	if got := ResolveConfigPath("/tmp/explicit.json"); got != "/tmp/explicit.json" {
		t.Fatalf("expected explicit path preserved, got %s", got)
	}
}
