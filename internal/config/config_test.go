// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confighub/tvk-harvest/internal/clierr"
)

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() (*pflag.FlagSet, map[string]string) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.BoolP("clustered", "c", false, "")
	fs.StringSliceP("namespaces", "n", nil, "")
	fs.StringP("kubeconfig", "k", "", "")
	fs.StringP("log-level", "l", "info", "")
	fs.Bool("no-clean", false, "")
	fs.StringP("output-dir", "o", ".", "")
	return fs, map[string]string{
		KeyClustered:  "clustered",
		KeyNamespaces: "namespaces",
		KeyKubeconfig: "kubeconfig",
		KeyLogLevel:   "log-level",
		KeyNoClean:    "no-clean",
		KeyOutputDir:  "output-dir",
	}
}

func TestLoadFromFlags(t *testing.T) {
	dir := t.TempDir()
	kc := touch(t, dir, "kubeconfig", "apiVersion: v1\nkind: Config\n")

	fs, names := testFlags()
	require.NoError(t, fs.Parse([]string{"-n", "trilio, default", "-n", "trilio", "-k", kc, "--no-clean"}))

	v := New()
	require.NoError(t, BindFlags(v, fs, names))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.False(t, cfg.Clustered)
	assert.Equal(t, []string{"trilio", "default"}, cfg.Namespaces)
	assert.Equal(t, kc, cfg.Kubeconfig)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.NoClean)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "namespaced", cfg.Mode())
}

func TestLoadFileOverriddenByFlags(t *testing.T) {
	dir := t.TempDir()
	kc := touch(t, dir, "kubeconfig", "apiVersion: v1\nkind: Config\n")
	file := touch(t, dir, "harvest", "clustered: true\nlogLevel: debug\noutputDir: /tmp/out\nkubeconfig: "+kc+"\n")

	fs, names := testFlags()
	require.NoError(t, fs.Parse([]string{"--log-level", "warn"}))

	v := New()
	require.NoError(t, BindFlags(v, fs, names))

	cfg, err := Load(v, file)
	require.NoError(t, err)
	assert.True(t, cfg.Clustered)
	assert.Equal(t, "warn", cfg.LogLevel, "changed flag wins over the file")
	assert.Equal(t, "/tmp/out", cfg.OutputDir, "unchanged flag leaves the file value")
	assert.Equal(t, "clustered", cfg.Mode())
	assert.Equal(t, file, cfg.ConfigFile)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	kc := touch(t, dir, "kubeconfig", "apiVersion: v1\nkind: Config\n")
	t.Setenv("TVK_HARVEST_CLUSTERED", "true")
	t.Setenv("TVK_HARVEST_KUBECONFIG", kc)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.True(t, cfg.Clustered)
	assert.Equal(t, kc, cfg.Kubeconfig)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))
}

func TestValidate(t *testing.T) {
	kc := touch(t, t.TempDir(), "kubeconfig", "")

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "clustered",
			cfg:  Config{Clustered: true, Kubeconfig: kc, LogLevel: "info"},
		},
		{
			name: "namespaced",
			cfg:  Config{Namespaces: []string{"trilio"}, Kubeconfig: kc, LogLevel: "info"},
		},
		{
			name:    "both modes",
			cfg:     Config{Clustered: true, Namespaces: []string{"trilio"}, Kubeconfig: kc, LogLevel: "info"},
			wantErr: "at the same time",
		},
		{
			name:    "no mode",
			cfg:     Config{Kubeconfig: kc, LogLevel: "info"},
			wantErr: "either --clustered",
		},
		{
			name:    "bad level",
			cfg:     Config{Clustered: true, Kubeconfig: kc, LogLevel: "chatty"},
			wantErr: "invalid log level",
		},
		{
			name:    "missing kubeconfig",
			cfg:     Config{Clustered: true, Kubeconfig: kc + ".gone", LogLevel: "info"},
			wantErr: "kubeconfig not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, ".", tt.cfg.OutputDir)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, clierr.IsValidation(err))
		})
	}
}

func TestSplitNamespaces(t *testing.T) {
	assert.Empty(t, SplitNamespaces(nil))
	assert.Equal(t, []string{"a", "b", "c"}, SplitNamespaces([]string{"a,b", " c ", "", "a"}))
}

func TestOutputRoot(t *testing.T) {
	cfg := Config{OutputDir: "/var/tmp"}
	at := time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "/var/tmp/triliovault-18-10-2026-09-05-07", cfg.OutputRoot(at))
}
