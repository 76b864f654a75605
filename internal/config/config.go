// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config merges flags, environment and an optional config file
// into the settings of one harvest run.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/confighub/tvk-harvest/internal/clierr"
	"github.com/confighub/tvk-harvest/internal/kubeconfig"
	"github.com/confighub/tvk-harvest/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. TVK_HARVEST_CLUSTERED.
const EnvPrefix = "TVK_HARVEST"

// Keys shared by the config file, the environment and the flag bindings.
const (
	KeyClustered  = "clustered"
	KeyNamespaces = "namespaces"
	KeyKubeconfig = "kubeconfig"
	KeyLogLevel   = "logLevel"
	KeyNoClean    = "noClean"
	KeyOutputDir  = "outputDir"
)

// OutputPrefix and OutputTimeLayout name the output tree, e.g.
// triliovault-18-10-2026-09-30-00.
const (
	OutputPrefix     = "triliovault-"
	OutputTimeLayout = "02-01-2006-15-04-05"
)

// Config is the validated input of a harvest run.
type Config struct {
	Clustered  bool
	Namespaces []string
	Kubeconfig string
	LogLevel   string
	NoClean    bool
	OutputDir  string
	ConfigFile string
}

// New returns a viper instance with defaults and environment lookup set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyClustered, false)
	v.SetDefault(KeyKubeconfig, kubeconfig.DefaultPath())
	v.SetDefault(KeyLogLevel, logging.DefaultLevel)
	v.SetDefault(KeyNoClean, false)
	v.SetDefault(KeyOutputDir, ".")
	return v
}

// BindFlags binds the command flags to their config keys. Flags missing
// from the set are ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, names map[string]string) error {
	for key, name := range names {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads configFile (if set) into v and returns the validated Config.
// Values set on the command line win over the environment, which wins over
// the file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(kubeconfig.ExpandHome(configFile))
		if filepath.Ext(configFile) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, clierr.Validationf("read config file %s: %v", configFile, err)
		}
	}

	cfg := &Config{
		Clustered:  v.GetBool(KeyClustered),
		Namespaces: SplitNamespaces(v.GetStringSlice(KeyNamespaces)),
		Kubeconfig: kubeconfig.ExpandHome(v.GetString(KeyKubeconfig)),
		LogLevel:   v.GetString(KeyLogLevel),
		NoClean:    v.GetBool(KeyNoClean),
		OutputDir:  v.GetString(KeyOutputDir),
		ConfigFile: configFile,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SplitNamespaces flattens comma separated entries, trims them and drops
// empties and repeats. Order is kept.
func SplitNamespaces(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, ns := range strings.Split(entry, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				out = append(out, ns)
			}
		}
	}
	return lo.Uniq(out)
}

// Validate checks the mode selection, the log level and the kubeconfig.
func (c *Config) Validate() error {
	if c.Clustered && len(c.Namespaces) > 0 {
		return clierr.Validationf("cannot use --clustered and --namespaces at the same time")
	}
	if !c.Clustered && len(c.Namespaces) == 0 {
		return clierr.Validationf("either --clustered or at least one namespace in --namespaces must be set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return clierr.Validationf("invalid log level %q", c.LogLevel)
	}
	if c.Kubeconfig == "" {
		return clierr.Validationf("no kubeconfig given")
	}
	if _, err := os.Stat(c.Kubeconfig); err != nil {
		return clierr.Validationf("kubeconfig not found at %s", c.Kubeconfig)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	return nil
}

// OutputRoot returns the output tree path for a run started at t.
func (c *Config) OutputRoot(t time.Time) string {
	return filepath.Join(c.OutputDir, OutputPrefix+t.Format(OutputTimeLayout))
}

// Mode describes the scope for log lines and the summary.
func (c *Config) Mode() string {
	if c.Clustered {
		return "clustered"
	}
	return "namespaced"
}
