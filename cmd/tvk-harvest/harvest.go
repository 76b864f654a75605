// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/confighub/tvk-harvest/internal/clierr"
	"github.com/confighub/tvk-harvest/internal/config"
	"github.com/confighub/tvk-harvest/internal/kubeconfig"
	"github.com/confighub/tvk-harvest/internal/logging"
	"github.com/confighub/tvk-harvest/pkg/harvest"
	"github.com/confighub/tvk-harvest/pkg/podlogs"
)

// loadConfig merges flags, environment and the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	configFile, err := cmd.Flags().GetString(flagConfigFile)
	if err != nil {
		return nil, err
	}
	return config.Load(v, configFile)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return err
	}

	restCfg, err := kubeconfig.Load(cfg.Kubeconfig)
	if err != nil {
		return clierr.WrapWithHint(err, "pass --kubeconfig or set KUBECONFIG to a valid kubeconfig file")
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("failed to create dynamic client: %w", err)
	}

	kubeContext := kubeconfig.CurrentContext(cfg.Kubeconfig)
	opts := harvest.Options{
		Root:       cfg.OutputRoot(time.Now()),
		Namespaces: cfg.Namespaces,
		Clean:      !cfg.NoClean,
		Version:    BuildTag,
		Cluster:    kubeconfig.ClusterName(kubeContext),
		Command:    strings.Join(os.Args, " "),
	}

	log := logrus.StandardLogger()
	log.WithFields(logrus.Fields{
		"context":    kubeContext,
		"mode":       cfg.Mode(),
		"namespaces": strings.Join(cfg.Namespaces, ","),
		"output":     opts.Root,
	}).Info("Starting TrilioVault harvest")

	start := time.Now()
	h := harvest.New(clientset.Discovery(), dynClient, podlogs.NewClientSource(clientset), log, opts)
	zipPath, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	log.WithField("duration", formatDuration(time.Since(start))).Info("Harvest finished")
	fmt.Fprintln(cmd.OutOrStdout(), zipPath)
	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
