// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/confighub/tvk-harvest/internal/kubeconfig"
)

// Namespace completion cache (avoid repeated API calls during tab-complete)
var (
	cachedNamespaces     []string
	namespaceCacheExpiry time.Time
	namespaceCacheMu     sync.Mutex
)

// completeNamespaces returns the namespaces of the cluster in --kubeconfig.
// Already typed entries of the comma separated list are kept as a prefix.
func completeNamespaces(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	done := ""
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		done, toComplete = toComplete[:i+1], toComplete[i+1:]
	}

	namespaces := listNamespaces(cmd)
	return lo.Map(filterPrefix(namespaces, toComplete), func(ns string, _ int) string {
		return done + ns
	}), cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func listNamespaces(cmd *cobra.Command) []string {
	namespaceCacheMu.Lock()
	defer namespaceCacheMu.Unlock()

	// Return cache if fresh (3 second TTL)
	if time.Now().Before(namespaceCacheExpiry) && len(cachedNamespaces) > 0 {
		return cachedNamespaces
	}

	path, err := cmd.Flags().GetString(flagKubeconfig)
	if err != nil {
		return nil
	}
	cfg, err := kubeconfig.Load(path)
	if err != nil {
		return nil
	}
	dynClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil
	}

	// Quick timeout for completion - don't block shell
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	list, err := dynClient.Resource(schema.GroupVersionResource{
		Version:  "v1",
		Resource: "namespaces",
	}).List(ctx, v1.ListOptions{})
	if err != nil {
		return nil
	}

	var namespaces []string
	for _, item := range list.Items {
		namespaces = append(namespaces, item.GetName())
	}

	cachedNamespaces = namespaces
	namespaceCacheExpiry = time.Now().Add(3 * time.Second)
	return namespaces
}

// completeLogLevels returns the levels logrus accepts.
func completeLogLevels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	levels := lo.Map(logrus.AllLevels, func(l logrus.Level, _ int) string {
		return l.String()
	})
	return filterPrefix(levels, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var filtered []string
	lowerPrefix := strings.ToLower(prefix)
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
