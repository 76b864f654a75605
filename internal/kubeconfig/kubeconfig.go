// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package kubeconfig locates and loads cluster credentials.
package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultPath returns $KUBECONFIG, or ~/.kube/config when unset.
func DefaultPath() string {
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kube", "config")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Load builds a client config from the kubeconfig file at path, which must exist.
func Load(path string) (*rest.Config, error) {
	path = ExpandHome(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("kubeconfig not found at %s: %w", path, err)
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes config: %w", err)
	}
	return cfg, nil
}

// CurrentContext returns the current context of the kubeconfig at path.
func CurrentContext(path string) string {
	raw, err := clientcmd.LoadFromFile(ExpandHome(path))
	if err != nil {
		return "unknown"
	}
	if raw.CurrentContext == "" {
		return "default"
	}
	return raw.CurrentContext
}

// ClusterName extracts a cluster name from a context name.
// Handles AWS EKS ARNs, GKE context formats, kind clusters, and returns
// the input as-is for unknown formats.
func ClusterName(contextName string) string {
	if contextName == "" || contextName == "unknown" {
		return contextName
	}

	// arn:aws:eks:region:account:cluster/name
	if strings.HasPrefix(contextName, "arn:aws:eks:") {
		if idx := strings.LastIndex(contextName, "/"); idx != -1 {
			return contextName[idx+1:]
		}
	}

	// gke_project_zone_cluster
	if strings.HasPrefix(contextName, "gke_") {
		parts := strings.Split(contextName, "_")
		if len(parts) >= 4 {
			return parts[len(parts)-1]
		}
	}

	return strings.TrimPrefix(contextName, "kind-")
}
