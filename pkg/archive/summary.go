// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SummaryFile is written at the root of every harvest.
const SummaryFile = "summary.yaml"

// Summary records what a harvest collected.
type Summary struct {
	Version     string         `yaml:"version"`
	Cluster     string         `yaml:"cluster"`
	Clustered   bool           `yaml:"clustered"`
	Namespaces  []string       `yaml:"namespaces,omitempty"`
	StartedAt   time.Time      `yaml:"startedAt"`
	FinishedAt  time.Time      `yaml:"finishedAt"`
	Objects     map[string]int `yaml:"objects"`
	Logs        int            `yaml:"logs"`
	SkippedLogs []string       `yaml:"skippedLogs,omitempty"`
	Events      int            `yaml:"events"`
	Unhealthy   []Finding      `yaml:"unhealthy,omitempty"`
}

// Finding names a harvested object that is not healthy.
type Finding struct {
	Object string `yaml:"object"`
	Status string `yaml:"status"`
	Reason string `yaml:"reason,omitempty"`
}

// NewSummary starts a summary for a run beginning now.
func NewSummary(version, cluster string, namespaces []string) *Summary {
	return &Summary{
		Version:    version,
		Cluster:    cluster,
		Clustered:  len(namespaces) == 0,
		Namespaces: namespaces,
		StartedAt:  time.Now().UTC(),
		Objects:    map[string]int{},
	}
}

// CountObject records one object written under kindDir.
func (s *Summary) CountObject(kindDir string) {
	s.Objects[kindDir]++
}

// AddFinding records an unhealthy object, named <kindDir>/<namespace or .>/<name>.
func (s *Summary) AddFinding(kindDir, namespace, name, status, reason string) {
	if namespace == "" {
		namespace = clusterScopedDir
	}
	s.Unhealthy = append(s.Unhealthy, Finding{
		Object: kindDir + "/" + namespace + "/" + name,
		Status: status,
		Reason: reason,
	})
}

// Total returns the number of objects written.
func (s *Summary) Total() int {
	var n int
	for _, c := range s.Objects {
		n += c
	}
	return n
}

// WriteSummary writes s to <root>/summary.yaml.
func (w *Writer) WriteSummary(s *Summary) error {
	if err := os.MkdirAll(w.root, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", w.root, err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(w.root, SummaryFile)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
