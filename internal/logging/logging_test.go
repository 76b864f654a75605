// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetLevel(logrus.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, Setup("debug", &buf))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	logrus.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	require.NoError(t, Setup("", &buf))
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())

	err := Setup("chatty", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestRunLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rl, err := NewRunLog(dir, "collect")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(rl)
	logger.WithField("kind", "Pod").Info("Checking Core Group")

	path := rl.Path()
	assert.Equal(t, filepath.Join(dir, RunLogFile), path)
	require.NoError(t, rl.Close())
	assert.NoError(t, rl.Close(), "second close is a no-op")

	// Entries after Close are dropped.
	logger.Info("late entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, strings.Repeat("=", 80)))
	assert.Contains(t, content, "TrilioVault harvest: collect")
	assert.Contains(t, content, "Checking Core Group")
	assert.Contains(t, content, "kind=Pod")
	assert.Contains(t, content, "Completed:")
	assert.NotContains(t, content, "late entry")
}

func TestRunLogCloseNil(t *testing.T) {
	var rl *RunLog
	assert.NoError(t, rl.Close())
}

func TestNewRunLogUnwritableDir(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))

	rl, err := NewRunLog(filepath.Join(parent, "out"), "collect")
	require.Error(t, err)
	assert.Nil(t, rl)
}
