// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RunLogFile is the name of the run log inside the output tree.
const RunLogFile = "harvest.log"

// RunLog mirrors log entries into a file that ships inside the archive.
// It is a logrus hook; attach it with logger.AddHook.
type RunLog struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	startTime time.Time
	formatter logrus.Formatter
}

// NewRunLog creates dir/harvest.log and writes its header.
func NewRunLog(dir, command string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, RunLogFile)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	l := &RunLog{
		file:      file,
		path:      path,
		startTime: time.Now(),
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
	}
	if err := l.writeHeader(command); err != nil {
		file.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}
	return l, nil
}

func (l *RunLog) writeHeader(command string) error {
	rule := strings.Repeat("=", 80) + "\n"
	_, err := fmt.Fprintf(l.file, "%sTrilioVault harvest: %s\nStarted: %s\n%s\n",
		rule, command, l.startTime.Format(time.RFC3339), rule)
	return err
}

// Levels implements logrus.Hook.
func (l *RunLog) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (l *RunLog) Fire(entry *logrus.Entry) error {
	if l == nil {
		return nil
	}
	line, err := l.formatter.Format(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	_, err = l.file.Write(line)
	return err
}

// Path returns the location of the run log.
func (l *RunLog) Path() string {
	return l.path
}

// Close writes the footer and closes the file. Closing twice is a no-op.
func (l *RunLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	_, err := fmt.Fprintf(l.file, "\n\nCompleted: %s\nDuration: %s\n",
		time.Now().Format(time.RFC3339), time.Since(l.startTime).Round(time.Millisecond))
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	if err != nil {
		return fmt.Errorf("close run log %s: %w", l.path, err)
	}
	return nil
}
