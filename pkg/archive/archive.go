// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package archive writes harvested objects, logs and events into a directory
// tree and compresses it into a single zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/confighub/tvk-harvest/pkg/catalog"
	"github.com/confighub/tvk-harvest/pkg/events"
	"github.com/confighub/tvk-harvest/pkg/podlogs"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// clusterScopedDir holds objects without a namespace.
	clusterScopedDir = "."

	// windowsKeySeparator replaces events.KeySeparator in file names where
	// the backslash separates path elements.
	windowsKeySeparator = "_"
)

// Writer lays out one harvest under Root.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at root. Nothing is created until the first write.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Root returns the output directory.
func (w *Writer) Root() string {
	return w.root
}

// ArchivePath returns the path of the zip Finalize produces.
func (w *Writer) ArchivePath() string {
	return w.root + ".zip"
}

// Prepare removes a stale tree left by an earlier run when clean is set.
func (w *Writer) Prepare(clean bool) error {
	if !clean {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("remove stale output %s: %w", w.root, err)
	}
	return nil
}

func (w *Writer) objectDir(kindDir, namespace string) (string, error) {
	if namespace == "" {
		namespace = clusterScopedDir
	}
	dir := filepath.Join(w.root, kindDir, namespace)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

func writeYAML(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteObject writes obj to <root>/<kindDir>/<namespace or .>/<name>.yaml,
// replacing any earlier file for the same object.
func (w *Writer) WriteObject(kindDir string, obj *unstructured.Unstructured) (string, error) {
	dir, err := w.objectDir(kindDir, obj.GetNamespace())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, obj.GetName()+".yaml")
	return path, writeYAML(path, obj.Object)
}

// WriteLog writes a container log next to its pod's document.
func (w *Writer) WriteLog(kindDir, namespace, pod, container string, previous bool, data []byte) (string, error) {
	dir, err := w.objectDir(kindDir, namespace)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.%s.log", pod, container, podlogs.Suffix(previous)))
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteEvents writes one document per indexed object under Events/<namespace>/.
func (w *Writer) WriteEvents(idx events.Index) error {
	for namespace, byKey := range idx {
		dir := filepath.Join(w.root, catalog.EventsDir, namespace)
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
		for key, evs := range byKey {
			if err := writeYAML(filepath.Join(dir, eventFile(key, filepath.Separator)), evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// eventFile names the document for an index key on a filesystem whose path
// separator is sep.
func eventFile(key string, sep rune) string {
	if string(sep) == events.KeySeparator {
		key = strings.ReplaceAll(key, events.KeySeparator, windowsKeySeparator)
	}
	return key + ".yaml"
}

// Finalize zips the tree into ArchivePath. Entries are named relative to the
// tree's parent, so the archive unpacks into a directory of the same name.
// With cleanup set the tree is removed once the zip is complete.
func (w *Writer) Finalize(cleanup bool) (string, error) {
	zipPath := w.ArchivePath()
	if err := w.zipTree(zipPath); err != nil {
		os.Remove(zipPath)
		return "", err
	}
	if cleanup {
		if err := os.RemoveAll(w.root); err != nil {
			return zipPath, fmt.Errorf("remove output directory %s: %w", w.root, err)
		}
	}
	return zipPath, nil
}

func (w *Writer) zipTree(zipPath string) (err error) {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	base := filepath.Dir(w.root)

	walkErr := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		return fmt.Errorf("archive %s: %w", w.root, walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
