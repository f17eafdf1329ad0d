// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// LoadFile reads and parses a YAML schema document.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// File re-reads the YAML document on every call.
type File string

func (f File) Describe(context.Context) (string, error) {
	doc, err := LoadFile(string(f))
	if err != nil {
		return "", err
	}
	return doc.Render(), nil
}

// Watcher serves a YAML schema file and reloads it when it changes on disk.
// A file that fails to parse is logged and the last good description is kept.
type Watcher struct {
	path   string
	logger *pterm.Logger

	mu   sync.RWMutex
	desc string

	fs *fsnotify.Watcher
}

// NewWatcher loads path once and starts watching its directory. The initial load
// must succeed. Call Run to process change events and Close when done.
func NewWatcher(path string, logger *pterm.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: abs, logger: logger}
	if err := w.Reload(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Editors replace files by rename, so the directory is watched rather than
	// the file itself.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.fs = fsw
	return w, nil
}

// Describe returns the last successfully loaded description.
func (w *Watcher) Describe(context.Context) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.desc, nil
}

// Reload reads the file now. On error the current description is unchanged.
func (w *Watcher) Reload() error {
	doc, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	desc := doc.Render()
	w.mu.Lock()
	w.desc = desc
	w.mu.Unlock()
	return nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("schema reload failed, keeping previous description", w.logger.Args("path", w.path, "error", err.Error()))
				continue
			}
			w.logger.Info("schema reloaded", w.logger.Args("path", w.path))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("schema watcher error", w.logger.Args("error", err.Error()))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
