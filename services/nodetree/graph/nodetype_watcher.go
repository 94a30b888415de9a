// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for writes to settle
// before reloading the node types file.
const DefaultReloadDebounce = 250 * time.Millisecond

// NodeTypeWatcher reloads a NodeTypeManager when its definition file changes.
//
// Description:
//
//	Watches the directory containing the file (editors often replace files
//	by rename) and reloads after a debounce window. A file that fails to
//	parse leaves the previous snapshot in place.
//
// Thread Safety: Start and Stop are safe for concurrent use.
type NodeTypeWatcher struct {
	path     string
	manager  *NodeTypeManager
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	// OnReload, if set, is called after every reload attempt.
	OnReload func(err error)

	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

// NewNodeTypeWatcher creates a watcher for path feeding manager.
//
// Inputs:
//
//	path - Node types YAML file.
//	manager - Manager to update. Must not be nil.
//	logger - Optional; defaults to slog.Default().
//
// Outputs:
//
//	*NodeTypeWatcher - Not started until Start is called.
//	error - Non-nil if the fsnotify watcher cannot be created.
func NewNodeTypeWatcher(path string, manager *NodeTypeManager, logger *slog.Logger) (*NodeTypeWatcher, error) {
	if manager == nil {
		return nil, fmt.Errorf("node type watcher: manager must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve node types path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &NodeTypeWatcher{
		path:     abs,
		manager:  manager,
		watcher:  w,
		debounce: DefaultReloadDebounce,
		logger:   logger.With("component", "node_type_watcher", "path", abs),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

// Start begins watching. The loop exits when ctx is done or Stop is called.
func (w *NodeTypeWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.started.Store(true)
	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the loop to exit.
func (w *NodeTypeWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	if w.started.Load() {
		<-w.finished
	}
}

func (w *NodeTypeWatcher) run(ctx context.Context) {
	defer close(w.finished)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("node type watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *NodeTypeWatcher) reload() {
	types, err := LoadNodeTypes(w.path)
	if err != nil {
		w.logger.Warn("node types reload failed, keeping previous definitions", slog.String("error", err.Error()))
	} else {
		w.manager.Replace(types)
		w.logger.Info("node types reloaded", slog.Int("count", len(types)))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
