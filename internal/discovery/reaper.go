// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	ps "github.com/mitchellh/go-ps"

	"github.com/climbus/ide-bridge/internal/watcher"
)

const maxAge = 24 * time.Hour

var entryPattern = regexp.MustCompile(`^(?:gemini-ide-server-(\d+)-\d+\.json|[^-]+-env-(\d+)\.sh)$`)

// Reaper watches <tmp>/gemini/ide/ and unlinks stale descriptor/env-script
// files left by bridge processes that are no longer running. Beyond the
// mandatory fire-and-forget scan on start, it keeps scanning on every
// directory change and on a fixed interval — a strict superset, using
// fsnotify directly alongside the shared Debouncer type.
type Reaper struct {
	watcher   *fsnotify.Watcher
	debouncer *watcher.Debouncer
	interval  time.Duration
	stop      chan struct{}
}

// NewReaper starts watching baseDir(); Scan runs once immediately and
// again on every coalesced filesystem event or interval tick, until
// Close is called.
func NewReaper(interval time.Duration) *Reaper {
	r := &Reaper{
		debouncer: watcher.NewDebouncer(time.Second),
		interval:  interval,
		stop:      make(chan struct{}),
	}

	dir := baseDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("discovery: reaper: create %s: %v", dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("discovery: reaper: fsnotify init: %v", err)
	} else if err := fsw.Add(dir); err != nil {
		log.Printf("discovery: reaper: watch %s: %v", dir, err)
		fsw.Close()
	} else {
		r.watcher = fsw
		go r.watchLoop()
	}

	go Scan()
	if interval > 0 {
		go r.intervalLoop()
	}
	return r
}

func (r *Reaper) watchLoop() {
	for {
		select {
		case _, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.debouncer.Debounce("reap", Scan)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("discovery: reaper: watch error: %v", err)
		case <-r.stop:
			return
		}
	}
}

func (r *Reaper) intervalLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			Scan()
		case <-r.stop:
			return
		}
	}
}

// Close stops the reaper's background goroutines.
func (r *Reaper) Close() {
	close(r.stop)
	r.debouncer.Stop()
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// Scan performs one pass of the stale-file reaping rule: a
// missing directory is not an error, and per-file errors are swallowed.
func Scan() {
	dir := baseDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := entryPattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		pidStr := match[1]
		if pidStr == "" {
			pidStr = match[2]
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
			continue
		}

		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		if !pidAlive(pid) {
			os.Remove(path)
		}
	}
}

// pidAlive uses github.com/mitchellh/go-ps as a cross-platform
// existence check in place of syscall.Kill(pid, 0).
func pidAlive(pid int) bool {
	proc, err := ps.FindProcess(pid)
	return err == nil && proc != nil
}
