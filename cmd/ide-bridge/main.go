// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/climbus/ide-bridge/internal/bridge"
)

var version = "0.1.0"

func main() {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to ide-bridge config file (default: auto-detect)")
	flag.BoolVar(&debug, "debug", false, "Enable the debug WebSocket (/debug/events)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("ide-bridge %s\n", version)
		os.Exit(0)
	}

	opts := bridge.Options{
		SocketPath:    os.Getenv("IDE_BRIDGE_SOCKET"),
		WorkspacePath: os.Getenv("IDE_BRIDGE_WORKSPACE_PATH"),
		ConfigPath:    configPath,
		Debug:         debug,
	}
	if opts.SocketPath == "" {
		log.Fatal("IDE_BRIDGE_SOCKET is required")
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = os.Getenv("IDE_BRIDGE_CONFIG")
	}
	if pidStr := os.Getenv("IDE_BRIDGE_EDITOR_PID"); pidStr != "" {
		if pid, err := strconv.Atoi(pidStr); err == nil {
			opts.EditorPID = pid
		}
	}
	if !debug {
		opts.Debug = envBool("IDE_BRIDGE_DEBUG")
	}

	app := bridge.New(opts)
	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("ide-bridge: %v", err)
	}
}

func envBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
