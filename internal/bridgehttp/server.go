// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridgehttp is the HTTP/JSON-RPC Front-End: binds
// 127.0.0.1 on an ephemeral port, applies the bridge's security
// middleware chain ahead of the mark3labs/mcp-go StreamableHTTPServer,
// and exposes the openDiff/closeDiff tool surface plus an optional
// debug WebSocket, using a mux.Router with per-route middleware
// subrouters ahead of the MCP StreamableHTTPServer handler.
package bridgehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"

	bwsocket "github.com/climbus/ide-bridge/internal/bridgehttp/debugws"
	"github.com/climbus/ide-bridge/internal/bridgehttp/jsonrpc"
	"github.com/climbus/ide-bridge/internal/bridgehttp/middleware"
	"github.com/climbus/ide-bridge/internal/lifecycle"
	"github.com/climbus/ide-bridge/internal/sessionhub"
)

// Config configures the front-end server.
type Config struct {
	Token string // process-lifetime bearer token
	Debug bool   // exposes GET /debug/events
}

// Server is the bridge's HTTP front-end.
type Server struct {
	cfg      Config
	hub      *sessionhub.Hub
	lc       *lifecycle.Bus
	router   *mux.Router
	listener net.Listener
	httpSrv  *http.Server
}

// New builds the front-end server and registers the MCP tools. It does
// not bind: Listen picks the OS-chosen ephemeral port and builds the
// router, whose Host allow-list needs that port.
func New(cfg Config, mcpServer *server.MCPServer, hub *sessionhub.Hub, lc *lifecycle.Bus, coord diffCoordinator) *Server {
	registerTools(mcpServer, coord)

	s := &Server{cfg: cfg, hub: hub, lc: lc}
	return s
}

// Listen binds 127.0.0.1 on an ephemeral port and builds the router now
// that the bound port is known (the Host allow-list needs it).
func (s *Server) Listen(mcpServer *server.MCPServer) (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("bridgehttp: listen: %w", err)
	}
	s.listener = ln
	port := ln.Addr().(*net.TCPAddr).Port

	s.router = s.buildRouter(mcpServer, port)
	s.httpSrv = &http.Server{Handler: s.router}
	return port, nil
}

// Addr returns the bound listener address ("127.0.0.1:<port>"). Must be
// called after Listen.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve runs the HTTP server until Shutdown is called. Must be called
// after Listen.
func (s *Server) Serve() error {
	log.Printf("bridgehttp: listening on %s", s.listener.Addr())
	err := s.httpSrv.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new work.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter(mcpServer *server.MCPServer, port int) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	streamSrv := server.NewStreamableHTTPServer(mcpServer)

	mcpRoute := r.Path("/mcp").Subrouter()
	mcpRoute.Use(middleware.BodyLimit)
	mcpRoute.Use(middleware.RejectCORS)
	mcpRoute.Use(middleware.HostCheck(port))
	mcpRoute.Use(middleware.BearerAuth(s.cfg.Token))
	mcpRoute.Methods(http.MethodPost).Handler(s.wrapPOSTSessionCheck(streamSrv))
	mcpRoute.Methods(http.MethodGet).Handler(streamSrv)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	if s.cfg.Debug && s.lc != nil {
		r.HandleFunc("/debug/events", bwsocket.Handler(s.lc)).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.hub.Len())
}

// rpcProbe reads just enough of a POST body to route it: the method name
// (to tell initialize apart from everything else) and the id (to echo
// back on a rejection).
type rpcProbe struct {
	ID     interface{} `json:"id"`
	Method string      `json:"method"`
}

// wrapPOSTSessionCheck enforces the streamable transport's own session
// contract before the request ever reaches it: every POST other than
// initialize must carry a mcp-session-id naming a session the hub still
// has live. A request that fails this check gets the exact 400/-32000
// JSON-RPC envelope the wire protocol specifies, instead of whatever the
// underlying library would otherwise do with an unrecognized or missing
// session. The body is buffered and replaced so the real handler still
// sees it intact.
func (s *Server) wrapPOSTSessionCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			jsonrpc.WriteError(w, http.StatusBadRequest, nil, jsonrpc.CodeParseError, "Parse error")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var probe rpcProbe
		_ = json.Unmarshal(body, &probe) // malformed JSON leaves probe empty: rejected below unless it names a live session, else the real handler reports the parse error

		sessionID := r.Header.Get("mcp-session-id")
		if probe.Method != "initialize" && (sessionID == "" || !s.hub.Has(sessionID)) {
			jsonrpc.WriteError(w, http.StatusBadRequest, probe.ID, jsonrpc.CodeServerError,
				"Bad Request: No valid session ID provided for non-initialize request.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
