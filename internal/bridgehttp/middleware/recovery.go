// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/climbus/ide-bridge/internal/bridgehttp/jsonrpc"
)

// Recovery recovers from panics in downstream handlers and reports them
// as a JSON-RPC internal error instead of tearing down the process — a
// single malformed request must never kill the bridge out from under the
// editor session.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %v\n%s", err, debug.Stack())
				jsonrpc.WriteError(w, http.StatusInternalServerError, nil, jsonrpc.CodeInternalError, "internal error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
