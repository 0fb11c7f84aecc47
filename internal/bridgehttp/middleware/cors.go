// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"encoding/json"
	"net/http"
)

// RejectCORS rejects any request carrying a non-empty Origin header with
// HTTP 403: the bridge's wire protocol has no browser-facing caller, so
// any Origin header at all marks the request as untrusted.
func RejectCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Request denied by CORS policy."})
			return
		}
		next.ServeHTTP(w, r)
	})
}
