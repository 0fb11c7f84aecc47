// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// HostCheck rejects requests whose Host header is not exactly
// "localhost:<port>" or "127.0.0.1:<port>".
func HostCheck(port int) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{
		hostPort("localhost", port):  {},
		hostPort("127.0.0.1", port): {},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[r.Host]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "Invalid Host header"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
