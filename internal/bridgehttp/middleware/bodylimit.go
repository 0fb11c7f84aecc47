// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package middleware implements the bridge's security-sensitive HTTP
// middleware chain: body size cap, CORS rejection, Host allow-list, and
// bearer-token auth, each a plain func(http.Handler) http.Handler.
package middleware

import "net/http"

// MaxBodyBytes is the request body cap.
const MaxBodyBytes = 10 << 20

// BodyLimit wraps the request body in http.MaxBytesReader; a read past the
// cap surfaces as the downstream JSON decoder's own read error.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
