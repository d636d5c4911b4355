// Package middleware adapts freqlimit.Limiter to net/http: instead of
// rejecting a request that arrives too early, the wrapped handler is
// paced — the request blocks on the limiter's schedule and then runs,
// the same way any other freqlimit.Wait caller does.
package middleware

import (
	"net"
	"net/http"

	"github.com/freqlimit-go/freqlimit"
)

// KeyFunc extracts a rate limit key from an HTTP request. Common
// implementations extract the client IP, an API key, or a user ID.
type KeyFunc func(r *http.Request) string

// IPKeyFunc extracts the client IP address from the request. It
// checks X-Forwarded-For and X-Real-IP headers before falling back to
// RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := range len(xff) {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HeaderKeyFunc returns a KeyFunc that extracts the rate limit key
// from a request header. Useful for API-key or token-based limiting.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

// RateLimiter returns HTTP middleware that paces requests through lim.
// Each request's key blocks on lim.Wait until its GCRA schedule admits
// it, then the wrapped handler runs. If the request's context is
// canceled or its deadline passes while waiting — a client disconnect,
// or a server-side timeout middleware upstream — the handler is
// skipped and the response is 503 Service Unavailable, since there is
// no bounded-wait contract to honor once the caller has given up.
func RateLimiter(lim *freqlimit.Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			if err := lim.Wait(r.Context(), key); err != nil {
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
