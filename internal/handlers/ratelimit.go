package handlers

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RateLimiter is what the auth endpoints need to throttle login, OTP, and
// registration traffic. The middleware package provides the implementation.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	key := rateLimitKey(r, scope)
	return limiter.Allow(key)
}

func rateLimitKey(r *http.Request, scope string) string {
	ip := clientIP(r)
	if scope == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", scope, ip)
}

// clientIP prefers the first X-Forwarded-For hop since the API sits behind a
// proxy in deployment, falling back to the socket address locally.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
