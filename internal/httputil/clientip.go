package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the originating client address for a request.
// Proxy headers win over the socket address: the first entry of
// X-Forwarded-For, then X-Real-IP, then RemoteAddr with the port
// stripped. Bracketed IPv6 literals in RemoteAddr are handled by
// net.SplitHostPort.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
