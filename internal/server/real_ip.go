package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIP returns the best-effort peer address for a request. Proxy
// headers win over the socket address so logs stay useful behind a
// reverse proxy.
func RealIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := normalizeIP(part); ip != "" {
			return ip
		}
	}
	if ip := normalizeIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// normalizeIP strips quoting, brackets and a trailing port from a
// single header value. Values that still do not parse pass through
// unchanged so the log shows what the proxy sent.
func normalizeIP(value string) string {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" || strings.EqualFold(value, "unknown") {
		return ""
	}
	if host, _, err := net.SplitHostPort(value); err == nil && host != "" {
		value = host
	} else {
		value = strings.Trim(value, "[]")
	}
	if addr, err := netip.ParseAddr(value); err == nil {
		return addr.String()
	}
	return value
}
