package server

import (
	"net"
	"net/http"
	"strings"
)

// effectiveHost returns the lowercased hostname used for tenant lookup.
// Behind a trusted proxy the RFC 7239 Forwarded host wins over
// X-Forwarded-Host, which wins over Host.
func effectiveHost(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if h := forwardedHost(r); h != "" {
			return normalizeHostname(h)
		}
	}
	return normalizeHostname(r.Host)
}

func forwardedHost(r *http.Request) string {
	if h := rfc7239Host(r.Header.Get("Forwarded")); h != "" {
		return h
	}
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Host"), ",")
	return strings.TrimSpace(first)
}

// rfc7239Host reads host= from the first element of a Forwarded header.
func rfc7239Host(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	for pair := range strings.SplitSeq(first, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.EqualFold(k, "host") {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}

func normalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	return strings.ToLower(host)
}
