package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// clientIP returns the caller's address. Proxy headers are honoured only
// when the peer is a private or loopback address, and only when they hold a
// valid IP; otherwise the peer itself is used. An unparseable peer yields "".
func clientIP(ctx huma.Context) string {
	peer, ok := parseIP(hostOf(ctx.RemoteAddr()))
	if !ok {
		return ""
	}

	if peer.IsPrivate() || peer.IsLoopback() {
		first, _, _ := strings.Cut(ctx.Header("X-Forwarded-For"), ",")

		for _, candidate := range []string{first, ctx.Header("X-Real-IP")} {
			if ip, ok := parseIP(candidate); ok {
				return ip.String()
			}
		}
	}

	return peer.String()
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}

func parseIP(s string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}

	return ip.Unmap().WithZone(""), true
}

// clientKey identifies a client for rate limiting without storing its IP.
func clientKey(ctx huma.Context) string {
	hash := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}
