package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed
type IPConfig struct {
	TrustedProxies []string // CIDR ranges; invalid entries are ignored
}

// prefixes parses TrustedProxies, skipping entries that are not valid CIDRs
func (c *IPConfig) prefixes() []netip.Prefix {
	if c == nil {
		return nil
	}
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, cidr := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
			out = append(out, p.Masked())
		}
	}
	return out
}

// ExtractClientIP returns the address used to identify the caller.
//
// Forwarding headers are only read when the direct peer is a trusted proxy.
// X-Forwarded-For is walked right to left and the first hop that is not
// itself a trusted proxy wins, so a client cannot prepend a forged address.
// X-Real-IP is used when X-Forwarded-For yields nothing.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote, ok := remoteAddr(r)
	if !ok {
		return r.RemoteAddr
	}

	trusted := config.prefixes()
	if !contains(trusted, remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !contains(trusted, hop) {
				return hop.String()
			}
		}
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}

	return remote.String()
}

// remoteAddr parses RemoteAddr with or without a port
func remoteAddr(r *http.Request) (netip.Addr, bool) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
