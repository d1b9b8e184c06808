package pkg

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is a set of addresses and CIDR ranges of reverse proxies
// allowed to report the client address via X-Real-Ip / X-Forwarded-For.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts plain IPs ("10.0.0.1") and CIDRs ("10.0.0.0/8").
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy: %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy: %q", entry)
		}
		proxies = append(proxies, ipNet)
	}
	return proxies, nil
}

func (p TrustedProxies) Contains(ip net.IP) bool {
	for _, ipNet := range p {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ReadUserIP returns the client address of the request. The direct peer is
// used unless it is one of the trusted proxies, in which case X-Real-Ip or
// the nearest untrusted X-Forwarded-For hop is taken. The port, if any, is
// stripped.
func ReadUserIP(r *http.Request, trusted TrustedProxies) (string, error) {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	peerIP := net.ParseIP(peer)
	if peerIP == nil {
		return "", fmt.Errorf("ip addr %s is invalid", peer)
	}

	if !trusted.Contains(peerIP) {
		return peerIP.String(), nil
	}

	if realIP := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-Ip"))); realIP != nil {
		return realIP.String(), nil
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hopIP := net.ParseIP(strings.TrimSpace(hops[i]))
		if hopIP == nil {
			break
		}
		if !trusted.Contains(hopIP) {
			return hopIP.String(), nil
		}
	}

	return peerIP.String(), nil
}
