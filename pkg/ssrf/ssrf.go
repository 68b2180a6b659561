// Package ssrf implements the Fetcher's SSRF guard (spec §4.1: "Blocks
// requests whose resolved host is loopback, link-local, or any
// RFC 1918 range. The check is performed after DNS resolution, before
// socket connect"). There is no teacher analogue for this exact check
// (tarsy's controller never fetches third-party URLs), so this is
// enriched from the pack's rohmanhakim/docs-crawler, whose fetcher
// resolves the host and screens returned IPs before dialing; the
// dial-time hook shape (net.Dialer.Control) is standard library since
// no example repo wires a third-party DNS/dialer guard library.
package ssrf

import (
	"context"
	"fmt"
	"net"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
)

// Guard resolves hostnames and rejects any that resolve to a blocked
// address range, unless AllowLoopback permits loopback addresses
// (used in local/dev configurations per spec §6 SSRF_ALLOW_LOOPBACK).
type Guard struct {
	AllowLoopback bool
	resolver      *net.Resolver
}

// New constructs a Guard that resolves hosts via net.DefaultResolver.
func New(allowLoopback bool) *Guard {
	return &Guard{AllowLoopback: allowLoopback, resolver: net.DefaultResolver}
}

// CheckHost resolves host and returns an error of Kind KindSSRFBlocked
// if any resolved address falls in a blocked range. It performs no
// socket connect itself — callers (pkg/fetcher) must call CheckHost
// before dialing, never after.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, fmt.Sprintf("dns lookup failed for %s", host), err)
	}
	if len(addrs) == 0 {
		return errs.New(errs.KindNetwork, fmt.Sprintf("no addresses resolved for %s", host))
	}
	for _, a := range addrs {
		if g.blocked(a.IP) {
			return errs.New(errs.KindSSRFBlocked, fmt.Sprintf("host %s resolves to blocked address %s", host, a.IP))
		}
	}
	return nil
}

// blocked reports whether ip falls in a range the SSRF guard must
// reject: loopback, link-local unicast, link-local multicast, or any
// RFC 1918 private range. Loopback is exempt when AllowLoopback is set.
func (g *Guard) blocked(ip net.IP) bool {
	if ip.IsLoopback() {
		return !g.AllowLoopback
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if ip.IsUnspecified() {
		return true
	}
	return false
}

// Control returns a net.Dialer.Control-compatible function that
// performs the same screen at dial time, for defense in depth against
// TOCTOU DNS rebinding between CheckHost and the actual connect. The
// dialer always receives an already-resolved IP in address, so this
// re-derives the IP without a second DNS lookup.
func (g *Guard) Control(_ context.Context, _, address string, _ any) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("ssrf guard: could not parse dial address %q", address)
	}
	if g.blocked(ip) {
		return errs.New(errs.KindSSRFBlocked, fmt.Sprintf("dial to blocked address %s rejected", ip))
	}
	return nil
}
