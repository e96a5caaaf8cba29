package headerauth

import (
	"fmt"
	"net/netip"
	"strings"
)

// Allowlist is the set of proxy addresses trusted to inject identity
// headers. It is immutable, so concurrent reads need no lock.
type Allowlist struct {
	addrs map[netip.Addr]struct{}
}

// NewAllowlist parses every entry as an IP address. Blank entries are skipped.
func NewAllowlist(entries []string) (*Allowlist, error) {
	a := &Allowlist{addrs: make(map[netip.Addr]struct{}, len(entries))}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy address %q: %w", entry, err)
		}
		a.addrs[addr.Unmap()] = struct{}{}
	}
	return a, nil
}

// Contains reports whether ip is trusted. IPv4-mapped IPv6 addresses match
// their IPv4 form; anything unparsable is untrusted.
func (a *Allowlist) Contains(ip string) bool {
	if a == nil || len(a.addrs) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	_, ok := a.addrs[addr.Unmap()]
	return ok
}

// Len returns the number of trusted addresses
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.addrs)
}
