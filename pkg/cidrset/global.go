package cidrset

import "net/netip"

// Address blocks that are not globally routable. A prefix counts as global
// when both its network and broadcast addresses fall outside every block,
// matching the endpoint semantics of RFC 6890 special-purpose registries.
var nonGlobalV4 = mustPrefixes(
	"0.0.0.0/8",          // "this network"
	"10.0.0.0/8",         // private
	"100.64.0.0/10",      // shared address space (CGN)
	"127.0.0.0/8",        // loopback
	"169.254.0.0/16",     // link local
	"172.16.0.0/12",      // private
	"192.0.0.0/24",       // IETF protocol assignments
	"192.0.2.0/24",       // TEST-NET-1
	"192.88.99.0/24",     // 6to4 relay anycast (deprecated)
	"192.168.0.0/16",     // private
	"198.18.0.0/15",      // benchmarking
	"198.51.100.0/24",    // TEST-NET-2
	"203.0.113.0/24",     // TEST-NET-3
	"224.0.0.0/4",        // multicast
	"240.0.0.0/4",        // reserved
	"255.255.255.255/32", // limited broadcast
)

var nonGlobalV6 = mustPrefixes(
	"::/128",        // unspecified
	"::1/128",       // loopback
	"::ffff:0:0/96", // IPv4-mapped
	"100::/64",      // discard-only
	"2001:db8::/32", // documentation
	"fc00::/7",      // unique local
	"fe80::/10",     // link local
	"ff00::/8",      // multicast
)

func mustPrefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(ss))
	for _, s := range ss {
		out = append(out, netip.MustParsePrefix(s))
	}
	return out
}

// addrIsGlobal reports whether a single address is globally routable.
func addrIsGlobal(a netip.Addr) bool {
	blocks := nonGlobalV6
	if a.Is4() {
		blocks = nonGlobalV4
	}
	for _, b := range blocks {
		if b.Contains(a) {
			return false
		}
	}
	return true
}

// IsGlobal reports whether a prefix is globally routable. Both the network
// address and the broadcast address must be global; 0.0.0.0/0 is not.
func IsGlobal(p netip.Prefix) bool {
	return addrIsGlobal(firstAddr(p)) && addrIsGlobal(lastAddr(p))
}

func firstAddr(p netip.Prefix) netip.Addr {
	return p.Masked().Addr()
}

func lastAddr(p netip.Prefix) netip.Addr {
	p = p.Masked()
	if p.IsSingleIP() {
		return p.Addr()
	}
	bytes := p.Addr().As16()
	bits := p.Bits()
	if p.Addr().Is4() {
		bits += 96
	}
	for b := bits; b < 128; b++ {
		bytes[b/8] |= 1 << uint(7-b%8)
	}
	addr := netip.AddrFrom16(bytes)
	if p.Addr().Is4() {
		return addr.Unmap()
	}
	return addr
}
