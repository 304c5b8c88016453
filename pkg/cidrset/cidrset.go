// Package cidrset parses and normalises raw CIDR input. It accepts loose
// notation (host bits are masked away, bare addresses become host routes),
// filters non-global prefixes when asked to, splits the result by IP
// version and collapses each set to minimal form.
package cidrset

import (
	"net/netip"
	"regexp"
	"sort"

	"github.com/aomanu/cidrd/pkg/iprange"
)

// ParseStats counts what happened to a batch of raw CIDR strings.
type ParseStats struct {
	Total     int
	Malformed int
	NonGlobal int
}

// ParseRaw parses a batch of CIDR strings. Malformed entries and, when
// onlyGlobal is set, non-global prefixes are counted and skipped. The
// survivors come back split by version, each side collapsed to minimal form.
func ParseRaw(cidrs []string, onlyGlobal bool) (ParseStats, []netip.Prefix, []netip.Prefix) {
	var stats ParseStats
	var v4, v6 []netip.Prefix

	for _, raw := range cidrs {
		stats.Total++
		p, err := ParseLoose(raw)
		if err != nil {
			stats.Malformed++
			continue
		}
		if onlyGlobal && !IsGlobal(p) {
			stats.NonGlobal++
			continue
		}
		if p.Addr().Is4() {
			v4 = append(v4, p)
		} else {
			v6 = append(v6, p)
		}
	}

	return stats, iprange.Collapse(v4), iprange.Collapse(v6)
}

// ParseLoose parses a CIDR string in non-strict mode: host bits are masked
// to zero and a bare address is treated as a single-host prefix.
func ParseLoose(s string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if a.Is4In6() {
		a = a.Unmap()
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// Free-text extraction patterns, run unanchored over the raw input so
// prefixes survive surrounding punctuation. The IPv6 pattern is
// deliberately loose; matches the parser rejects are dropped.
var (
	ipv4Pattern = regexp.MustCompile(`(?:[0-9]{1,3}\.){3}[0-9]{1,3}(?:/[0-9]{1,2})?`)
	ipv6Pattern = regexp.MustCompile(`[A-Fa-f0-9:]+:[A-Fa-f0-9]*(?:/[0-9]{1,3})?`)
)

// ExtractFreeText scans arbitrary text for CIDR-looking substrings and
// returns the ones that parse, in canonical compressed form, split by
// version.
func ExtractFreeText(text string) ([]string, []string) {
	seen4 := map[string]struct{}{}
	seen6 := map[string]struct{}{}

	for _, match := range ipv4Pattern.FindAllString(text, -1) {
		if p, err := ParseLoose(match); err == nil && p.Addr().Is4() {
			seen4[p.String()] = struct{}{}
		}
	}
	for _, match := range ipv6Pattern.FindAllString(text, -1) {
		if p, err := ParseLoose(match); err == nil && !p.Addr().Is4() {
			seen6[p.String()] = struct{}{}
		}
	}

	return sortedKeys(seen4), sortedKeys(seen6)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Strings renders prefixes in compressed canonical form.
func Strings(prefixes []netip.Prefix) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p.String())
	}
	return out
}
