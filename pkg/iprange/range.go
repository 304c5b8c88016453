// Package iprange implements integer-interval algebra over network
// prefixes: subtraction of one interval from another, summarisation of an
// arbitrary interval back to the minimal set of aligned prefixes, and the
// exclude-many operation the CIDR engine is built on.
//
// Intervals are closed [lo, hi] pairs where lo is the network address and
// hi the broadcast address, held as 128-bit integers so IPv6 works without
// overflow. IPv4 addresses occupy the low 32 bits.
package iprange

import (
	"fmt"
	"net/netip"
)

// Range is a closed interval of addresses of a single IP version.
type Range struct {
	Lo, Hi Uint128
	is4    bool
}

// addrToUint128 converts an address to its integer form.
func addrToUint128(a netip.Addr) Uint128 {
	if a.Is4() {
		b := a.As4()
		return Uint128{Lo: uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])}
	}
	b := a.As16()
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
		lo = lo<<8 | uint64(b[i+8])
	}
	return Uint128{Hi: hi, Lo: lo}
}

// uint128ToAddr converts an integer back to an address of the given version.
func uint128ToAddr(u Uint128, is4 bool) netip.Addr {
	if is4 {
		v := uint32(u.Lo)
		return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
	var b [16]byte
	hi, lo := u.Hi, u.Lo
	for i := 7; i >= 0; i-- {
		b[i] = byte(hi)
		b[i+8] = byte(lo)
		hi >>= 8
		lo >>= 8
	}
	return netip.AddrFrom16(b)
}

// FromPrefix converts a prefix to its [network, broadcast] interval.
func FromPrefix(p netip.Prefix) Range {
	p = p.Masked()
	is4 := p.Addr().Is4()
	totalBits := 128
	if is4 {
		totalBits = 32
	}
	lo := addrToUint128(p.Addr())
	hostBits := totalBits - p.Bits()
	hi := lo
	if hostBits > 0 {
		span, _ := ShiftLeftOne(hostBits).Sub64(1)
		hi = lo.Or(span)
	}
	return Range{Lo: lo, Hi: hi, is4: is4}
}

// Is4 reports whether the range holds IPv4 addresses.
func (r Range) Is4() bool { return r.is4 }

// Subtract removes x from r, yielding zero, one or two remaining intervals.
// Both ranges must be of the same IP version.
func (r Range) Subtract(x Range) []Range {
	switch {
	case r.Lo.Cmp(x.Hi) > 0 || r.Hi.Cmp(x.Lo) < 0:
		// disjoint
		return []Range{r}
	case r.Lo.Cmp(x.Lo) >= 0 && r.Hi.Cmp(x.Hi) <= 0:
		// fully covered
		return nil
	case r.Lo.Cmp(x.Lo) >= 0:
		// x overlaps the left edge
		lo, _ := x.Hi.Add64(1)
		return []Range{{Lo: lo, Hi: r.Hi, is4: r.is4}}
	case r.Hi.Cmp(x.Hi) <= 0:
		// x overlaps the right edge
		hi, _ := x.Lo.Sub64(1)
		return []Range{{Lo: r.Lo, Hi: hi, is4: r.is4}}
	default:
		// x strictly inside r
		leftHi, _ := x.Lo.Sub64(1)
		rightLo, _ := x.Hi.Add64(1)
		return []Range{
			{Lo: r.Lo, Hi: leftHi, is4: r.is4},
			{Lo: rightLo, Hi: r.Hi, is4: r.is4},
		}
	}
}

// Prefixes summarises the interval into the minimal set of aligned prefixes,
// largest blocks first from the low end.
func (r Range) Prefixes() []netip.Prefix {
	totalBits := 128
	if r.is4 {
		totalBits = 32
	}
	var out []netip.Prefix
	lo := r.Lo
	for lo.Cmp(r.Hi) <= 0 {
		// Largest power-of-two block that is aligned at lo and does not
		// run past hi.
		align := lo.TrailingZeros()
		if align > totalBits {
			align = totalBits
		}
		span := r.Hi.Sub(lo) // hi - lo == size - 1
		var sizeBits int
		if span == Max {
			sizeBits = totalBits // the whole space
		} else {
			s, _ := span.Add64(1)
			sizeBits = s.BitLen() - 1
		}
		n := align
		if sizeBits < n {
			n = sizeBits
		}
		out = append(out, netip.PrefixFrom(uint128ToAddr(lo, r.is4), totalBits-n))
		next, overflow := lo.AddPow2(n)
		if overflow {
			break
		}
		lo = next
	}
	return out
}

// String renders the interval for debugging.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", uint128ToAddr(r.Lo, r.is4), uint128ToAddr(r.Hi, r.is4))
}

// ExcludeMany removes every same-version exclusion from cidr and returns the
// minimal prefix cover of what is left. Exclusions of the other IP version
// are ignored. Returns nil when the exclusions cover cidr entirely.
func ExcludeMany(cidr netip.Prefix, exclusions []netip.Prefix) []netip.Prefix {
	base := FromPrefix(cidr)
	remaining := []Range{base}
	for _, excl := range exclusions {
		if excl.Addr().Is4() != base.is4 {
			continue
		}
		x := FromPrefix(excl)
		var next []Range
		for _, r := range remaining {
			next = append(next, r.Subtract(x)...)
		}
		remaining = next
		if len(remaining) == 0 {
			return nil
		}
	}

	var prefixes []netip.Prefix
	for _, r := range remaining {
		prefixes = append(prefixes, r.Prefixes()...)
	}
	return Collapse(prefixes)
}

// Collapse merges a set of prefixes into the minimal equivalent set:
// overlapping and adjacent intervals are joined, then re-summarised.
// Mixed IP versions are allowed; IPv4 results sort before IPv6.
func Collapse(prefixes []netip.Prefix) []netip.Prefix {
	var v4, v6 []Range
	for _, p := range prefixes {
		r := FromPrefix(p)
		if r.is4 {
			v4 = append(v4, r)
		} else {
			v6 = append(v6, r)
		}
	}
	var out []netip.Prefix
	for _, merged := range [][]Range{mergeRanges(v4), mergeRanges(v6)} {
		for _, r := range merged {
			out = append(out, r.Prefixes()...)
		}
	}
	return out
}

// mergeRanges sorts same-version intervals by their low end and joins any
// that overlap or touch.
func mergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sortRangesByLo(ranges)
	merged := []Range{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		// Adjacent when r.Lo == last.Hi + 1.
		join := r.Lo.Cmp(last.Hi) <= 0
		if !join && last.Hi != Max {
			next, _ := last.Hi.Add64(1)
			join = r.Lo.Cmp(next) == 0
		}
		if join {
			if last.Hi.Cmp(r.Hi) < 0 {
				last.Hi = r.Hi
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func sortRangesByLo(ranges []Range) {
	// Insertion sort; exclusion sets are small and mostly sorted already.
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && ranges[j].Lo.Less(ranges[j-1].Lo); j-- {
			ranges[j], ranges[j-1] = ranges[j-1], ranges[j]
		}
	}
}
