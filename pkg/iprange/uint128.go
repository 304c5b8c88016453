package iprange

import "math/bits"

// Uint128 is an unsigned 128-bit integer built from two uint64 limbs.
// IPv6 interval arithmetic needs the full 128 bits; IPv4 addresses live
// in the low limb with Hi == 0.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Zero is the all-zeroes value.
var Zero = Uint128{}

// Max is the all-ones value (the broadcast address of ::/0).
var Max = Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}

// Cmp returns -1, 0 or 1 comparing u against v.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Less reports whether u < v.
func (u Uint128) Less(v Uint128) bool { return u.Cmp(v) < 0 }

// Add64 returns u + n. The second return value reports overflow.
func (u Uint128) Add64(n uint64) (Uint128, bool) {
	lo, carry := bits.Add64(u.Lo, n, 0)
	hi, carry2 := bits.Add64(u.Hi, 0, carry)
	return Uint128{Hi: hi, Lo: lo}, carry2 != 0
}

// Sub64 returns u - n. The second return value reports underflow.
func (u Uint128) Sub64(n uint64) (Uint128, bool) {
	lo, borrow := bits.Sub64(u.Lo, n, 0)
	hi, borrow2 := bits.Sub64(u.Hi, 0, borrow)
	return Uint128{Hi: hi, Lo: lo}, borrow2 != 0
}

// Sub returns u - v. Callers must guarantee u >= v.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}
}

// Or returns u | v.
func (u Uint128) Or(v Uint128) Uint128 {
	return Uint128{Hi: u.Hi | v.Hi, Lo: u.Lo | v.Lo}
}

// TrailingZeros returns the number of trailing zero bits in u.
// Returns 128 for the zero value.
func (u Uint128) TrailingZeros() int {
	if u.Lo != 0 {
		return bits.TrailingZeros64(u.Lo)
	}
	return 64 + bits.TrailingZeros64(u.Hi)
}

// BitLen returns the number of bits required to represent u.
func (u Uint128) BitLen() int {
	if u.Hi != 0 {
		return 64 + bits.Len64(u.Hi)
	}
	return bits.Len64(u.Lo)
}

// ShiftLeftOne returns 1 << n for 0 <= n < 128.
func ShiftLeftOne(n int) Uint128 {
	if n < 64 {
		return Uint128{Lo: 1 << uint(n)}
	}
	return Uint128{Hi: 1 << uint(n-64)}
}

// AddPow2 returns u + 1<<n, reporting overflow. n == 128 always
// overflows; it shows up when a single prefix covers the whole space.
func (u Uint128) AddPow2(n int) (Uint128, bool) {
	if n >= 128 {
		return u, true
	}
	p := ShiftLeftOne(n)
	lo, carry := bits.Add64(u.Lo, p.Lo, 0)
	hi, carry2 := bits.Add64(u.Hi, p.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}, carry2 != 0
}
