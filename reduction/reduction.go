// Copyright (C) 2024 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package reduction implements the reduction function family that maps a
// hash back into the preimage-index space, parameterized by round and
// table index so that sibling tables' chains diverge.
package reduction

// Mixer is the fixed non-zero constant M folded into the reduction along
// with the table index tau. It is part of the on-disk contract: sibling
// tables must share it. The value is the standard 64-bit golden-ratio
// mixing constant, chosen so that small, sequential tau values spread
// widely across [0, N) instead of landing close together.
const Mixer uint64 = 0x9E3779B97F4A7C15

// Func reduces a 16-byte digest at round r of table tau into [0, N).
func Func(h [16]byte, r int, tau uint64, n uint64) uint64 {
	x := beUint64Fold(h)
	x %= n
	add := (uint64(r) + mulMod(Mixer, tau, n)) % n
	return (x + add) % n
}

// beUint64Fold folds all 16 hash bytes into a uint64 via the running
// "x = x*256 + b (mod 2^64)" recurrence. Overflow in the multiply/add is
// intentional 64-bit wraparound, matching the
// big-endian-integer-mod-2^64 interpretation of the digest.
func beUint64Fold(h [16]byte) uint64 {
	var x uint64
	for _, b := range h {
		x = x*256 + uint64(b)
	}
	return x
}

// mulMod computes a*b mod n without overflowing uint64, using the
// standard double-and-add technique (n is assumed small relative to
// 2^63 for any realistic preimage space, but this is exact regardless).
func mulMod(a, b, n uint64) uint64 {
	a %= n
	var result uint64
	for b > 0 {
		// Additions are done as a subtraction when they would reach n,
		// so no intermediate value exceeds n-1 even for n > 2^63.
		if b&1 == 1 {
			if result >= n-a {
				result -= n - a
			} else {
				result += a
			}
		}
		if a >= n-a {
			a -= n - a
		} else {
			a += a
		}
		b >>= 1
	}
	return result
}
