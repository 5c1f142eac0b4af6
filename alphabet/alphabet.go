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

// Package alphabet implements the bijection between natural numbers and
// variable-length strings over a fixed byte alphabet, enumerated
// length-first and lexicographic within length.
package alphabet

import (
	"fmt"
	"math/bits"
)

// Space is an enumerable set of strings over Alphabet of length
// 0..MaxLen, indexed 0..N-1 in length-first, lexicographic order.
type Space struct {
	Alphabet []byte
	MaxLen   int

	// offsets[l] is the index of the first string of length l;
	// offsets[MaxLen+1] == N.
	offsets []uint64
}

// NewSpace builds a Space over alpha with strings of length 0..maxLen.
// It returns an error if alpha is empty, contains duplicate bytes, or if
// the resulting N overflows uint64.
func NewSpace(alpha []byte, maxLen int) (*Space, error) {
	if len(alpha) == 0 {
		return nil, fmt.Errorf("alphabet: empty alphabet")
	}
	if maxLen < 0 {
		return nil, fmt.Errorf("alphabet: negative max_len %d", maxLen)
	}
	seen := make(map[byte]bool, len(alpha))
	for _, b := range alpha {
		if seen[b] {
			return nil, fmt.Errorf("alphabet: duplicate byte %q", b)
		}
		seen[b] = true
	}
	offsets := make([]uint64, maxLen+2)
	count := uint64(1) // length 0 contributes exactly one string
	offsets[0] = 0
	for l := 0; l <= maxLen; l++ {
		offsets[l+1] = offsets[l] + count
		if l == maxLen {
			break
		}
		hi, lo := bits.Mul64(count, uint64(len(alpha)))
		if hi != 0 {
			return nil, fmt.Errorf("alphabet: preimage space overflows uint64 at length %d", l+1)
		}
		count = lo
	}
	return &Space{Alphabet: append([]byte(nil), alpha...), MaxLen: maxLen, offsets: offsets}, nil
}

// N is the total number of strings in the space (all lengths 0..MaxLen).
func (s *Space) N() uint64 {
	return s.offsets[len(s.offsets)-1]
}

// lengthOf returns the string length whose index range contains n, and
// the offset of that length's first index.
func (s *Space) lengthOf(n uint64) (length int, offset uint64) {
	for l := 0; l <= s.MaxLen; l++ {
		if n < s.offsets[l+1] {
			return l, s.offsets[l]
		}
	}
	// n >= N: clamp to the last length; callers are expected to have
	// checked n < N already.
	return s.MaxLen, s.offsets[s.MaxLen]
}

// StringFromIndex returns the string at position n, appended to dst.
// The caller must ensure n < s.N().
func (s *Space) StringFromIndex(n uint64, dst []byte) []byte {
	length, offset := s.lengthOf(n)
	rem := n - offset
	start := len(dst)
	for i := 0; i < length; i++ {
		dst = append(dst, 0)
	}
	base := uint64(len(s.Alphabet))
	for i := length - 1; i >= 0; i-- {
		dst[start+i] = s.Alphabet[rem%base]
		rem /= base
	}
	return dst
}

// IndexFromString returns the index of s within the space, if s consists
// entirely of alphabet bytes and has length <= MaxLen.
func (sp *Space) IndexFromString(s []byte) (uint64, bool) {
	if len(s) > sp.MaxLen {
		return 0, false
	}
	digit := make(map[byte]uint64, len(sp.Alphabet))
	for i, b := range sp.Alphabet {
		digit[b] = uint64(i)
	}
	base := uint64(len(sp.Alphabet))
	var rem uint64
	for _, b := range s {
		d, ok := digit[b]
		if !ok {
			return 0, false
		}
		rem = rem*base + d
	}
	return sp.offsets[len(s)] + rem, true
}
