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

package rtable

import (
	"fmt"
	"math/bits"

	"rtcore.dev/rainbow/alphabet"
)

// Params is the persisted parameter set for one table: the preimage
// space, chain length, table index, and start-value count. It is written
// next to every table's entry file as "<path>.params", as a six-field
// line: "|A| A N t tau m".
type Params struct {
	Alphabet   []byte
	N          uint64
	ChainLen   int
	TableIndex uint64
	NumStart   uint64

	// maxLen is not part of the on-disk record; it is recomputed from
	// Alphabet and N whenever a Params value is decoded.
	maxLen int
}

// MaxLen is the implicit maximum preimage length for this parameter set.
func (p Params) MaxLen() int { return p.maxLen }

// Space builds the alphabet.Space implied by p.
func (p Params) Space() (*alphabet.Space, error) {
	sp, err := alphabet.NewSpace(p.Alphabet, p.maxLen)
	if err != nil {
		return nil, err
	}
	if sp.N() != p.N {
		return nil, fmt.Errorf("rtable: params N=%d disagrees with alphabet/max_len (computed %d)", p.N, sp.N())
	}
	return sp, nil
}

// NewParams derives N from alpha and maxLen and validates the
// tau*m+m <= N invariant that keeps sibling tables' start ranges
// disjoint.
func NewParams(alpha []byte, maxLen, chainLen int, tau, m uint64) (Params, error) {
	sp, err := alphabet.NewSpace(alpha, maxLen)
	if err != nil {
		return Params{}, err
	}
	if chainLen <= 0 {
		return Params{}, fmt.Errorf("rtable: chain_len must be positive, got %d", chainLen)
	}
	hi, sum := bits.Add64(tau*m, m, 0)
	if hi != 0 {
		return Params{}, fmt.Errorf("rtable: tau*m+m overflows uint64")
	}
	if sum > sp.N() {
		return Params{}, fmt.Errorf("rtable: tau*m+m (%d) exceeds N (%d)", sum, sp.N())
	}
	return Params{
		Alphabet:   append([]byte(nil), alpha...),
		N:          sp.N(),
		ChainLen:   chainLen,
		TableIndex: tau,
		NumStart:   m,
		maxLen:     maxLen,
	}, nil
}

// deriveMaxLen recovers max_len from an alphabet size and a declared N by
// summing |A|^0 + |A|^1 + ... until the running total reaches N exactly.
// A mismatch (N never lands exactly on a length boundary) means the
// parameter file is malformed or its alphabet size disagrees with the
// one it was written with.
func deriveMaxLen(alphaSize int, n uint64) (int, error) {
	if alphaSize == 0 {
		return 0, fmt.Errorf("rtable: empty alphabet")
	}
	total := uint64(1)
	if total == n {
		return 0, nil
	}
	count := uint64(1)
	for l := 1; ; l++ {
		hi, lo := bits.Mul64(count, uint64(alphaSize))
		if hi != 0 {
			return 0, fmt.Errorf("rtable: N=%d too large for alphabet size %d", n, alphaSize)
		}
		count = lo
		nextTotal, carry := bits.Add64(total, count, 0)
		if carry != 0 {
			return 0, fmt.Errorf("rtable: N=%d too large for alphabet size %d", n, alphaSize)
		}
		total = nextTotal
		if total == n {
			return l, nil
		}
		if total > n || l > 4096 {
			return 0, fmt.Errorf("rtable: N=%d does not correspond to any max_len for alphabet size %d", n, alphaSize)
		}
	}
}
