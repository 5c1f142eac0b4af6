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

// Package chain implements the rainbow chain engine: alternating
// reduce/hash steps from a start index through a fixed number of rounds.
package chain

import (
	"rtcore.dev/rainbow/alphabet"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/reduction"
)

// Engine binds a preimage Space and Hash to one table's (tau, N) so that
// every chain operation is deterministic for a fixed set of parameters.
type Engine struct {
	Space *alphabet.Space
	Hash  hash.Func
	Tau   uint64
}

// HashOf computes H(s(x)) for preimage index x.
func (e *Engine) HashOf(x uint64) [16]byte {
	buf := make([]byte, 0, e.Space.MaxLen)
	s := e.Space.StringFromIndex(x, buf)
	var out [16]byte
	e.Hash.Sum(&out, s)
	return out
}

// ChainEnd applies reduce->hash steps (endRound-startRound) of them,
// starting from index x, and returns the index and hash after the last
// step. ChainEnd(x, r, r) is the identity: (x, H(s(x))).
func (e *Engine) ChainEnd(x uint64, startRound, endRound int) (uint64, [16]byte) {
	if startRound == endRound {
		return x, e.HashOf(x)
	}
	return e.stepRange(e.HashOf(x), x, startRound, endRound)
}

// ChainEndFromHash is ChainEnd but the walk begins from a hash value
// rather than an index: h is interpreted as the hash produced just
// before round startRound is applied. Used by lookup, which only has a
// queried hash, not the (unknown) index that produced it.
func (e *Engine) ChainEndFromHash(h [16]byte, startRound, endRound int) (uint64, [16]byte) {
	if startRound >= endRound {
		return 0, h
	}
	return e.stepRange(h, 0, startRound, endRound)
}

func (e *Engine) stepRange(h [16]byte, x uint64, startRound, endRound int) (uint64, [16]byte) {
	n := e.Space.N()
	for r := startRound; r < endRound; r++ {
		x = reduction.Func(h, r, e.Tau, n)
		h = e.HashOf(x)
	}
	return x, h
}

// Walk yields (round, index, hash) for round 0 (x0, H(s(x0))) through
// round `rounds` inclusive, stopping early if yield returns false. It is
// the basis of lookup's candidate-chain verification and of
// chain-determinism tests.
func (e *Engine) Walk(x0 uint64, rounds int, yield func(round int, x uint64, h [16]byte) bool) {
	x := x0
	h := e.HashOf(x)
	if !yield(0, x, h) {
		return
	}
	n := e.Space.N()
	for i := 0; i < rounds; i++ {
		x = reduction.Func(h, i, e.Tau, n)
		h = e.HashOf(x)
		if !yield(i+1, x, h) {
			return
		}
	}
}
