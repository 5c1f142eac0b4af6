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

// Package lookup implements table inversion: LookupSequential, the
// single-threaded reference, and Lookup, the backend-driven fan-out
// with sort-then-binary-search.
package lookup

import (
	"math"

	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/rtable"
)

// NotFound is the sentinel returned for a hash not covered by the table.
const NotFound = math.MaxUint64

// LookupSequential implements lookup_single: for every offset i in
// [0, t), compute the endpoint reachable from h in (t-i) steps, probe
// the table, and
// for any match walk the candidate chain from its start rehashing at
// each round to confirm h actually occurs in it (chain collisions make
// an endpoint match alone insufficient).
func LookupSequential(eng *chain.Engine, t *rtable.Table, h [16]byte) (uint64, bool) {
	chainLen := t.Params.ChainLen
	for i := 0; i < chainLen; i++ {
		endpoint, _ := eng.ChainEndFromHash(h, i, chainLen)
		entry, ok := t.Find(endpoint)
		if !ok {
			continue
		}
		if x, ok := verifyCandidate(eng, entry.Start, i, h); ok {
			return x, true
		}
	}
	return 0, false
}

// verifyCandidate walks the chain from start for `rounds` rounds and
// returns the index at the round whose hash equals target, if any.
func verifyCandidate(eng *chain.Engine, start uint64, rounds int, target [16]byte) (uint64, bool) {
	var found uint64
	var ok bool
	eng.Walk(start, rounds, func(round int, x uint64, h [16]byte) bool {
		if h == target {
			found, ok = x, true
			return false
		}
		return true
	})
	return found, ok
}

// LookupManySequential fans LookupSequential out over every hash.
func LookupManySequential(eng *chain.Engine, t *rtable.Table, hashes [][16]byte) []uint64 {
	out := make([]uint64, len(hashes))
	for i, h := range hashes {
		if x, ok := LookupSequential(eng, t, h); ok {
			out[i] = x
		} else {
			out[i] = NotFound
		}
	}
	return out
}
