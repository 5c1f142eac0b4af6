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

// Package rtable is the table store: a sorted, deduplicated array of
// (endpoint, start) entries plus its on-disk parameter/entry file pair.
package rtable

import (
	"sort"
	"sync"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

// Entry is one rainbow chain's endpoint/start pair.
type Entry struct {
	Endpoint uint64
	Start    uint64
}

// Table is an in-memory, sorted, deduplicated rainbow table.
type Table struct {
	Params  Params
	Entries []Entry

	once  sync.Once
	index map[uint64][]int32 // siphash(endpoint) -> slice offsets, built lazily
}

// New wraps raw entries (unsorted, possibly containing duplicate
// endpoints) into a Table and immediately sorts/dedups them.
func New(p Params, entries []Entry) *Table {
	t := &Table{Params: p, Entries: entries}
	t.SortDedup()
	return t
}

// SortDedup sorts entries by (endpoint, start) ascending and collapses
// runs sharing an endpoint to the entry with the lexicographically
// smallest start.
func (t *Table) SortDedup() {
	slices.SortFunc(t.Entries, func(a, b Entry) bool {
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		return a.Start < b.Start
	})
	if len(t.Entries) == 0 {
		return
	}
	out := t.Entries[:1]
	for _, e := range t.Entries[1:] {
		if e.Endpoint == out[len(out)-1].Endpoint {
			continue // first in sort order wins, i.e. smallest Start
		}
		out = append(out, e)
	}
	t.Entries = out
	t.index = nil
}

// Find returns the entry with the given endpoint via binary search over
// the sorted, deduplicated entry array. This is the one
// correctness-load-bearing path; buildIndex below is a pure
// optimization layered on top.
func (t *Table) Find(endpoint uint64) (Entry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool {
		return t.Entries[i].Endpoint >= endpoint
	})
	if i < len(t.Entries) && t.Entries[i].Endpoint == endpoint {
		return t.Entries[i], true
	}
	return Entry{}, false
}

// accelK0, accelK1 key the siphash accelerator index. The index is a
// pure in-memory optimization (never persisted, never load-bearing for
// correctness), so a fixed key is fine: it only needs to scatter 64-bit
// endpoints across buckets, not resist adversarial input.
const (
	accelK0 = 0x5A17B0A7
	accelK1 = 0xC0FFEE
)

// FindAccelerated behaves like Find but builds (once, lazily) a
// siphash-bucketed index over the entries first, giving O(1) average
// lookup instead of O(log n) for tables queried many times, as Lookup
// does across a whole query batch's worth of match-kernel dispatches.
// Within a bucket it does a short linear scan rather than Find's binary
// search, so its result always agrees with Find without depending on
// it.
func (t *Table) FindAccelerated(endpoint uint64) (Entry, bool) {
	t.once.Do(t.buildIndex)
	var key [8]byte
	putUint64(key[:], endpoint)
	h := siphash.Hash(accelK0, accelK1, key[:])
	bucket := t.index[h%uint64(len(t.Entries)+1)]
	for _, off := range bucket {
		if t.Entries[off].Endpoint == endpoint {
			return t.Entries[off], true
		}
	}
	return Entry{}, false
}

func (t *Table) buildIndex() {
	n := len(t.Entries) + 1
	idx := make(map[uint64][]int32, n)
	var key [8]byte
	for i, e := range t.Entries {
		putUint64(key[:], e.Endpoint)
		h := siphash.Hash(accelK0, accelK1, key[:]) % uint64(n)
		idx[h] = append(idx[h], int32(i))
	}
	t.index = idx
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
