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

package lookup

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/exp/slices"

	"rtcore.dev/rainbow/backend"
	"rtcore.dev/rainbow/backend/cpu/primitives"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/rtable"
)

// radixThreshold is the tuple-count above which Lookup prefers the
// radix sort over the device buffer; for modest sizes a CPU comparison
// sort is cheaper to dispatch.
const radixThreshold = 1 << 16

type endpointTuple struct {
	endpoint uint64
	round    int32 // chain offset k
	query    int32 // index into the query batch
}

// defaultLocal is the work-group size for the two dispatches Lookup
// issues; callers on a real GPU backend would size this from device
// occupancy instead.
const defaultLocal = 128

// Lookup resolves a batch of hashes against a single table: for every
// query and every start offset k in [0, t), compute the endpoint reachable from the
// query hash in (t-k) steps, sort all Q*t tuples by endpoint, then
// dispatch a second pass that looks each tuple's endpoint up in the
// table (Table.FindAccelerated) and rebuilds/verifies any candidate
// chain, writing the smallest matching
// preimage index per query with an atomic compare-and-swap-to-min.
func Lookup(ctx context.Context, dev backend.Device, eng *chain.Engine, t *rtable.Table, hashes [][16]byte) ([]uint64, error) {
	q := len(hashes)
	chainLen := t.Params.ChainLen
	total := q * chainLen

	results := make([]uint64, q)
	for i := range results {
		results[i] = NotFound
	}
	if total == 0 {
		return results, nil
	}

	const tupleBytes = 8 + 4 + 4
	buf, err := dev.Alloc(ctx, total*tupleBytes)
	if err != nil {
		return nil, fmt.Errorf("lookup: alloc: %w", err)
	}

	endpoints := dev.Compile("rtable.lookup.compute_endpoints", func(ctx context.Context, item int) error {
		k := item % chainLen
		i := item / chainLen
		endpoint, _ := eng.ChainEndFromHash(hashes[i], k, chainLen)
		var rec [tupleBytes]byte
		binary.LittleEndian.PutUint64(rec[0:], endpoint)
		binary.LittleEndian.PutUint32(rec[8:], uint32(k))
		binary.LittleEndian.PutUint32(rec[12:], uint32(i))
		return dev.Write(ctx, buf, item*tupleBytes, rec[:])
	})
	if err := dev.Enqueue(ctx, endpoints, backend.WorkShape{Global: total, Local: defaultLocal}); err != nil {
		return nil, fmt.Errorf("lookup: compute_endpoints: %w", err)
	}
	if err := dev.Barrier(ctx); err != nil {
		return nil, err
	}

	raw := make([]byte, total*tupleBytes)
	if err := dev.Read(ctx, buf, 0, raw); err != nil {
		return nil, fmt.Errorf("lookup: read tuples: %w", err)
	}
	tuples := make([]endpointTuple, total)
	for i := range tuples {
		off := i * tupleBytes
		tuples[i] = endpointTuple{
			endpoint: binary.LittleEndian.Uint64(raw[off:]),
			round:    int32(binary.LittleEndian.Uint32(raw[off+8:])),
			query:    int32(binary.LittleEndian.Uint32(raw[off+12:])),
		}
	}

	if total >= radixThreshold {
		primitives.RadixSortByKey(tuples, func(e endpointTuple) uint64 { return e.endpoint })
	} else {
		slices.SortFunc(tuples, func(a, b endpointTuple) bool { return a.endpoint < b.endpoint })
	}

	resultWords := make([]uint64, q)
	for i := range resultWords {
		resultWords[i] = NotFound
	}

	match := dev.Compile("rtable.lookup.match", func(ctx context.Context, item int) error {
		tup := tuples[item]
		entry, ok := t.FindAccelerated(tup.endpoint)
		if !ok {
			return nil
		}
		x, found := verifyCandidate(eng, entry.Start, int(tup.round), hashes[tup.query])
		if !found {
			return nil
		}
		casMin(&resultWords[tup.query], x)
		return nil
	})
	if err := dev.Enqueue(ctx, match, backend.WorkShape{Global: len(tuples), Local: defaultLocal}); err != nil {
		return nil, fmt.Errorf("lookup: match: %w", err)
	}
	if err := dev.Barrier(ctx); err != nil {
		return nil, err
	}

	copy(results, resultWords)
	return results, nil
}

// casMin atomically sets *addr to min(*addr, v) using a
// compare-and-swap-to-minimum retry loop so that concurrent matches on
// the same query never race each other into a non-deterministic result.
func casMin(addr *uint64, v uint64) {
	for {
		cur := atomic.LoadUint64(addr)
		if v >= cur {
			return
		}
		if atomic.CompareAndSwapUint64(addr, cur, v) {
			return
		}
	}
}
