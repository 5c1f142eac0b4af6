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

// Package driver implements the multi-table lookup protocol: query a
// list of tables in turn, shrinking the set of still-unresolved queries
// as each table resolves some of them.
package driver

import (
	"context"
	"fmt"

	"golang.org/x/exp/maps"

	"rtcore.dev/rainbow/backend"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/lookup"
	"rtcore.dev/rainbow/rtable"
)

// NotFound mirrors lookup.NotFound for callers that only import driver.
const NotFound = lookup.NotFound

// Resolve loads each table in tablePaths in turn and narrows the set of
// still-unresolved hashes after every one. All tables must agree on
// (N, alphabet); a mismatch is a fatal configuration error, not a
// per-table not-found.
func Resolve(ctx context.Context, dev backend.Device, tablePaths []string, hashes [][16]byte) ([]uint64, error) {
	results := make([]uint64, len(hashes))
	for i := range results {
		results[i] = NotFound
	}

	live := make(map[int][16]byte, len(hashes))
	for i, h := range hashes {
		live[i] = h
	}

	var refParams *rtable.Params
	for _, path := range tablePaths {
		t, err := rtable.Load(path)
		if err != nil {
			return nil, fmt.Errorf("driver: load %s: %w", path, err)
		}
		if refParams == nil {
			refParams = &t.Params
		} else if t.Params.N != refParams.N || string(t.Params.Alphabet) != string(refParams.Alphabet) {
			return nil, fmt.Errorf("driver: table %s has (N=%d,|A|=%d) but expected (N=%d,|A|=%d)",
				path, t.Params.N, len(t.Params.Alphabet), refParams.N, len(refParams.Alphabet))
		}

		sp, err := t.Params.Space()
		if err != nil {
			return nil, fmt.Errorf("driver: %s: %w", path, err)
		}
		eng := &chain.Engine{Space: sp, Hash: hash.Default, Tau: t.Params.TableIndex}

		idxs := maps.Keys(live)
		qHashes := make([][16]byte, len(idxs))
		for j, idx := range idxs {
			qHashes[j] = live[idx]
		}

		var resolved []uint64
		if dev != nil {
			resolved, err = lookup.Lookup(ctx, dev, eng, t, qHashes)
			if err != nil {
				return nil, fmt.Errorf("driver: lookup against %s: %w", path, err)
			}
		} else {
			resolved = lookup.LookupManySequential(eng, t, qHashes)
		}

		for j, idx := range idxs {
			if resolved[j] != lookup.NotFound {
				results[idx] = resolved[j]
				delete(live, idx)
			}
		}
		if len(live) == 0 {
			break
		}
	}
	return results, nil
}
