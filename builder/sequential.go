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

// Package builder implements the rainbow table construction algorithms:
// BuildSequential, the reference single-threaded path also used to
// verify the chunked backend-driven builder, and Build, chunked
// dispatch over a backend.Device with dynamic buffer growth and
// periodic deduplication.
package builder

import (
	"fmt"

	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/rtable"
)

// BuildSequential constructs every chain for p.NumStart start indices
// one at a time on the calling goroutine: offset = tau*m,
// entry[i] = (chain_end(offset+i, 0, t).x_end, offset+i), then sort and
// dedup.
func BuildSequential(eng *chain.Engine, p rtable.Params) (*rtable.Table, error) {
	offset := p.TableIndex * p.NumStart
	if offset+p.NumStart > p.N {
		return nil, fmt.Errorf("builder: tau*m+m (%d) exceeds N (%d)", offset+p.NumStart, p.N)
	}
	entries := make([]rtable.Entry, p.NumStart)
	for i := uint64(0); i < p.NumStart; i++ {
		start := offset + i
		end, _ := eng.ChainEnd(start, 0, p.ChainLen)
		entries[i] = rtable.Entry{Endpoint: end, Start: start}
	}
	return rtable.New(p, entries), nil
}
