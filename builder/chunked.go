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

package builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"rtcore.dev/rainbow/backend"
	"rtcore.dev/rainbow/backend/cpu/primitives"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/internal/buildid"
	"rtcore.dev/rainbow/rtable"
)

// Config tunes the chunked builder's dispatch shape. Zero values pick
// reasonable defaults.
type Config struct {
	ChunkSize int // items (start indices) per dispatch; default 1<<14
	Local     int // work-group size; default 128
	InitCap   int // initial buffer capacity in entries; default 2*ChunkSize
	Verify    bool
	Yield     time.Duration // inter-chunk sleep; default 200us
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1 << 14
	}
	if c.Local <= 0 {
		c.Local = 128
	}
	if c.InitCap <= 0 {
		c.InitCap = 2 * c.ChunkSize
	}
	if c.Yield <= 0 {
		c.Yield = 200 * time.Microsecond
	}
	return c
}

// Stats reports the chunked builder's progress and internal bookkeeping;
// reallocation time is reported separately from the rest of build time
// since it dominates when the initial capacity estimate is too small.
type Stats struct {
	BuildID        string
	Chunks         int
	Reallocations  int
	ReallocTime    time.Duration
	Compactions    int
	FinalEntries   int
	VerifiedChains int
	VerifyFailures int
}

const entryBytes = 16

// Build runs the chunked, backend-driven construction: dispatch
// chunk-sized kernels that each write one chain's
// (endpoint, start) pair into a monotonically growing device buffer,
// doubling the buffer when it would overflow, and periodically
// compacting (deduplicating) once the live total more than doubles
// since the last compaction or the final chunk is reached.
func Build(ctx context.Context, dev backend.Device, eng *chain.Engine, p rtable.Params, cfg Config) (*rtable.Table, Stats, error) {
	cfg = cfg.withDefaults()
	offset := p.TableIndex * p.NumStart
	if offset+p.NumStart > p.N {
		return nil, Stats{}, fmt.Errorf("builder: tau*m+m (%d) exceeds N (%d)", offset+p.NumStart, p.N)
	}

	stats := Stats{BuildID: buildid.New()}
	bufCap := cfg.InitCap
	buf, err := dev.Alloc(ctx, bufCap*entryBytes)
	if err != nil {
		return nil, stats, fmt.Errorf("builder: alloc: %w", err)
	}

	var total int
	lastCompactionTotal := 0
	m := int(p.NumStart)

	for chunkStart := 0; chunkStart < m; chunkStart += cfg.ChunkSize {
		n := cfg.ChunkSize
		if chunkStart+n > m {
			n = m - chunkStart
		}
		isFinal := chunkStart+n >= m

		if total+n > bufCap {
			t0 := time.Now()
			newCap := bufCap * 2
			for total+n > newCap {
				newCap *= 2
			}
			newBuf, err := dev.Alloc(ctx, newCap*entryBytes)
			if err != nil {
				return nil, stats, fmt.Errorf("builder: realloc: %w", err)
			}
			live := make([]byte, total*entryBytes)
			if err := dev.Read(ctx, buf, 0, live); err != nil {
				return nil, stats, fmt.Errorf("builder: realloc copy-out: %w", err)
			}
			if err := dev.Write(ctx, newBuf, 0, live); err != nil {
				return nil, stats, fmt.Errorf("builder: realloc copy-in: %w", err)
			}
			buf, bufCap = newBuf, newCap
			stats.Reallocations++
			stats.ReallocTime += time.Since(t0)
		}

		cs := chunkStart
		base := total
		kern := dev.Compile("rtable.build.chain_end", func(ctx context.Context, item int) error {
			start := offset + uint64(cs+item)
			end, _ := eng.ChainEnd(start, 0, p.ChainLen)
			var rec [entryBytes]byte
			binary.LittleEndian.PutUint64(rec[0:], end)
			binary.LittleEndian.PutUint64(rec[8:], start)
			return dev.Write(ctx, buf, (base+item)*entryBytes, rec[:])
		})
		if err := dev.Enqueue(ctx, kern, backend.WorkShape{Global: n, Local: cfg.Local}); err != nil {
			return nil, stats, fmt.Errorf("builder: dispatch chunk at %d: %w", chunkStart, err)
		}
		if err := dev.Barrier(ctx); err != nil {
			return nil, stats, fmt.Errorf("builder: barrier: %w", err)
		}
		total += n
		stats.Chunks++

		if total > 2*lastCompactionTotal || isFinal {
			raw := make([]byte, total*entryBytes)
			if err := dev.Read(ctx, buf, 0, raw); err != nil {
				return nil, stats, fmt.Errorf("builder: compaction read: %w", err)
			}
			entries := decodeEntries(raw)
			deduped := primitives.RemoveDups(entries, func(a, b rtable.Entry) bool {
				if a.Endpoint != b.Endpoint {
					return a.Endpoint < b.Endpoint
				}
				return a.Start < b.Start
			})
			if err := dev.Write(ctx, buf, 0, encodeEntries(deduped)); err != nil {
				return nil, stats, fmt.Errorf("builder: compaction write-back: %w", err)
			}
			total = len(deduped)
			lastCompactionTotal = total
			stats.Compactions++
		}

		if !isFinal {
			time.Sleep(cfg.Yield)
		}
	}

	raw := make([]byte, total*entryBytes)
	if err := dev.Read(ctx, buf, 0, raw); err != nil {
		return nil, stats, fmt.Errorf("builder: final read: %w", err)
	}
	entries := decodeEntries(raw)
	table := rtable.New(p, entries)
	stats.FinalEntries = len(table.Entries)

	if cfg.Verify {
		for _, e := range table.Entries {
			want, _ := eng.ChainEnd(e.Start, 0, p.ChainLen)
			stats.VerifiedChains++
			if want != e.Endpoint {
				stats.VerifyFailures++
			}
		}
		if stats.VerifyFailures > 0 {
			return table, stats, fmt.Errorf("builder: %d/%d entries failed CPU verification", stats.VerifyFailures, stats.VerifiedChains)
		}
	}

	return table, stats, nil
}

func decodeEntries(raw []byte) []rtable.Entry {
	entries := make([]rtable.Entry, len(raw)/entryBytes)
	for i := range entries {
		entries[i].Endpoint = binary.LittleEndian.Uint64(raw[i*entryBytes:])
		entries[i].Start = binary.LittleEndian.Uint64(raw[i*entryBytes+8:])
	}
	return entries
}

func encodeEntries(entries []rtable.Entry) []byte {
	raw := make([]byte, len(entries)*entryBytes)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(raw[i*entryBytes:], e.Endpoint)
		binary.LittleEndian.PutUint64(raw[i*entryBytes+8:], e.Start)
	}
	return raw
}
