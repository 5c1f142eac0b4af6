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

// Package cpu implements backend.Device on a bounded goroutine pool. It
// is the one Device this module ships; an OpenCL/CUDA Device satisfying
// the same five-operation interface would be a drop-in replacement but
// is out of scope here.
package cpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"

	"github.com/dchest/siphash"
	"golang.org/x/sys/cpu"

	"rtcore.dev/rainbow/backend"
)

// Device is a CPU-backed backend.Device. Buffers are plain byte slices;
// kernels are Go closures run across a worker pool sized from
// GOMAXPROCS and gated by the widest vector ISA the host CPU reports,
// mirroring vm/avx512level.go's capability-gated tuning (here used to
// pick a work-group size instead of an instruction-set level).
type Device struct {
	workers int
}

// New constructs a CPU device. workers <= 0 means "auto", i.e.
// GOMAXPROCS; the detected vector width affects only DefaultLocal.
func New(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{workers: workers}
}

// DefaultLocal picks a work-group (Local) size from the host's vector
// capabilities: wider SIMD gets a larger default batch per goroutine, so
// a single work-group's items amortize goroutine scheduling overhead
// similarly to how a wider AVX512 level lets vm/avx512level.go select a
// more aggressive bytecode lowering.
func DefaultLocal() int {
	switch {
	case cpu.X86.HasAVX512F:
		return 256
	case cpu.X86.HasAVX2:
		return 128
	default:
		return 64
	}
}

type buffer struct {
	data []byte
}

func (b *buffer) Len() int { return len(b.data) }

func (d *Device) Alloc(_ context.Context, n int) (backend.Buffer, error) {
	return &buffer{data: make([]byte, n)}, nil
}

func (d *Device) Write(_ context.Context, b backend.Buffer, off int, data []byte) error {
	buf := b.(*buffer)
	if off < 0 || off+len(data) > len(buf.data) {
		return fmt.Errorf("cpu: write out of bounds (off=%d len=%d cap=%d)", off, len(data), len(buf.data))
	}
	copy(buf.data[off:], data)
	return nil
}

func (d *Device) Read(_ context.Context, b backend.Buffer, off int, dst []byte) error {
	buf := b.(*buffer)
	if off < 0 || off+len(dst) > len(buf.data) {
		return fmt.Errorf("cpu: read out of bounds (off=%d len=%d cap=%d)", off, len(dst), len(buf.data))
	}
	copy(dst, buf.data[off:])
	return nil
}

type kernel struct {
	name string
	fn   func(ctx context.Context, item int) error
}

func (k *kernel) Name() string { return k.name }

// Compile registers fn as a fresh kernel handle under name. Each call
// gets its own handle even when name repeats: a caller dispatching the
// same named kernel per chunk or per table closes over per-dispatch
// state (offsets, buffers, slices), so collapsing those closures onto
// one cached handle would silently run the first dispatch's captured
// state against every later one. Compile is cheap (no actual
// compilation happens on this backend), so there is no cost to paying
// for a fresh registration on every call.
func (d *Device) Compile(name string, fn func(ctx context.Context, item int) error) backend.Kernel {
	return &kernel{name: name, fn: fn}
}

// Enqueue runs k.fn over [0, shape.Global) items split into
// ceil(Global/Local) work-groups of about shape.Local items each (group
// sizes vary with the hash), handed out across the worker pool. Items
// within a dispatch are bucketed by siphash(item) across the pool so
// that an unlucky monotonic assignment never skews load when fn's cost
// varies with the item's low bits (e.g. variable preimage string
// length), mirroring vm/interphash.go's per-lane siphash use.
func (d *Device) Enqueue(ctx context.Context, k backend.Kernel, shape backend.WorkShape) error {
	kk := k.(*kernel)
	if shape.Global <= 0 {
		return nil
	}
	local := shape.Local
	if local <= 0 {
		local = 1
	}

	groups := (shape.Global + local - 1) / local
	buckets := make([][]int, groups)
	for item := 0; item < shape.Global; item++ {
		g := bucketOf(item, groups)
		buckets[g] = append(buckets[g], item)
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	errs := make([]error, groups)

	for g := 0; g < groups; g++ {
		items := buckets[g]
		if len(items) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(g int, items []int) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, item := range items {
				if err := ctx.Err(); err != nil {
					errs[g] = err
					return
				}
				if err := kk.fn(ctx, item); err != nil {
					errs[g] = err
					return
				}
			}
		}(g, items)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Barrier is a no-op: every Enqueue above already blocks until its
// work-groups complete, so there is no outstanding device-queue work for
// a barrier to wait on. A real GPU backend's Barrier would call
// clFinish/cudaDeviceSynchronize here instead.
func (d *Device) Barrier(_ context.Context) error { return nil }

func (d *Device) Close() error { return nil }

// bucketOf is exposed for testing the load-distribution claim above.
func bucketOf(item, buckets int) int {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(item))
	return int(siphash.Hash(0x5A17B0A7, 0xC0FFEE, key[:]) % uint64(buckets))
}
