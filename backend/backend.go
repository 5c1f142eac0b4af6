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

// Package backend is a five-operation compute device API: allocate a
// buffer, write/read it synchronously, enqueue a kernel over a
// work-group shape, and barrier. The real target of this API is a GPU,
// treated here as an external collaborator abstracted to exactly this
// surface. backend/cpu ships the one concrete Device this module
// provides.
package backend

import "context"

// Buffer is an opaque, device-owned region of memory. Its lifetime is
// bounded by the Device session that allocated it; ownership is held
// by the backend session, not the caller.
type Buffer interface {
	// Len is the buffer's capacity in bytes.
	Len() int
}

// WorkShape describes a kernel dispatch: Global items divided into
// Local-sized work-groups, mirroring an OpenCL/CUDA launch shape.
type WorkShape struct {
	Global int
	Local  int
}

// Kernel is a named, registered unit of work, obtained from a Device's
// Compile method. Compile registers the fn closure passed to it and
// returns a fresh handle on every call, even when name repeats: the fn
// closure carries whatever state is specific to that one dispatch
// (buffers, offsets, slices), so two Compile calls under the same name
// are two distinct kernels that happen to share a label, not one kernel
// compiled twice.
type Kernel interface {
	Name() string
}

// Device is the compute backend API consumed by the builder and lookup
// packages. Every method may block; Barrier is the only explicit
// synchronization point beyond Write/Read/Enqueue themselves completing
// synchronously from the caller's point of view. The host blocks at
// kernel dispatch, buffer I/O, and the inter-chunk yield, and nowhere
// else.
type Device interface {
	Alloc(ctx context.Context, n int) (Buffer, error)
	Write(ctx context.Context, b Buffer, off int, data []byte) error
	Read(ctx context.Context, b Buffer, off int, dst []byte) error
	Compile(name string, fn func(ctx context.Context, item int) error) Kernel
	Enqueue(ctx context.Context, k Kernel, shape WorkShape) error
	Barrier(ctx context.Context) error
	Close() error
}
