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

// Package primitives implements the reusable device-buffer primitives
// used to dedup and sort table entries: bitonic sort, exclusive prefix
// scan, predicate compaction, and the remove-duplicates composition
// built from them. They operate on plain slices here (the CPU backend's
// buffers are backed by slices); a GPU backend would implement the same
// signatures as kernel dispatches over device memory.
package primitives

import "golang.org/x/exp/constraints"

// BitonicSort sorts data in place using a bitonic sorting network, the
// classic data-parallel sort. It pads conceptually to the next power of
// two by treating out-of-range compares as already ordered, so callers
// do not need to pad the slice themselves. Every compare-exchange sorts
// ascending (the first step of each merge compares mirrored positions),
// so a virtual padding element past the end never has to move.
func BitonicSort[T any](data []T, less func(a, b T) bool) {
	n := len(data)
	if n < 2 {
		return
	}
	size := nextPow2(n)
	for k := 2; k <= size; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			for i := 0; i < n; i++ {
				l := i ^ j
				if j == k>>1 {
					l = i ^ (k - 1)
				}
				if l <= i || l >= n {
					continue
				}
				if less(data[l], data[i]) {
					data[i], data[l] = data[l], data[i]
				}
			}
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ExclusiveScan computes the exclusive prefix sum of data using the
// naive Hillis-Steele log-step doubling algorithm. A Blelloch
// work-efficient scan is the better choice for long arrays; this
// module's arrays are chunk-sized, not device-memory-sized, so the
// simpler algorithm is adequate.
func ExclusiveScan[T constraints.Integer](data []T) []T {
	n := len(data)
	out := make([]T, n)
	copy(out, data)
	// inclusive scan first
	for d := 1; d < n; d <<= 1 {
		prev := make([]T, n)
		copy(prev, out)
		for i := d; i < n; i++ {
			out[i] = prev[i] + prev[i-d]
		}
	}
	// shift right by one to make it exclusive
	excl := make([]T, n)
	for i := 1; i < n; i++ {
		excl[i] = out[i-1]
	}
	return excl
}

// Compact scatters the elements data[i] for which pred(data, i) is true
// into a new slice, preserving order, via flag -> exclusive-scan -> scatter.
func Compact[T any](data []T, pred func(data []T, i int) bool) []T {
	n := len(data)
	flags := make([]int, n)
	for i := range data {
		if pred(data, i) {
			flags[i] = 1
		}
	}
	offsets := ExclusiveScan(flags)
	total := 0
	if n > 0 {
		total = offsets[n-1] + flags[n-1]
	}
	out := make([]T, total)
	for i := range data {
		if flags[i] == 1 {
			out[offsets[i]] = data[i]
		}
	}
	return out
}

// RemoveDups sorts data with less and then compacts it to the first
// element of every run of equal elements, i.e. sort + predicate
// "i == 0 || less(ary[i-1], ary[i])".
func RemoveDups[T any](data []T, less func(a, b T) bool) []T {
	BitonicSort(data, less)
	return Compact(data, func(d []T, i int) bool {
		if i == 0 {
			return true
		}
		return less(d[i-1], d[i])
	})
}
