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

package primitives

import (
	"math/rand"
	"sort"
	"testing"
)

func lessInt(a, b int) bool { return a < b }

func TestBitonicSortMatchesStdSort(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 3, 7, 8, 31, 100, 257} {
		data := make([]int, n)
		for i := range data {
			data[i] = rng.Intn(1000)
		}
		want := append([]int(nil), data...)
		sort.Ints(want)
		BitonicSort(data, lessInt)
		for i := range data {
			if data[i] != want[i] {
				t.Fatalf("n=%d: BitonicSort mismatch at %d: got %d want %d", n, i, data[i], want[i])
			}
		}
	}
}

func TestExclusiveScan(t *testing.T) {
	got := ExclusiveScan([]int{1, 2, 3, 4})
	want := []int{0, 1, 3, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestExclusiveScanEmpty(t *testing.T) {
	got := ExclusiveScan([]int{})
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestCompact(t *testing.T) {
	data := []int{1, 2, 3, 4, 5, 6}
	even := Compact(data, func(d []int, i int) bool { return d[i]%2 == 0 })
	want := []int{2, 4, 6}
	if len(even) != len(want) {
		t.Fatalf("got %v want %v", even, want)
	}
	for i := range want {
		if even[i] != want[i] {
			t.Fatalf("got %v want %v", even, want)
		}
	}
}

func TestCompactNoneMatch(t *testing.T) {
	got := Compact([]int{1, 3, 5}, func(d []int, i int) bool { return d[i]%2 == 0 })
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestRemoveDups(t *testing.T) {
	data := []int{5, 3, 5, 1, 3, 1, 5}
	got := RemoveDups(data, lessInt)
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRadixSortByKeyMatchesStdSort(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	type pair struct{ key, tag uint64 }
	for _, n := range []int{0, 1, 5, 500, 4096} {
		data := make([]pair, n)
		for i := range data {
			data[i] = pair{key: uint64(rng.Int63()), tag: uint64(i)}
		}
		want := append([]pair(nil), data...)
		sort.Slice(want, func(i, j int) bool { return want[i].key < want[j].key })
		RadixSortByKey(data, func(p pair) uint64 { return p.key })
		for i := range data {
			if data[i].key != want[i].key {
				t.Fatalf("n=%d: RadixSortByKey mismatch at %d: got %d want %d", n, i, data[i].key, want[i].key)
			}
		}
	}
}
