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

package driver

import (
	"context"
	"crypto/md5"
	"path/filepath"
	"testing"

	"rtcore.dev/rainbow/alphabet"
	"rtcore.dev/rainbow/backend/cpu"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/lookup"
	"rtcore.dev/rainbow/rtable"
)

func saveTable(t *testing.T, dir, name string, alpha string, maxLen, chainLen int, tau, m uint64) *chain.Engine {
	t.Helper()
	p, err := rtable.NewParams([]byte(alpha), maxLen, chainLen, tau, m)
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte(alpha), maxLen)
	if err != nil {
		t.Fatal(err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: tau}

	offset := tau * m
	entries := make([]rtable.Entry, m)
	for i := uint64(0); i < m; i++ {
		start := offset + i
		end, _ := eng.ChainEnd(start, 0, chainLen)
		entries[i] = rtable.Entry{Endpoint: end, Start: start}
	}
	tbl := rtable.New(p, entries)
	if err := tbl.Save(filepath.Join(dir, name), rtable.SaveOptions{}); err != nil {
		t.Fatal(err)
	}
	return eng
}

// TestScenarioS3 covers two sibling tables (tau=0, tau=1) over the same
// (alphabet, N): the multi-table driver must resolve at least every hash
// either single table resolves on its own.
func TestScenarioS3(t *testing.T) {
	dir := t.TempDir()
	const alpha, maxLen, chainLen, m = "0123456789", 3, 20, uint64(200)

	eng0 := saveTable(t, dir, "t0", alpha, maxLen, chainLen, 0, m)
	saveTable(t, dir, "t1", alpha, maxLen, chainLen, 1, m)

	sp := eng0.Space
	var hashes [][16]byte
	for x := uint64(0); x < 50; x++ {
		hashes = append(hashes, md5.Sum(sp.StringFromIndex(x, nil)))
	}

	t0, err := rtable.Load(filepath.Join(dir, "t0"))
	if err != nil {
		t.Fatal(err)
	}
	lookup0 := lookup.LookupManySequential(eng0, t0, hashes)
	coverage0 := 0
	for _, x := range lookup0 {
		if x != lookup.NotFound {
			coverage0++
		}
	}

	results, err := Resolve(context.Background(), nil, []string{
		filepath.Join(dir, "t0"), filepath.Join(dir, "t1"),
	}, hashes)
	if err != nil {
		t.Fatal(err)
	}
	coverageMulti := 0
	for _, x := range results {
		if x != NotFound {
			coverageMulti++
		}
	}
	if coverageMulti < coverage0 {
		t.Fatalf("multi-table coverage %d is less than single-table coverage %d", coverageMulti, coverage0)
	}

	// Every hash the single table resolved must still resolve after
	// going through the driver (monotonic narrowing, never regresses).
	for i, x := range lookup0 {
		if x != lookup.NotFound && results[i] == NotFound {
			t.Fatalf("hash %d resolved by table 0 alone but not by the driver", i)
		}
	}
}

// TestScenarioS3GPU is TestScenarioS3 run with a shared cpu.Device
// across both tables, exercising driver.Resolve's per-table reuse of
// one Device the same way cmd/rainbow's -gpu flag does.
func TestScenarioS3GPU(t *testing.T) {
	dir := t.TempDir()
	const alpha, maxLen, chainLen = "0123456789", 3, 20
	const m0, m1 = uint64(80), uint64(300)

	eng0 := saveTable(t, dir, "t0", alpha, maxLen, chainLen, 0, m0)
	saveTable(t, dir, "t1", alpha, maxLen, chainLen, 1, m1)

	sp := eng0.Space
	var hashes [][16]byte
	for x := uint64(0); x < 60; x++ {
		hashes = append(hashes, md5.Sum(sp.StringFromIndex(x, nil)))
	}

	dev := cpu.New(4)
	defer dev.Close()
	gotGPU, err := Resolve(context.Background(), dev, []string{
		filepath.Join(dir, "t0"), filepath.Join(dir, "t1"),
	}, hashes)
	if err != nil {
		t.Fatal(err)
	}

	wantSeq, err := Resolve(context.Background(), nil, []string{
		filepath.Join(dir, "t0"), filepath.Join(dir, "t1"),
	}, hashes)
	if err != nil {
		t.Fatal(err)
	}

	for i := range hashes {
		if gotGPU[i] != wantSeq[i] {
			t.Fatalf("hash %d: gpu-backed driver=%d sequential driver=%d (a Device reused across tables of different sizes must not leak table0's dispatch state into table1's)", i, gotGPU[i], wantSeq[i])
		}
	}
}

func TestResolveRejectsMismatchedTableParams(t *testing.T) {
	dir := t.TempDir()
	saveTable(t, dir, "a", "ab", 2, 5, 0, 3)
	saveTable(t, dir, "b", "abc", 2, 5, 0, 3) // different alphabet, same shape

	_, err := Resolve(context.Background(), nil, []string{
		filepath.Join(dir, "a"), filepath.Join(dir, "b"),
	}, [][16]byte{md5.Sum([]byte("x"))})
	if err == nil {
		t.Fatal("expected an error for tables with mismatched (N, alphabet)")
	}
}

func TestResolveStopsEarlyWhenFullyResolved(t *testing.T) {
	dir := t.TempDir()
	eng := saveTable(t, dir, "full", "a", 3, 5, 0, 4) // m=4 covers N=4 entirely (1+1+1+1)
	sp := eng.Space
	hashes := [][16]byte{md5.Sum(sp.StringFromIndex(0, nil))}

	// The second path does not exist: Resolve only succeeds if it stops
	// after the first table resolves every query and never loads it.
	results, err := Resolve(context.Background(), nil, []string{
		filepath.Join(dir, "full"), filepath.Join(dir, "never-loaded"),
	}, hashes)
	if err != nil {
		t.Fatal(err)
	}
	if results[0] != 0 {
		t.Fatalf("got %d, want 0", results[0])
	}
}
