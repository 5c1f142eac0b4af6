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
	"crypto/md5"
	"testing"

	"rtcore.dev/rainbow/alphabet"
	"rtcore.dev/rainbow/backend/cpu"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/lookup"
	"rtcore.dev/rainbow/rtable"
)

func newEngine(t *testing.T, alpha string, maxLen int, tau uint64) (*chain.Engine, rtable.Params) {
	t.Helper()
	p, err := rtable.NewParams([]byte(alpha), maxLen, 3, tau, 0)
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte(alpha), maxLen)
	if err != nil {
		t.Fatal(err)
	}
	return &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: tau}, p
}

// TestScenarioS1 mirrors the smallest worked example: A = "ab", max_len =
// 2 (N = 7), t = 3, tau = 0, m = 7.
func TestScenarioS1(t *testing.T) {
	eng, _ := newEngine(t, "ab", 2, 0)
	p, err := rtable.NewParams([]byte("ab"), 2, 3, 0, 7)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := BuildSequential(eng, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Entries) > 7 {
		t.Fatalf("table has %d entries, more than N=7", len(tbl.Entries))
	}
	for _, e := range tbl.Entries {
		if e.Endpoint >= p.N || e.Start >= p.N {
			t.Fatalf("entry %+v out of range [0,%d)", e, p.N)
		}
	}

	hashOf := func(s string) [16]byte { return md5.Sum([]byte(s)) }
	cases := []struct {
		s    string
		want uint64
	}{
		{"", 0},
		{"a", 1},
		{"b", 2},
	}
	for _, c := range cases {
		got, ok := lookup.LookupSequential(eng, tbl, hashOf(c.s))
		if !ok || got != c.want {
			t.Fatalf("lookup(MD5(%q)) = (%d,%v), want (%d,true)", c.s, got, ok, c.want)
		}
	}
}

// TestScenarioS4 covers A = "a", max_len = 5, t = 10, tau = 0, m = 6: all
// preimages distinct by length, and every lookup should succeed since
// num_start_values covers the entire non-empty preimage space.
func TestScenarioS4(t *testing.T) {
	p, err := rtable.NewParams([]byte("a"), 5, 10, 0, 6)
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte("a"), 5)
	if err != nil {
		t.Fatal(err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: 0}
	tbl, err := BuildSequential(eng, p)
	if err != nil {
		t.Fatal(err)
	}
	for x := uint64(1); x < p.N; x++ { // skip x=0 (empty string), start at 1
		s := sp.StringFromIndex(x, nil)
		h := md5.Sum(s)
		if _, ok := lookup.LookupSequential(eng, tbl, h); !ok {
			t.Fatalf("lookup for preimage %q (index %d) failed", s, x)
		}
	}
}

// TestScenarioS6 forces chain collisions by picking a small N and a
// large t; the builder must still produce a strictly deduplicated table.
func TestScenarioS6(t *testing.T) {
	p, err := rtable.NewParams([]byte("ab"), 3, 50, 0, 7) // N=1+2+4+8=15, use all starts up to 7
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte("ab"), 3)
	if err != nil {
		t.Fatal(err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: 0}
	tbl, err := BuildSequential(eng, p)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[uint64]bool, len(tbl.Entries))
	for _, e := range tbl.Entries {
		if seen[e.Endpoint] {
			t.Fatalf("duplicate endpoint %d survived dedup", e.Endpoint)
		}
		seen[e.Endpoint] = true
	}
	if len(tbl.Entries) > int(p.NumStart) {
		t.Fatalf("dedup produced more entries (%d) than starts (%d)", len(tbl.Entries), p.NumStart)
	}
}

func TestBuildAgreesWithBuildSequential(t *testing.T) {
	p, err := rtable.NewParams([]byte("0123456789"), 3, 20, 0, 200)
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte("0123456789"), 3)
	if err != nil {
		t.Fatal(err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: 0}

	want, err := BuildSequential(eng, p)
	if err != nil {
		t.Fatal(err)
	}

	dev := cpu.New(4)
	defer dev.Close()
	got, _, err := Build(context.Background(), dev, eng, p, Config{ChunkSize: 32, Yield: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Entries) != len(want.Entries) {
		t.Fatalf("chunked produced %d entries, sequential produced %d", len(got.Entries), len(want.Entries))
	}
	for i := range want.Entries {
		if got.Entries[i] != want.Entries[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got.Entries[i], want.Entries[i])
		}
	}
}

func TestBuildVerifyDetectsNoFailuresOnGoodData(t *testing.T) {
	p, err := rtable.NewParams([]byte("ab"), 2, 3, 0, 7)
	if err != nil {
		t.Fatal(err)
	}
	sp, err := alphabet.NewSpace([]byte("ab"), 2)
	if err != nil {
		t.Fatal(err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.MD5{}, Tau: 0}
	dev := cpu.New(2)
	defer dev.Close()
	_, stats, err := Build(context.Background(), dev, eng, p, Config{ChunkSize: 2, Verify: true, Yield: 0})
	if err != nil {
		t.Fatal(err)
	}
	if stats.VerifyFailures != 0 {
		t.Fatalf("unexpected verify failures: %d", stats.VerifyFailures)
	}
	if stats.VerifiedChains == 0 {
		t.Fatal("expected verification to run over at least one chain")
	}
}
