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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	doc := "alphabet: \"0123456789\"\nmax_len: 4\nchain_len: 1000\ntable_index: 0\nalpha: 0.5\nsamples: 1000\nseed: 7\ncompress: true\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	spec, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Alphabet != "0123456789" || spec.MaxLen != 4 || spec.ChainLen != 1000 ||
		spec.Alpha != 0.5 || spec.Samples != 1000 || spec.Seed != 7 || !spec.Compress {
		t.Fatalf("decoded spec mismatch: %+v", spec)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	doc := `{"alphabet":"ab","max_len":2,"chain_len":3,"table_index":0,"num_start":7}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	spec, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Alphabet != "ab" || spec.NumStart != 7 {
		t.Fatalf("decoded spec mismatch: %+v", spec)
	}
}

func TestParamsFromAlpha(t *testing.T) {
	spec := &BuildSpec{Alphabet: "0123456789", MaxLen: 3, ChainLen: 10, Alpha: 0.5}
	p, err := spec.Params()
	if err != nil {
		t.Fatal(err)
	}
	want := p.N / 2
	if want == 0 {
		want = 1
	}
	if p.NumStart != want {
		t.Fatalf("NumStart = %d, want %d", p.NumStart, want)
	}
}

func TestParamsFromExplicitNumStart(t *testing.T) {
	spec := &BuildSpec{Alphabet: "ab", MaxLen: 2, ChainLen: 3, NumStart: 5}
	p, err := spec.Params()
	if err != nil {
		t.Fatal(err)
	}
	if p.NumStart != 5 {
		t.Fatalf("NumStart = %d, want 5", p.NumStart)
	}
}

func TestParamsRejectsEmptyAlphabet(t *testing.T) {
	spec := &BuildSpec{Alphabet: "", MaxLen: 2, ChainLen: 3, NumStart: 1}
	if _, err := spec.Params(); err == nil {
		t.Fatal("expected error for empty alphabet")
	}
}

func TestParamsRejectsBadAlpha(t *testing.T) {
	spec := &BuildSpec{Alphabet: "ab", MaxLen: 2, ChainLen: 3, Alpha: 1.5}
	if _, err := spec.Params(); err == nil {
		t.Fatal("expected error for alpha outside (0,1]")
	}
}
