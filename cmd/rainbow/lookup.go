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

package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"rtcore.dev/rainbow/backend"
	"rtcore.dev/rainbow/backend/cpu"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/driver"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/internal/coverage"
	"rtcore.dev/rainbow/rtable"
)

func runLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	hashFile := fs.String("f", "", "file of 32-hex-char hashes, one per line")
	single := fs.String("hash", "", "a single 32-hex-char hash")
	samples := fs.Int("samples", 0, "estimate coverage from this many random preimages instead of looking up input hashes")
	seed := fs.Uint64("seed", 1, "PRNG seed for -samples")
	gpu := fs.Bool("gpu", false, "use the backend-driven fan-out lookup instead of the single-threaded reference")
	fs.Parse(args)

	tables := fs.Args()
	if len(tables) == 0 {
		exitf("usage: lookup [flags] <table>...")
	}

	var dev backend.Device
	if *gpu {
		dev = cpu.New(0)
	}
	ctx := context.Background()

	if *samples > 0 {
		t, err := rtable.Load(tables[0])
		if err != nil {
			exitf("%s", err)
		}
		sp, err := t.Params.Space()
		if err != nil {
			exitf("%s", err)
		}
		eng := &chain.Engine{Space: sp, Hash: hash.Default, Tau: t.Params.TableIndex}
		res, err := coverage.Estimate(ctx, dev, eng, t, *samples, *seed)
		if err != nil {
			exitf("%s", err)
		}
		fmt.Printf("coverage: %d/%d (%.2f%%, 95%% CI [%.2f%%, %.2f%%])\n",
			res.Covered, res.Samples, res.Fraction*100, res.CI95Low*100, res.CI95High*100)
		return
	}

	var hashes [][16]byte
	switch {
	case *single != "":
		h, err := parseHash(*single)
		if err != nil {
			exitf("%s", err)
		}
		hashes = append(hashes, h)
	case *hashFile != "":
		f, err := os.Open(*hashFile)
		if err != nil {
			exitf("%s", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			h, err := parseHash(line)
			if err != nil {
				exitf("%s", err)
			}
			hashes = append(hashes, h)
		}
	default:
		exitf("one of -hash or -f is required (or use -samples)")
	}

	results, err := driver.Resolve(ctx, dev, tables, hashes)
	if err != nil {
		exitf("%s", err)
	}

	t, err := rtable.Load(tables[0])
	if err != nil {
		exitf("%s", err)
	}
	sp, err := t.Params.Space()
	if err != nil {
		exitf("%s", err)
	}
	for i, h := range hashes {
		fmt.Printf("%s %s\n", hex.EncodeToString(h[:]), formatResult(sp, results[i]))
	}
}

func formatResult(sp interface {
	StringFromIndex(uint64, []byte) []byte
}, x uint64) string {
	if x == driver.NotFound {
		return "-"
	}
	return string(sp.StringFromIndex(x, nil))
}

func parseHash(s string) ([16]byte, error) {
	var out [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return out, fmt.Errorf("invalid hash %q: want 32 lowercase hex characters", s)
	}
	copy(out[:], b)
	return out, nil
}
