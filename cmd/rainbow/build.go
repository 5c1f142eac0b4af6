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
	"context"
	"flag"
	"strconv"

	"rtcore.dev/rainbow/backend/cpu"
	"rtcore.dev/rainbow/builder"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/internal/coverage"
	"rtcore.dev/rainbow/rtable"
)

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	alpha := fs.Float64("alpha", 0.5, "fraction of N used as m (num_start_values)")
	chainLen := fs.Int("chain_len", 1000, "chain length (t)")
	tableIndex := fs.Uint64("table_index", 0, "table index (tau)")
	samples := fs.Int("samples", 0, "coverage-estimation sample count (0 disables)")
	seed := fs.Uint64("seed", 1, "PRNG seed for coverage estimation")
	compress := fs.Bool("compress", false, "zstd-compress the entry file")
	gpu := fs.Bool("gpu", false, "use the chunked backend-driven builder instead of the single-threaded reference")
	verify := fs.Bool("verify", false, "cross-check every endpoint against the sequential CPU engine after building")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 3 {
		exitf("usage: build [flags] <max_len> <alphabet> <outfile>")
	}
	maxLen, err := strconv.Atoi(rest[0])
	if err != nil {
		exitf("bad max_len: %s", err)
	}
	alphabet := []byte(rest[1])
	outfile := rest[2]

	if *alpha <= 0 || *alpha > 1 {
		exitf("alpha must be in (0, 1], got %v", *alpha)
	}

	sp, err := spaceSize(alphabet, maxLen)
	if err != nil {
		exitf("%s", err)
	}
	m := uint64(float64(sp) * *alpha)
	if m == 0 {
		m = 1
	}

	params, err := rtable.NewParams(alphabet, maxLen, *chainLen, *tableIndex, m)
	if err != nil {
		exitf("%s", err)
	}
	space, err := params.Space()
	if err != nil {
		exitf("%s", err)
	}
	eng := &chain.Engine{Space: space, Hash: hash.Default, Tau: params.TableIndex}

	ctx := context.Background()
	var table *rtable.Table
	if *gpu {
		dev := cpu.New(0)
		cfg := builder.Config{Local: cpu.DefaultLocal(), Verify: *verify}
		t, stats, err := builder.Build(ctx, dev, eng, params, cfg)
		if err != nil {
			exitf("build: %s", err)
		}
		logf("build %s: %d chunks, %d reallocations (%s), %d compactions, %d entries",
			stats.BuildID, stats.Chunks, stats.Reallocations, stats.ReallocTime, stats.Compactions, stats.FinalEntries)
		table = t
	} else {
		t, err := builder.BuildSequential(eng, params)
		if err != nil {
			exitf("build: %s", err)
		}
		table = t
	}

	logf("table covers %d/%d starts after dedup", len(table.Entries), params.NumStart)

	if err := table.Save(outfile, rtable.SaveOptions{Compress: *compress}); err != nil {
		exitf("save: %s", err)
	}

	if *samples > 0 {
		res, err := coverage.Estimate(ctx, nil, eng, table, *samples, *seed)
		if err != nil {
			exitf("coverage: %s", err)
		}
		logf("coverage: %d/%d (%.2f%%, 95%% CI [%.2f%%, %.2f%%])",
			res.Covered, res.Samples, res.Fraction*100, res.CI95Low*100, res.CI95High*100)
	}
}

func spaceSize(alphabet []byte, maxLen int) (uint64, error) {
	p, err := rtable.NewParams(alphabet, maxLen, 1, 0, 1)
	if err != nil {
		return 0, err
	}
	return p.N, nil
}
