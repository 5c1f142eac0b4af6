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

// Package coverage estimates a table's coverage by sampling random
// preimages, hashing them, and measuring the recovery rate.
package coverage

import (
	"context"
	"math"
	"math/rand/v2"

	"rtcore.dev/rainbow/backend"
	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/lookup"
	"rtcore.dev/rainbow/rtable"
)

// Result is one coverage-estimation run.
type Result struct {
	Samples    int
	Covered    int
	Fraction   float64
	CI95Low    float64
	CI95High   float64
}

// Estimate draws `samples` preimage indices uniformly from [0, N) with a
// seeded PCG generator (reproducible given the same seed), hashes each,
// and runs lookup (backend-driven if dev is non-nil, sequential
// otherwise).
func Estimate(ctx context.Context, dev backend.Device, eng *chain.Engine, t *rtable.Table, samples int, seed uint64) (Result, error) {
	if samples <= 0 {
		return Result{}, nil
	}
	src := rand.NewPCG(seed, seed)
	r := rand.New(src)

	n := eng.Space.N()
	hashes := make([][16]byte, samples)
	for i := 0; i < samples; i++ {
		x := r.Uint64N(n)
		hashes[i] = eng.HashOf(x)
	}

	var resolved []uint64
	var err error
	if dev != nil {
		resolved, err = lookup.Lookup(ctx, dev, eng, t, hashes)
		if err != nil {
			return Result{}, err
		}
	} else {
		resolved = lookup.LookupManySequential(eng, t, hashes)
	}

	covered := 0
	for _, x := range resolved {
		if x != lookup.NotFound {
			covered++
		}
	}
	return summarize(samples, covered), nil
}

// summarize computes a Wald 95% confidence interval around the observed
// fraction, clamped to [0, 1].
func summarize(samples, covered int) Result {
	p := float64(covered) / float64(samples)
	se := math.Sqrt(p * (1 - p) / float64(samples))
	const z95 = 1.96
	lo := p - z95*se
	hi := p + z95*se
	if lo < 0 {
		lo = 0
	}
	if hi > 1 {
		hi = 1
	}
	return Result{Samples: samples, Covered: covered, Fraction: p, CI95Low: lo, CI95High: hi}
}
