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
	"fmt"

	"rtcore.dev/rainbow/chain"
	"rtcore.dev/rainbow/hash"
	"rtcore.dev/rainbow/rtable"
)

// runVerify recomputes every entry's endpoint on the sequential CPU
// engine and reports any disagreement. A mismatch indicates a bug in
// whichever backend produced the table.
func runVerify(args []string) {
	if len(args) != 1 {
		exitf("usage: verify <table>")
	}
	t, err := rtable.Load(args[0])
	if err != nil {
		exitf("%s", err)
	}
	sp, err := t.Params.Space()
	if err != nil {
		exitf("%s", err)
	}
	eng := &chain.Engine{Space: sp, Hash: hash.Default, Tau: t.Params.TableIndex}

	bad := 0
	for _, e := range t.Entries {
		want, _ := eng.ChainEnd(e.Start, 0, t.Params.ChainLen)
		if want != e.Endpoint {
			bad++
			fmt.Printf("mismatch: start=%d want_endpoint=%d stored_endpoint=%d\n", e.Start, want, e.Endpoint)
		}
	}
	if bad > 0 {
		exitf("%d/%d entries failed verification", bad, len(t.Entries))
	}
	fmt.Printf("OK: %d entries verified\n", len(t.Entries))
}
