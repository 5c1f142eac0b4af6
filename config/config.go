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

// Package config decodes build parameter files (BuildSpec) and resolves
// them into rtable.Params. The rainbow CLI does not read these files; it
// takes its parameters from flags only.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"rtcore.dev/rainbow/rtable"
)

// BuildSpec is the decodable form of a build request: everything needed
// to construct a table, as either YAML or JSON (sigs.k8s.io/yaml decodes
// both, the same way table definitions are decoded elsewhere in this
// codebase).
type BuildSpec struct {
	Alphabet   string `json:"alphabet"`
	MaxLen     int    `json:"max_len"`
	ChainLen   int    `json:"chain_len"`
	TableIndex uint64 `json:"table_index"`
	Alpha      float64 `json:"alpha"` // fraction of N used as m; ignored if NumStart is set
	NumStart   uint64 `json:"num_start,omitempty"`
	Samples    int    `json:"samples"`
	Seed       uint64 `json:"seed"`
	Compress   bool   `json:"compress"`
}

// Load decodes a BuildSpec from path (YAML or JSON; sigs.k8s.io/yaml
// accepts both).
func Load(path string) (*BuildSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var spec BuildSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &spec, nil
}

// Params resolves the request into rtable.Params, computing NumStart
// from Alpha*N when NumStart was not given explicitly.
func (s *BuildSpec) Params() (rtable.Params, error) {
	if s.Alpha <= 0 || s.Alpha > 1 {
		if s.NumStart == 0 {
			return rtable.Params{}, fmt.Errorf("config: alpha must be in (0, 1], got %v", s.Alpha)
		}
	}
	alpha := []byte(s.Alphabet)
	if len(alpha) == 0 {
		return rtable.Params{}, fmt.Errorf("config: empty alphabet")
	}
	m := s.NumStart
	if m == 0 {
		sp, err := rtable.NewParams(alpha, s.MaxLen, s.ChainLen, s.TableIndex, 1)
		if err != nil {
			return rtable.Params{}, err
		}
		n := sp.N
		m = uint64(float64(n) * s.Alpha)
		if m == 0 {
			m = 1
		}
	}
	return rtable.NewParams(alpha, s.MaxLen, s.ChainLen, s.TableIndex, m)
}
