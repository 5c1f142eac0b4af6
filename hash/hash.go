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

// Package hash defines the pluggable digest used by the reduction/chain
// engine. The core is hard-wired to MD5 but never references crypto/md5
// directly, so an alternative Func can be swapped in without touching
// reduction or chain code.
package hash

import "crypto/md5"

// Size is the digest length in bytes. The reduction function and table
// store assume 16-byte digests throughout.
const Size = 16

// Func computes a fixed-size digest of msg into dst.
type Func interface {
	Sum(dst *[Size]byte, msg []byte)
}

// MD5 is the default Func, used by every table unless a build is
// explicitly configured otherwise.
type MD5 struct{}

func (MD5) Sum(dst *[Size]byte, msg []byte) {
	*dst = md5.Sum(msg)
}

// Default is the hash used when a caller does not specify one.
var Default Func = MD5{}
