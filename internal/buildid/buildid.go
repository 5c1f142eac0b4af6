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

// Package buildid mints the per-build session identifier that the
// chunked builder records in its Stats and the CLI prints in progress
// output.
package buildid

import "github.com/google/uuid"

// New returns a fresh build-session id of the form ".build-<uuid>".
func New() string {
	return ".build-" + uuid.New().String()
}
