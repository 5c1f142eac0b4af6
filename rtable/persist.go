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

package rtable

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// entrySize is the on-disk width of one (endpoint, start) pair: two
// little-endian u64s.
const entrySize = 16

// SaveOptions controls the optional, additive parts of persistence that
// the six-field parameter line and raw entry format do not themselves
// require.
type SaveOptions struct {
	// Compress writes the entry blob zstd-compressed, at path+".zst",
	// and records that fact in the params file.
	Compress bool

	// TempSuffix names the scratch file used for the atomic
	// write-then-rename, so a build cancelled mid-write never leaves a
	// torn table file behind. It defaults to ".tmp" if empty; the
	// rainbow CLI leaves it empty.
	TempSuffix string
}

// Save writes t's parameters to path+".params" and its entries to path
// (or path+".zst" if SaveOptions.Compress is set), both atomically via a
// temp-file-then-rename.
func (t *Table) Save(path string, opts SaveOptions) error {
	suffix := opts.TempSuffix
	if suffix == "" {
		suffix = ".tmp"
	}

	entryPath := path
	raw := encodeEntries(t.Entries)
	if opts.Compress {
		entryPath = path + ".zst"
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("rtable: save %s: %w", path, err)
		}
		raw = enc.EncodeAll(raw, nil)
		enc.Close()
	}
	sum := blake2b.Sum256(encodeEntries(t.Entries))

	if err := atomicWrite(entryPath, suffix, raw); err != nil {
		return fmt.Errorf("rtable: save %s: %w", entryPath, err)
	}
	if err := writeParams(path+".params", suffix, t.Params, opts.Compress, sum); err != nil {
		return fmt.Errorf("rtable: save %s.params: %w", path, err)
	}
	return nil
}

func atomicWrite(path, suffix string, data []byte) error {
	tmp := path + suffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func encodeEntries(entries []Entry) []byte {
	buf := make([]byte, len(entries)*entrySize)
	for i, e := range entries {
		binary.LittleEndian.PutUint64(buf[i*entrySize:], e.Endpoint)
		binary.LittleEndian.PutUint64(buf[i*entrySize+8:], e.Start)
	}
	return buf
}

func writeParams(path, suffix string, p Params, compressed bool, checksum [32]byte) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s %d %d %d %d\n",
		len(p.Alphabet), string(p.Alphabet), p.N, p.ChainLen, p.TableIndex, p.NumStart)
	// Additive lines: neither required nor parsed by a minimal reader of
	// just the first line, but consulted by Load for the checksum and
	// compression flag.
	fmt.Fprintf(&sb, "checksum %s\n", hex.EncodeToString(checksum[:]))
	fmt.Fprintf(&sb, "compressed %t\n", compressed)
	return atomicWrite(path, suffix, []byte(sb.String()))
}

// Load reads parameters from path+".params" and entries from path (or
// path+".zst" if the params file records Compress=true), validates the
// blake2b checksum, and returns the sorted table.
func Load(path string) (*Table, error) {
	p, compressed, wantSum, err := readParams(path + ".params")
	if err != nil {
		return nil, fmt.Errorf("rtable: load %s.params: %w", path, err)
	}

	entryPath := path
	if compressed {
		entryPath = path + ".zst"
	}
	raw, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("rtable: load %s: %w", entryPath, err)
	}
	if compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("rtable: load %s: %w", entryPath, err)
		}
		raw, err = dec.DecodeAll(raw, nil)
		dec.Close()
		if err != nil {
			return nil, fmt.Errorf("rtable: load %s: decompress: %w", entryPath, err)
		}
	}
	if len(raw)%entrySize != 0 {
		return nil, fmt.Errorf("rtable: load %s: length %d is not a multiple of %d", entryPath, len(raw), entrySize)
	}
	if wantSum != ([32]byte{}) {
		if got := blake2b.Sum256(raw); got != wantSum {
			return nil, fmt.Errorf("rtable: load %s: checksum mismatch, file is corrupt", entryPath)
		}
	}

	entries := make([]Entry, len(raw)/entrySize)
	for i := range entries {
		entries[i].Endpoint = binary.LittleEndian.Uint64(raw[i*entrySize:])
		entries[i].Start = binary.LittleEndian.Uint64(raw[i*entrySize+8:])
	}
	t := &Table{Params: p, Entries: entries}
	t.SortDedup()
	return t, nil
}

func readParams(path string) (Params, bool, [32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, false, [32]byte{}, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return Params{}, false, [32]byte{}, fmt.Errorf("empty or unreadable parameter file")
	}
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return Params{}, false, [32]byte{}, fmt.Errorf("malformed parameter line %q", line)
	}
	alphaSize, err := strconv.Atoi(fields[0])
	if err != nil {
		return Params{}, false, [32]byte{}, fmt.Errorf("bad alphabet size: %w", err)
	}
	// The alphabet itself may contain spaces, so it is not simply
	// fields[1]: re-split the original line by single spaces into
	// exactly 6 tokens, the alphabet being whatever sits between the
	// first and the remaining 4 trailing numeric fields.
	alpha, rest, err := splitAlphabetField(line, alphaSize)
	if err != nil {
		return Params{}, false, [32]byte{}, err
	}
	if len(alpha) != alphaSize {
		return Params{}, false, [32]byte{}, fmt.Errorf("declared alphabet size %d disagrees with %d bytes read", alphaSize, len(alpha))
	}
	restFields := strings.Fields(rest)
	if len(restFields) != 4 {
		return Params{}, false, [32]byte{}, fmt.Errorf("malformed parameter line %q", line)
	}
	n, err := strconv.ParseUint(restFields[0], 10, 64)
	if err != nil {
		return Params{}, false, [32]byte{}, fmt.Errorf("bad N: %w", err)
	}
	chainLen, err := strconv.Atoi(restFields[1])
	if err != nil {
		return Params{}, false, [32]byte{}, fmt.Errorf("bad chain_len: %w", err)
	}
	tau, err := strconv.ParseUint(restFields[2], 10, 64)
	if err != nil {
		return Params{}, false, [32]byte{}, fmt.Errorf("bad table_index: %w", err)
	}
	m, err := strconv.ParseUint(restFields[3], 10, 64)
	if err != nil {
		return Params{}, false, [32]byte{}, fmt.Errorf("bad num_start_values: %w", err)
	}
	maxLen, err := deriveMaxLen(alphaSize, n)
	if err != nil {
		return Params{}, false, [32]byte{}, err
	}

	p := Params{Alphabet: alpha, N: n, ChainLen: chainLen, TableIndex: tau, NumStart: m, maxLen: maxLen}

	var compressed bool
	var sum [32]byte
	for {
		l, err := r.ReadString('\n')
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "checksum ") {
			b, decErr := hex.DecodeString(strings.TrimPrefix(l, "checksum "))
			if decErr == nil && len(b) == 32 {
				copy(sum[:], b)
			}
		} else if strings.HasPrefix(l, "compressed ") {
			compressed = strings.TrimPrefix(l, "compressed ") == "true"
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}
	return p, compressed, sum, nil
}

// splitAlphabetField extracts the alphaSize-byte alphabet field from a
// line of the form "<n> <alphabet bytes> <N> <t> <tau> <m>\n", returning
// the alphabet and the remainder of the line (without a leading space).
func splitAlphabetField(line string, alphaSize int) (alpha []byte, rest string, err error) {
	line = strings.TrimSuffix(line, "\n")
	firstSpace := strings.IndexByte(line, ' ')
	if firstSpace < 0 {
		return nil, "", fmt.Errorf("malformed parameter line %q", line)
	}
	body := line[firstSpace+1:]
	if len(body) < alphaSize+1 {
		return nil, "", fmt.Errorf("parameter line too short for declared alphabet size %d", alphaSize)
	}
	return []byte(body[:alphaSize]), body[alphaSize+1:], nil
}
