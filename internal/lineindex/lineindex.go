// Package lineindex implements the Line Index (spec §4.3): the sorted
// offset vector O that converts line numbers to byte ranges, built by a
// full scan at OpenFile, extended in place on append, and rebuilt on
// truncate/rotate. It is grounded on the teacher's internal/index/lines.go
// (chunked bytes.IndexByte scan) generalized to read through a
// bytesource.Source instead of a raw mmap, and on original_source's
// scan_file for the append/rebuild split.
package lineindex

import (
	"bytes"
	"fmt"

	"github.com/Marabii/fatfile/internal/bytesource"
)

// chunkSize is how many bytes are read at a time while scanning for
// newlines; matches the teacher's 64KB chunking.
const chunkSize = 64 * 1024

// Index is the offset vector O described in spec §3: O[0]=0,
// O[len(O)-1]=byte_length, and O[i] for 0<i<len(O)-1 is the byte offset
// immediately after the i-th newline.
type Index struct {
	offsets []int64
}

// Build performs the initial full scan described in spec §4.3.
func Build(src bytesource.Source) (*Index, error) {
	idx := &Index{offsets: []int64{0}}
	if err := idx.scan(src, 0); err != nil {
		return nil, err
	}
	idx.finalize(src.Length())
	return idx, nil
}

// scan finds every newline in src[from:src.Length()) and appends the
// byte offset just after each one to offsets. It does not append the
// final byte_length sentinel; callers (Build, Extend) call finalize once
// scanning is done.
func (idx *Index) scan(src bytesource.Source, from int64) error {
	length := src.Length()
	pos := from

	for pos < length {
		end := pos + chunkSize
		if end > length {
			end = length
		}
		chunk, err := src.ReadRange(pos, end)
		if err != nil {
			return fmt.Errorf("scan newlines: %w", err)
		}

		offset := 0
		for {
			rel := bytes.IndexByte(chunk[offset:], '\n')
			if rel == -1 {
				break
			}
			lineStart := pos + int64(offset) + int64(rel) + 1
			idx.offsets = append(idx.offsets, lineStart)
			offset += rel + 1
		}

		pos = end
	}
	return nil
}

// finalize replaces (or sets, on first build) the terminal sentinel with
// the current byte_length, as spec §3 requires: O[N]=byte_length.
func (idx *Index) finalize(byteLength int64) {
	if len(idx.offsets) > 0 && idx.offsets[len(idx.offsets)-1] == byteLength {
		return
	}
	idx.offsets = append(idx.offsets, byteLength)
}

// LineCount returns len(O)-1, the number of logical lines (spec §3).
func (idx *Index) LineCount() int64 {
	if len(idx.offsets) == 0 {
		return 0
	}
	return int64(len(idx.offsets) - 1)
}

// ByteRange returns the half-open byte range [O[i], O[i+1]) line i
// occupies, including its trailing newline if present.
func (idx *Index) ByteRange(line int64) (int64, int64, bool) {
	if line < 0 || line >= idx.LineCount() {
		return 0, 0, false
	}
	return idx.offsets[line], idx.offsets[line+1], true
}

// Extend implements the incremental append path of spec §4.3: given the
// previously-known length and the new (larger) length, it scans only the
// newly-appended bytes and extends O, replacing the old terminal
// sentinel with the new one.
func (idx *Index) Extend(src bytesource.Source, oldLength, newLength int64) error {
	if newLength <= oldLength {
		return nil
	}
	if len(idx.offsets) > 1 && oldLength > 0 {
		// When the old content ended in a newline, the old sentinel is also
		// the start of the next line and stays; otherwise it is dropped.
		last, err := src.ReadRange(oldLength-1, oldLength)
		if err != nil {
			return fmt.Errorf("extend index: %w", err)
		}
		if len(last) != 1 || last[0] != '\n' {
			idx.offsets = idx.offsets[:len(idx.offsets)-1] // drop stale sentinel
		}
	}
	if err := idx.scan(src, oldLength); err != nil {
		return err
	}
	idx.finalize(newLength)
	return nil
}

// Rebuild discards O and performs a full build again, for the
// truncate/rotate path of spec §4.3.
func Rebuild(src bytesource.Source) (*Index, error) {
	return Build(src)
}
