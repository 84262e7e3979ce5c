package lineindex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Marabii/fatfile/internal/bytesource"
)

// Lines decodes and returns the text of lines [startLine, endLine) with
// their trailing newline (and, for CRLF files, the trailing \r) stripped,
// per spec §4.3's range-query contract. The range is clamped the way
// GetChunk clamps it (spec §4.4): start_line≥line_count yields an empty
// result, end_line>line_count is silently clamped.
func Lines(src bytesource.Source, idx *Index, startLine, endLine int64) ([]string, error) {
	count := idx.LineCount()
	if startLine < 0 {
		startLine = 0
	}
	if endLine > count {
		endLine = count
	}
	if startLine >= count || startLine >= endLine {
		return nil, nil
	}

	lo, _, _ := idx.ByteRange(startLine)
	_, hi, _ := idx.ByteRange(endLine - 1)

	raw, err := src.ReadRange(lo, hi)
	if err != nil {
		return nil, fmt.Errorf("read line range: %w", err)
	}

	out := make([]string, 0, endLine-startLine)
	for line := startLine; line < endLine; line++ {
		lineLo, lineHi, _ := idx.ByteRange(line)
		slice := raw[lineLo-lo : lineHi-lo]
		slice = bytes.TrimSuffix(slice, []byte("\n"))
		slice = bytes.TrimSuffix(slice, []byte("\r"))
		out = append(out, decodeUTF8Lossy(slice))
	}
	return out, nil
}

// decodeUTF8Lossy decodes b as UTF-8, substituting the replacement
// character for any invalid byte sequence, matching the Rust original's
// String::from_utf8_lossy used throughout read_lines_range.
func decodeUTF8Lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
