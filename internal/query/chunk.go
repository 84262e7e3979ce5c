// Package query implements the Query Engine (spec §4.4, §4.5): GetChunk
// (a clamped, optionally-parsed range read) and Search (a parallel regex
// scan with progress and a match cap). Grounded on
// original_source/RustBackend's get_chunk.rs/read_lines_range.rs and
// search.rs, with the worker pool built on golang.org/x/sync/errgroup
// fan-out.
package query

import (
	"fmt"

	"github.com/Marabii/fatfile/internal/parsespec"
	"github.com/Marabii/fatfile/internal/session"
)

// ChunkRow is one line of a GetChunk result: its raw decoded text and,
// if a ParseSpec is installed, its parsed columns.
type ChunkRow struct {
	LineNumber int64
	Text       string
	Columns    []string
	ParseOK    bool
}

// ChunkResult is GetChunk's response payload (spec §4.4/§6).
type ChunkResult struct {
	Rows        []ChunkRow
	TotalLines  int64
	FailedLines []int64
}

// GetChunk returns lines [startLine, endLine) of sess, clamped per
// spec §4.4, parsed through sess's installed ParseSpec if any.
func GetChunk(sess *session.Session, startLine, endLine int64) (*ChunkResult, error) {
	lines, err := sess.Lines(startLine, endLine)
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}

	result := &ChunkResult{
		TotalLines: sess.LineCount(),
		Rows:       make([]ChunkRow, len(lines)),
	}

	spec := sess.ParseSpec()
	base := startLine
	if base < 0 {
		base = 0
	}

	for i, text := range lines {
		lineNo := base + int64(i)
		row := ChunkRow{LineNumber: lineNo, Text: text}
		if spec != nil {
			cols, ok := parsespec.Apply(spec, text)
			row.Columns = cols
			row.ParseOK = ok
			if !ok {
				result.FailedLines = append(result.FailedLines, lineNo)
			}
		}
		result.Rows[i] = row
	}

	return result, nil
}
