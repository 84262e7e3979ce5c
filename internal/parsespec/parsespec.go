// Package parsespec implements the ParseSpec entity (spec §3): a
// compiled regex plus its expected capture-group count, used to split a
// decoded line into column strings. Grounded on
// original_source/RustBackend's services/commands/utils/parse_data.rs.
package parsespec

import "regexp"

// Spec pairs a compiled regex with the number of columns it should
// produce. NbrColumns is only used for validation; when HasColumns is
// false (not supplied), no validation is performed, matching the Rust
// original's `Option<u8>` semantics.
type Spec struct {
	Regex      *regexp.Regexp
	NbrColumns int
	HasColumns bool
}

// New validates that re's capture-group count agrees with nbrColumns
// when the caller supplied one, returning protocolerr.ColumnCountMismatch
// semantics via a plain error (the caller maps it to the wire taxonomy).
func New(re *regexp.Regexp, nbrColumns int, hasColumns bool) (*Spec, error) {
	if hasColumns && re.NumSubexp() != nbrColumns {
		return nil, &ColumnCountError{Expected: nbrColumns, Got: re.NumSubexp()}
	}
	return &Spec{Regex: re, NbrColumns: nbrColumns, HasColumns: hasColumns}, nil
}

// ColumnCountError reports a static mismatch between a ParseFile
// pattern's capture-group count and its caller-supplied nbr_columns.
type ColumnCountError struct {
	Expected int
	Got      int
}

func (e *ColumnCountError) Error() string {
	return "regex has a different number of capturing groups than nbr_columns"
}

// Apply splits line into column strings using the spec's regex. A line
// that fails to match, or whose captured-group count disagrees with
// NbrColumns (when set), falls back to a single-element tuple containing
// the raw line — per spec §4.3 and SPEC_FULL.md §C.4, this is never an
// error, only a per-line fallback. ok reports whether the regex matched
// and validated, for callers that want to report parse failures
// (GetChunk does; live-tail parsing during LinesAdded does not).
func Apply(spec *Spec, line string) (columns []string, ok bool) {
	if spec == nil {
		return []string{line}, true
	}

	match := spec.Regex.FindStringSubmatch(line)
	if match == nil {
		return []string{line}, false
	}

	groups := match[1:] // skip the full match at index 0
	if spec.HasColumns && len(groups) != spec.NbrColumns {
		return []string{line}, false
	}

	out := make([]string, len(groups))
	copy(out, groups)
	return out, true
}

// ApplyBatch runs Apply over every line, returning the parsed rows and
// the line numbers (startLine plus the line's position in lines) of lines
// that fell back to the raw-line tuple because they failed to parse.
func ApplyBatch(spec *Spec, lines []string, startLine int64) (rows [][]string, failedLines []int64) {
	rows = make([][]string, len(lines))
	for i, line := range lines {
		cols, ok := Apply(spec, line)
		rows[i] = cols
		if !ok {
			failedLines = append(failedLines, startLine+int64(i))
		}
	}
	return rows, failedLines
}
