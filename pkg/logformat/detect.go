// Package logformat implements Parsing Information (spec §4.7): a format
// detector that tries a small, ordered set of well-known regexes against
// sampled lines and also exposes those patterns as ready-made ParseSpecs
// for the ParseFile command. It is grounded on
// original_source/RustBackend's services/commands/utils/log_format_patterns.rs,
// translated from once_cell+regex into package-level compiled regexps.
package logformat

import "regexp"

// Format is one of the closed set of tags spec §6 names in
// GetParsingInformation's response.
type Format string

const (
	CommonLogFormat   Format = "CommonLogFormat"
	SyslogRFC3164     Format = "SyslogRFC3164"
	SyslogRFC5424     Format = "SyslogRFC5424"
	W3CExtended       Format = "W3CExtended"
	CommonEventFormat Format = "CommonEventFormat"
	NCSACombined      Format = "NCSACombined"
	Other             Format = "Other"
)

var (
	cefPattern = regexp.MustCompile(
		`^CEF:(\d+)\|([^|]+)\|([^|]+)\|([^|]+)\|([^|]+)\|([^|]+)\|(\d+)\|(.*)$`)

	w3cPattern = regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2})\s(\d{2}:\d{2}:\d{2})\s(\S+)\s(\S+)\s(\S+)`)

	syslog5424Pattern = regexp.MustCompile(
		`^<(\d{1,3})>1\s(\S+)\s(\S+)\s(\S+)\s(\S+)\s(\S+)\s(\[.+\]|-) (.*)$`)

	ncsaPattern = regexp.MustCompile(
		`^(\d{1,3}(?:\.\d{1,3}){3}) - - \[(.*?)\] "(.*?)" (\d{3}) (\d+|-)`)

	clfPattern = regexp.MustCompile(
		`^(\S+) \S+ (\S+) \[([\w:/]+\s[+\-]\d{4})\] "(\S+) (\S+)\s*(\S+)?\s*" (\d{3}) (\S+)`)

	syslog3164Pattern = regexp.MustCompile(
		`^<(\d{1,3})>([A-Z][a-z]{2}\s{1,2}\d{1,2}\s\d{2}:\d{2}:\d{2})\s(\S+)\s([^:]+):\s(.*)$`)
)

// orderedPatterns lists formats in order of specificity, most specific
// first, exactly as detect_format in the Rust original tries them.
var orderedPatterns = []struct {
	format  Format
	pattern *regexp.Regexp
}{
	{CommonEventFormat, cefPattern},
	{W3CExtended, w3cPattern},
	{SyslogRFC5424, syslog5424Pattern},
	{NCSACombined, ncsaPattern},
	{CommonLogFormat, clfPattern},
	{SyslogRFC3164, syslog3164Pattern},
}

// DetectLine returns the first format in specificity order whose pattern
// matches line, or Other if none match.
func DetectLine(line string) Format {
	for _, p := range orderedPatterns {
		if p.pattern.MatchString(line) {
			return p.format
		}
	}
	return Other
}

// DetectSample returns the format that matches a majority of the
// non-empty sampled lines, as spec §4.7 describes ("the tag of the first
// regex that matches a majority of the sampled lines, or Other").
// Patterns are still tried in specificity order: the first format whose
// match count exceeds half the sample wins.
func DetectSample(lines []string) Format {
	var nonEmpty []string
	for _, l := range lines {
		if l != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) == 0 {
		return Other
	}

	threshold := len(nonEmpty) / 2
	for _, p := range orderedPatterns {
		matches := 0
		for _, l := range nonEmpty {
			if p.pattern.MatchString(l) {
				matches++
			}
		}
		if matches > threshold {
			return p.format
		}
	}
	return Other
}

// Pattern returns the format's built-in regexp, or nil for Other.
func Pattern(f Format) *regexp.Regexp {
	switch f {
	case CommonEventFormat:
		return cefPattern
	case W3CExtended:
		return w3cPattern
	case SyslogRFC5424:
		return syslog5424Pattern
	case NCSACombined:
		return ncsaPattern
	case CommonLogFormat:
		return clfPattern
	case SyslogRFC3164:
		return syslog3164Pattern
	default:
		return nil
	}
}

// ColumnCount returns the built-in capture-group count for a format, or
// 0 for Other. These mirror get_column_count in the Rust original.
func ColumnCount(f Format) int {
	switch f {
	case CommonEventFormat:
		return 8
	case W3CExtended:
		return 5
	case SyslogRFC5424:
		return 8
	case NCSACombined:
		return 5
	case CommonLogFormat:
		return 8
	case SyslogRFC3164:
		return 5
	default:
		return 0
	}
}
