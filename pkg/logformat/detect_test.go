package logformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectLine_CommonEventFormat(t *testing.T) {
	line := `CEF:0|Vendor|Product|1.0|100|Detected|5|src=10.0.0.1 dst=10.0.0.2`
	require.Equal(t, CommonEventFormat, DetectLine(line))
}

func TestDetectLine_Syslog5424(t *testing.T) {
	line := `<34>1 2024-01-15T10:30:00Z myhost app 1234 ID47 [exampleSDID@0] log message here`
	require.Equal(t, SyslogRFC5424, DetectLine(line))
}

func TestDetectLine_NCSACombined(t *testing.T) {
	line := `127.0.0.1 - - [15/Jan/2024:10:30:00 +0000] "GET /index.html HTTP/1.1" 200 1024`
	require.Equal(t, NCSACombined, DetectLine(line))
}

func TestDetectLine_Unrecognized(t *testing.T) {
	require.Equal(t, Other, DetectLine("just some free-form text"))
}

func TestDetectSample_MajorityVoteWins(t *testing.T) {
	lines := []string{
		`127.0.0.1 - - [15/Jan/2024:10:30:00 +0000] "GET /a HTTP/1.1" 200 10`,
		`127.0.0.1 - - [15/Jan/2024:10:30:01 +0000] "GET /b HTTP/1.1" 200 20`,
		`not a log line at all`,
	}
	require.Equal(t, NCSACombined, DetectSample(lines))
}

func TestDetectSample_NoMajorityReturnsOther(t *testing.T) {
	lines := []string{"plain text one", "plain text two", "plain text three"}
	require.Equal(t, Other, DetectSample(lines))
}

func TestDetectSample_EmptySampleReturnsOther(t *testing.T) {
	require.Equal(t, Other, DetectSample(nil))
	require.Equal(t, Other, DetectSample([]string{"", ""}))
}

func TestColumnCount_MatchesPatternGroups(t *testing.T) {
	require.Equal(t, NCSACombined.columnCountForTest(), ColumnCount(NCSACombined))
}

// columnCountForTest lets the test assert ColumnCount stays in sync with
// the pattern's actual capture-group count without hardcoding it twice.
func (f Format) columnCountForTest() int {
	p := Pattern(f)
	if p == nil {
		return 0
	}
	return p.NumSubexp()
}
