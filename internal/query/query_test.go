package query

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Marabii/fatfile/internal/encoding"
	"github.com/Marabii/fatfile/internal/parsespec"
	"github.com/Marabii/fatfile/internal/session"
)

func openSession(t *testing.T, data []byte) *session.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.txt")
	require.NoError(t, os.WriteFile(path, data, 0644))
	sess, err := session.Open(path, encoding.ASCII)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestGetChunk_BasicRange(t *testing.T) {
	sess := openSession(t, []byte("alpha\nbeta\ngamma\ndelta\n"))
	result, err := GetChunk(sess, 1, 3)
	require.NoError(t, err)
	require.Equal(t, int64(4), result.TotalLines)
	require.Len(t, result.Rows, 2)
	require.Equal(t, "beta", result.Rows[0].Text)
	require.Equal(t, int64(1), result.Rows[0].LineNumber)
	require.Equal(t, "gamma", result.Rows[1].Text)
}

func TestGetChunk_WithParseSpec(t *testing.T) {
	sess := openSession(t, []byte("2024-01-01 ERROR boom\n2024-01-02 INFO fine\n"))
	re := regexp.MustCompile(`^(\S+) (\S+) (.*)$`)
	spec, err := parsespec.New(re, 3, true)
	require.NoError(t, err)
	sess.SetParseSpec(spec)

	result, err := GetChunk(sess, 0, 2)
	require.NoError(t, err)
	require.Empty(t, result.FailedLines)
	require.Equal(t, []string{"2024-01-01", "ERROR", "boom"}, result.Rows[0].Columns)
}

func TestGetChunk_ParseFailureFallsBack(t *testing.T) {
	sess := openSession(t, []byte("good line here\nbad\n"))
	re := regexp.MustCompile(`^(\S+) (\S+) (\S+)$`)
	spec, err := parsespec.New(re, 3, true)
	require.NoError(t, err)
	sess.SetParseSpec(spec)

	result, err := GetChunk(sess, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, result.FailedLines)
	require.Equal(t, []string{"bad"}, result.Rows[1].Columns)
}

func TestSearch_FindsMatchesAcrossPartitions(t *testing.T) {
	var content []byte
	for i := 0; i < 500; i++ {
		if i%50 == 0 {
			content = append(content, []byte("needle here\n")...)
		} else {
			content = append(content, []byte("hay\n")...)
		}
	}
	sess := openSession(t, content)

	result, err := Search(context.Background(), sess, "needle", SearchOptions{Workers: 4}, nil)
	require.NoError(t, err)
	require.False(t, result.Capped)
	require.Len(t, result.Matches, 10)

	for i := 1; i < len(result.Matches); i++ {
		require.True(t, result.Matches[i-1].LineNumber < result.Matches[i].LineNumber)
	}
}

func TestSearch_CapsAtMaxMatches(t *testing.T) {
	var content []byte
	for i := 0; i < 100; i++ {
		content = append(content, []byte("needle\n")...)
	}
	sess := openSession(t, content)

	result, err := Search(context.Background(), sess, "needle", SearchOptions{MaxMatches: 10, Workers: 2}, nil)
	require.NoError(t, err)
	require.True(t, result.Capped)
	require.Len(t, result.Matches, 10)
}

func TestSearch_CaseInsensitiveByDefault(t *testing.T) {
	sess := openSession(t, []byte("Needle\nneedle\nNEEDLE\n"))
	result, err := Search(context.Background(), sess, "needle", SearchOptions{}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 3)
}

func TestSearch_CaseSensitive(t *testing.T) {
	sess := openSession(t, []byte("Needle\nneedle\nNEEDLE\n"))
	result, err := Search(context.Background(), sess, "needle", SearchOptions{CaseSensitive: true}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
}

func TestSearch_InvalidRegexReturnsError(t *testing.T) {
	sess := openSession(t, []byte("a\nb\n"))
	_, err := Search(context.Background(), sess, "(unterminated", SearchOptions{}, nil)
	require.Error(t, err)
}

func TestSearch_EmptyFile(t *testing.T) {
	sess := openSession(t, nil)
	result, err := Search(context.Background(), sess, "anything", SearchOptions{}, nil)
	require.NoError(t, err)
	require.Empty(t, result.Matches)
}

func TestSearch_WithoutParseSpecReportsColumnZeroAndEndIndex(t *testing.T) {
	sess := openSession(t, []byte("needle here\n"))
	result, err := Search(context.Background(), sess, "needle", SearchOptions{CaseSensitive: true}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	require.Equal(t, 0, result.Matches[0].Column)
	require.Equal(t, 0, result.Matches[0].StartIndex)
	require.Equal(t, 6, result.Matches[0].EndIndex)
}

func TestSearch_CompletesFalseOnceCapped(t *testing.T) {
	var content []byte
	for i := 0; i < 2000; i++ {
		content = append(content, []byte("needle\n")...)
	}
	sess := openSession(t, content)

	result, err := Search(context.Background(), sess, "needle", SearchOptions{Workers: 4}, nil)
	require.NoError(t, err)
	require.True(t, result.Capped)
	require.Len(t, result.Matches, 1000)
}

func TestSearch_WithParseSpecReportsColumn(t *testing.T) {
	sess := openSession(t, []byte("alice ERROR boom\nbob INFO ok\n"))
	re := regexp.MustCompile(`^(\S+) (\S+) (.*)$`)
	spec, err := parsespec.New(re, 3, true)
	require.NoError(t, err)
	sess.SetParseSpec(spec)

	result, err := Search(context.Background(), sess, "ERROR", SearchOptions{CaseSensitive: true}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	require.Equal(t, 1, result.Matches[0].Column)
}
