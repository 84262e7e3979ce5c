package parsespec

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsColumnCountMismatch(t *testing.T) {
	re := regexp.MustCompile(`^(\S+) (\S+)$`)
	_, err := New(re, 3, true)
	require.Error(t, err)

	var ccErr *ColumnCountError
	require.ErrorAs(t, err, &ccErr)
	require.Equal(t, 3, ccErr.Expected)
	require.Equal(t, 2, ccErr.Got)
}

func TestNew_AcceptsMatchingColumnCount(t *testing.T) {
	re := regexp.MustCompile(`^(\S+) (\S+)$`)
	spec, err := New(re, 2, true)
	require.NoError(t, err)
	require.NotNil(t, spec)
}

func TestNew_SkipsValidationWithoutNbrColumns(t *testing.T) {
	re := regexp.MustCompile(`^(\S+) (\S+) (\S+)$`)
	spec, err := New(re, 0, false)
	require.NoError(t, err)
	require.False(t, spec.HasColumns)
}

func TestApply_NilSpecReturnsRawLine(t *testing.T) {
	cols, ok := Apply(nil, "raw line text")
	require.True(t, ok)
	require.Equal(t, []string{"raw line text"}, cols)
}

func TestApply_MatchingLineExtractsColumns(t *testing.T) {
	re := regexp.MustCompile(`^(\S+) (\S+) (.*)$`)
	spec, err := New(re, 3, true)
	require.NoError(t, err)

	cols, ok := Apply(spec, "2024-01-01 ERROR something broke")
	require.True(t, ok)
	require.Equal(t, []string{"2024-01-01", "ERROR", "something broke"}, cols)
}

func TestApply_NonMatchingLineFallsBackToRawTuple(t *testing.T) {
	re := regexp.MustCompile(`^(\d+) (\d+)$`)
	spec, err := New(re, 2, true)
	require.NoError(t, err)

	cols, ok := Apply(spec, "not a matching line")
	require.False(t, ok)
	require.Equal(t, []string{"not a matching line"}, cols)
}

func TestApplyBatch_CollectsFailedLineNumbers(t *testing.T) {
	re := regexp.MustCompile(`^(\d+) (\d+)$`)
	spec, err := New(re, 2, true)
	require.NoError(t, err)

	lines := []string{"1 2", "bad", "3 4", "also bad"}
	rows, failed := ApplyBatch(spec, lines, 10)

	require.Len(t, rows, 4)
	require.Equal(t, []string{"1", "2"}, rows[0])
	require.Equal(t, []string{"bad"}, rows[1])
	require.Equal(t, []int64{11, 13}, failed)
}
