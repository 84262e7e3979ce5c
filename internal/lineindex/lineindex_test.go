package lineindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Marabii/fatfile/internal/bytesource"
	"github.com/Marabii/fatfile/internal/encoding"
)

func openSource(t *testing.T, data []byte) bytesource.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, data, 0644))
	src, err := bytesource.Open(path, encoding.ASCII)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestBuild_ThreeLineFile(t *testing.T) {
	src := openSource(t, []byte("one\ntwo\nthree\n"))
	idx, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, int64(3), idx.LineCount())

	lo, hi, ok := idx.ByteRange(0)
	require.True(t, ok)
	require.Equal(t, int64(0), lo)
	require.Equal(t, int64(4), hi)

	lo, hi, ok = idx.ByteRange(2)
	require.True(t, ok)
	require.Equal(t, int64(8), lo)
	require.Equal(t, int64(14), hi)
}

func TestBuild_NoTrailingNewline(t *testing.T) {
	src := openSource(t, []byte("one\ntwo"))
	idx, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, int64(2), idx.LineCount())

	_, hi, ok := idx.ByteRange(1)
	require.True(t, ok)
	require.Equal(t, int64(7), hi)
}

func TestBuild_EmptyFile(t *testing.T) {
	src := openSource(t, nil)
	idx, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, int64(0), idx.LineCount())
}

func TestByteRange_OutOfBounds(t *testing.T) {
	src := openSource(t, []byte("a\nb\n"))
	idx, err := Build(src)
	require.NoError(t, err)

	_, _, ok := idx.ByteRange(-1)
	require.False(t, ok)
	_, _, ok = idx.ByteRange(2)
	require.False(t, ok)
}

func TestExtend_AppendsOnlyNewBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0644))
	src, err := bytesource.Open(path, encoding.ASCII)
	require.NoError(t, err)
	defer src.Close()

	idx, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, int64(2), idx.LineCount())

	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0644))
	src2, err := src.Reopen()
	require.NoError(t, err)
	defer src2.Close()

	require.NoError(t, idx.Extend(src2, 8, src2.Length()))
	require.Equal(t, int64(4), idx.LineCount())

	lines, err := Lines(src2, idx, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []string{"three", "four"}, lines)
}

func TestRebuild_AfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncate.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0644))
	src, err := bytesource.Open(path, encoding.ASCII)
	require.NoError(t, err)
	defer src.Close()

	idx, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, int64(3), idx.LineCount())

	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0644))
	src2, err := src.Reopen()
	require.NoError(t, err)
	defer src2.Close()

	idx2, err := Rebuild(src2)
	require.NoError(t, err)
	require.Equal(t, int64(1), idx2.LineCount())
}

func TestLines_ClampsOutOfRange(t *testing.T) {
	src := openSource(t, []byte("a\nb\nc\n"))
	idx, err := Build(src)
	require.NoError(t, err)

	lines, err := Lines(src, idx, 5, 10)
	require.NoError(t, err)
	require.Nil(t, lines)

	lines, err = Lines(src, idx, 1, 100)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, lines)
}

func TestLines_StripsCRLF(t *testing.T) {
	src := openSource(t, []byte("one\r\ntwo\r\n"))
	idx, err := Build(src)
	require.NoError(t, err)

	lines, err := Lines(src, idx, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, lines)
}
