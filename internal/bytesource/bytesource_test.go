package bytesource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Marabii/fatfile/internal/encoding"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestMappedSource_ReadRange(t *testing.T) {
	path := writeTemp(t, []byte("abcdefghij"))
	src, err := Open(path, encoding.ASCII)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, int64(10), src.Length())

	b, err := src.ReadRange(2, 5)
	require.NoError(t, err)
	require.Equal(t, "cde", string(b))

	tail, err := src.ReadTailFrom(8)
	require.NoError(t, err)
	require.Equal(t, "ij", string(tail))
}

func TestMappedSource_ReadRangeClamps(t *testing.T) {
	path := writeTemp(t, []byte("short"))
	src, err := Open(path, encoding.ASCII)
	require.NoError(t, err)
	defer src.Close()

	b, err := src.ReadRange(2, 1000)
	require.NoError(t, err)
	require.Equal(t, "ort", string(b))
}

func TestTranscodedSource_UTF16LE(t *testing.T) {
	data := []byte{'h', 0, 'i', 0, '\n', 0, 'o', 0, 'k', 0, '\n', 0}
	path := writeTemp(t, data)

	src, err := Open(path, encoding.UTF16LE)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, encoding.UTF16LE, src.Encoding())

	all, err := src.ReadRange(0, src.Length())
	require.NoError(t, err)
	require.Equal(t, "hi\nok\n", string(all))
}

func TestPrefixFingerprint_ChangesOnTruncate(t *testing.T) {
	path := writeTemp(t, []byte("aaaaaaaaaa"))
	fp1, err := FilePrefixFingerprint(path, 8192)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("bbbb"), 0644))
	fp2, err := FilePrefixFingerprint(path, 8192)
	require.NoError(t, err)

	require.NotEqual(t, fp1, fp2)
}
