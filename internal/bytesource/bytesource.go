// Package bytesource abstracts random-access byte reads over a
// canonicalized view of a file (spec §4.2). For ASCII-compatible
// encodings it wraps golang.org/x/exp/mmap the way the teacher's
// internal/io/mmap.go does, giving O(1) random access. For UTF-16 it
// transcodes into a UTF-8 shadow file so every downstream component
// (Line Index, Query Engine) sees plain UTF-8 byte offsets.
package bytesource

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"

	"github.com/Marabii/fatfile/internal/encoding"
)

// Source is the random-access view every other subsystem reads through.
type Source interface {
	// Length returns the total number of bytes in the canonical view.
	Length() int64
	// ReadRange returns bytes[lo:hi), clamped to the source's length.
	ReadRange(lo, hi int64) ([]byte, error)
	// ReadTailFrom returns bytes[offset:length).
	ReadTailFrom(offset int64) ([]byte, error)
	// PrefixFingerprint hashes the first n bytes of the *original* file
	// on disk, used by the watcher to detect truncation/rotation.
	PrefixFingerprint(n int) (string, error)
	// Encoding reports the source's tag: the UTF-16 variant for a
	// transcoded source, and UTF-8 for every pass-through source, whatever
	// tag it was opened with.
	Encoding() encoding.Tag
	// Reopen re-reads the underlying file from scratch (used after a
	// rebuild) and returns the new source, closing the old one.
	Reopen() (Source, error)
	// Close releases any OS resources (mmap handle, cache file).
	Close() error
}

// Open picks the right Source implementation for path given its probed
// encoding. ASCII-compatible and unsupported-but-openable encodings use
// the fast mmap path (bytes pass through unchanged); UTF-16 uses the
// transcoding path.
func Open(path string, enc encoding.Tag) (Source, error) {
	switch enc {
	case encoding.UTF16LE, encoding.UTF16BE:
		return openTranscoded(path, enc)
	default:
		return openMapped(path)
	}
}

// mappedSource is the ASCII-compatible fast path: bytes are read
// directly off the mmap'd file, exactly as the teacher's MappedFile does.
type mappedSource struct {
	reader *mmap.ReaderAt
	path   string
	size   int64
}

func openMapped(path string) (Source, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap open: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	return &mappedSource{reader: reader, path: path, size: info.Size()}, nil
}

func (m *mappedSource) Length() int64 { return m.size }

func (m *mappedSource) ReadRange(lo, hi int64) ([]byte, error) {
	if hi > m.size {
		hi = m.size
	}
	if lo < 0 {
		lo = 0
	}
	if lo >= hi {
		return nil, nil
	}
	buf := make([]byte, hi-lo)
	if _, err := m.reader.ReadAt(buf, lo); err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	return buf, nil
}

func (m *mappedSource) ReadTailFrom(offset int64) ([]byte, error) {
	return m.ReadRange(offset, m.size)
}

func (m *mappedSource) PrefixFingerprint(n int) (string, error) {
	return prefixFingerprint(m.path, n)
}

func (m *mappedSource) Encoding() encoding.Tag { return encoding.UTF8 }

func (m *mappedSource) Reopen() (Source, error) {
	m.Close()
	return openMapped(m.path)
}

func (m *mappedSource) Close() error {
	return m.reader.Close()
}

// FilePrefixFingerprint hashes up to n bytes at the start of path,
// independent of any open Source. The watcher uses this to sample a
// file's identity without going through a (possibly stale) session
// byte source.
func FilePrefixFingerprint(path string, n int) (string, error) {
	return prefixFingerprint(path, n)
}

// prefixFingerprint hashes up to n bytes at the start of path. Shared by
// both source implementations so rotation detection is consistent
// regardless of encoding.
func prefixFingerprint(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fingerprint: %w", err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read for fingerprint: %w", err)
	}

	sum := sha256.Sum256(buf[:read])
	return fmt.Sprintf("%x", sum), nil
}
