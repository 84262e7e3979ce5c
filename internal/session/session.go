// Package session implements the Session entity (spec §3): the state a
// client accumulates by opening a file — its Byte Source, Line Index,
// optional ParseSpec, and watcher bookkeeping. Only one session is open
// at a time (spec §9's single global session), swapped wholesale by
// OpenFile, mirroring original_source/RustBackend's AppState holding a
// single Option<FileSession> behind a mutex.
package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/Marabii/fatfile/internal/bytesource"
	"github.com/Marabii/fatfile/internal/encoding"
	"github.com/Marabii/fatfile/internal/lineindex"
	"github.com/Marabii/fatfile/internal/parsespec"
)

// fingerprintSize is how many leading bytes of the file are hashed to
// detect truncation/rotation, matching the Encoding Probe's read size so
// the same prefix is already warm in the page cache.
const fingerprintSize = 8192

// Session owns everything opened for one file: its encoding, its byte
// source, its line index, and (optionally) a parse spec for column
// extraction. It is safe for concurrent use by the dispatcher's command
// handler and the watcher goroutine.
type Session struct {
	mu sync.RWMutex

	path     string
	encoding encoding.Tag
	source   bytesource.Source
	index    *lineindex.Index
	spec     *parsespec.Spec

	lastLength      int64
	lastFingerprint string
}

// Open builds a new Session for path: it trusts the caller to have
// already probed the encoding (the dispatcher does this once, via
// GetFileEncoding's underlying probe, and reuses the result here rather
// than probing twice).
func Open(path string, enc encoding.Tag) (*Session, error) {
	src, err := bytesource.Open(path, enc)
	if err != nil {
		return nil, fmt.Errorf("open byte source: %w", err)
	}

	idx, err := lineindex.Build(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("build line index: %w", err)
	}

	fp, err := src.PrefixFingerprint(fingerprintSize)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	return &Session{
		path:            path,
		encoding:        enc,
		source:          src,
		index:           idx,
		lastLength:      src.Length(),
		lastFingerprint: fp,
	}, nil
}

// Close releases the session's byte source (and any shadow file it holds).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Close()
}

// Path returns the absolute path this session was opened for.
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Encoding returns the tag this session's byte source was opened as.
func (s *Session) Encoding() encoding.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

// LineCount returns the current number of logical lines.
func (s *Session) LineCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.LineCount()
}

// ByteLength returns the current canonical byte length.
func (s *Session) ByteLength() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source.Length()
}

// SetParseSpec installs or clears (spec=nil) the session's ParseSpec, per
// the ParseFile command of spec §4.3.
func (s *Session) SetParseSpec(spec *parsespec.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = spec
}

// ParseSpec returns the currently installed ParseSpec, or nil.
func (s *Session) ParseSpec() *parsespec.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// Lines returns the decoded text of lines [startLine, endLine), per
// spec §4.4's clamped range contract.
func (s *Session) Lines(startLine, endLine int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lineindex.Lines(s.source, s.index, startLine, endLine)
}

// Source returns the session's byte source, for callers that need direct
// range access alongside the index.
func (s *Session) Source() bytesource.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Index returns the session's line index, for callers that need to
// translate line numbers to byte ranges.
func (s *Session) Index() *lineindex.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// --- watcher.Prober implementation -----------------------------------

// Sample reads the file's current size and prefix fingerprint directly
// off disk, independent of the session's (possibly stale) byte source.
func (s *Session) Sample() (int64, string, error) {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	length, err := statSize(path)
	if err != nil {
		return 0, "", err
	}
	fp, err := bytesource.FilePrefixFingerprint(path, fingerprintSize)
	if err != nil {
		return 0, "", err
	}
	return length, fp, nil
}

// statSize returns the current on-disk size of path.
func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	return info.Size(), nil
}

// LastObserved returns the length/fingerprint recorded at the last
// successful tick or at Open.
func (s *Session) LastObserved() (int64, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLength, s.lastFingerprint
}

// ApplyAppend extends the index incrementally (spec §4.3's append path)
// and updates the watermark, for the watcher's Append classification.
func (s *Session) ApplyAppend(oldLength, newLength int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reopened, err := s.source.Reopen()
	if err != nil {
		return 0, fmt.Errorf("reopen for append: %w", err)
	}
	s.source.Close()
	s.source = reopened

	if err := s.index.Extend(s.source, oldLength, s.source.Length()); err != nil {
		return 0, fmt.Errorf("extend index: %w", err)
	}

	fp, err := s.source.PrefixFingerprint(fingerprintSize)
	if err != nil {
		return 0, fmt.Errorf("refresh fingerprint: %w", err)
	}
	s.lastLength = s.source.Length()
	s.lastFingerprint = fp

	return s.index.LineCount(), nil
}

// ApplyRebuild performs a full reindex (spec §4.3's truncate/rotate path)
// and updates the watermark, for the watcher's Truncate classification.
func (s *Session) ApplyRebuild() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reopened, err := s.source.Reopen()
	if err != nil {
		return 0, fmt.Errorf("reopen for rebuild: %w", err)
	}
	s.source.Close()
	s.source = reopened

	idx, err := lineindex.Rebuild(s.source)
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	s.index = idx

	fp, err := s.source.PrefixFingerprint(fingerprintSize)
	if err != nil {
		return 0, fmt.Errorf("refresh fingerprint: %w", err)
	}
	s.lastLength = s.source.Length()
	s.lastFingerprint = fp

	return s.index.LineCount(), nil
}
