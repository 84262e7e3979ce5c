package bytesource

import (
	"fmt"
	"io"
	"os"

	textencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Marabii/fatfile/internal/encoding"
)

// transcodedSource materializes a UTF-8 shadow of a UTF-16 file into a
// temp cache file (the way the teacher's slicer and consolidate/writer
// packages stage derived content under os.TempDir), then serves random
// access off that shadow through the same mmap path as ASCII-compatible
// files. This keeps the memory discipline of §5: no whole-file buffer is
// held resident, only the mmap of the shadow.
type transcodedSource struct {
	*mappedSource
	originalPath string
	shadowPath   string
	tag          encoding.Tag
}

func openTranscoded(path string, tag encoding.Tag) (Source, error) {
	shadowPath, err := transcodeToShadow(path, tag)
	if err != nil {
		return nil, err
	}

	mapped, err := openMapped(shadowPath)
	if err != nil {
		os.Remove(shadowPath)
		return nil, err
	}

	return &transcodedSource{
		mappedSource: mapped.(*mappedSource),
		originalPath: path,
		shadowPath:   shadowPath,
		tag:          tag,
	}, nil
}

// transcodeToShadow streams the UTF-16 source through x/text's decoder
// into a freshly created UTF-8 temp file and returns its path.
func transcodeToShadow(path string, tag encoding.Tag) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open utf-16 source: %w", err)
	}
	defer src.Close()

	var dec *textencoding.Decoder
	switch tag {
	case encoding.UTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case encoding.UTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	default:
		return "", fmt.Errorf("unsupported transcoding tag: %s", tag)
	}

	out, err := os.CreateTemp("", "fatfile-shadow-*.utf8")
	if err != nil {
		return "", fmt.Errorf("create shadow file: %w", err)
	}
	defer out.Close()

	reader := transform.NewReader(src, dec)
	if _, err := io.Copy(out, reader); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("transcode to shadow: %w", err)
	}

	return out.Name(), nil
}

func (t *transcodedSource) Encoding() encoding.Tag { return t.tag }

func (t *transcodedSource) PrefixFingerprint(n int) (string, error) {
	// Fingerprint the original file on disk, not the shadow, so rotation
	// of the source is detected even though the shadow itself never
	// changes underneath a live session (append/truncate trigger a
	// full re-transcode via Reopen).
	return prefixFingerprint(t.originalPath, n)
}

func (t *transcodedSource) Reopen() (Source, error) {
	t.Close()
	return openTranscoded(t.originalPath, t.tag)
}

func (t *transcodedSource) Close() error {
	err := t.mappedSource.Close()
	os.Remove(t.shadowPath)
	return err
}
