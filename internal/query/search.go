package query

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Marabii/fatfile/internal/parsespec"
	"github.com/Marabii/fatfile/internal/session"
)

// Match is one hit reported by Search (spec §4.5/§6). Column is 0 when
// no ParseSpec is installed and the match was found against the raw
// line text (treated as a single synthesized column); otherwise it is
// the 0-based index of the parsed column the match fell in.
type Match struct {
	LineNumber int64
	Column     int
	StartIndex int
	EndIndex   int
}

// Progress is an unsolicited throttled update emitted while a Search is
// still running, per spec §4.5's "~5% increments, at most 10/s" rule.
type Progress struct {
	BytesProcessed int64
	TotalBytes     int64
}

// SearchResult is Search's final response payload.
type SearchResult struct {
	Matches   []Match
	Capped    bool
	ScannedTo int64
}

// SearchOptions configures a Search run; Workers<=0 means GOMAXPROCS,
// MaxMatches<=0 means the spec default of 1000 (SPEC_FULL.md §A.1/§B).
type SearchOptions struct {
	CaseSensitive bool
	MaxMatches    int
	Workers       int
	ProgressEvery time.Duration
}

// Search scans every line of sess for matches of pattern, fanning work
// out across SearchOptions.Workers goroutines partitioned by line range
// (a newline-snapped partition, since partitions fall on line
// boundaries by construction), capping the result at MaxMatches and
// emitting throttled Progress callbacks. It is grounded on
// original_source/RustBackend's search.rs rayon-based parallel scan,
// translated to golang.org/x/sync/errgroup fan-out.
func Search(ctx context.Context, sess *session.Session, pattern string, opts SearchOptions, onProgress func(Progress)) (*SearchResult, error) {
	re, err := compilePattern(pattern, opts.CaseSensitive)
	if err != nil {
		return nil, err
	}

	maxMatches := opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = 1000
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 100 * time.Millisecond
	}

	totalLines := sess.LineCount()
	totalBytes := sess.ByteLength()
	if totalLines == 0 {
		return &SearchResult{}, nil
	}
	if workers > int(totalLines) {
		workers = int(totalLines)
	}

	partitions := partitionLines(totalLines, workers)
	spec := sess.ParseSpec()

	var (
		matchCount     atomic.Int64
		bytesProcessed atomic.Int64
		lastReported   atomic.Int64
	)
	limiter := rate.NewLimiter(rate.Every(progressEvery), 1)
	progressStep := totalBytes / 20 // ~5% increments
	if progressStep <= 0 {
		progressStep = 1
	}

	resultsCh := make(chan []Match, workers)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range partitions {
		p := p
		g.Go(func() error {
			found, scanned, err := searchPartition(gctx, sess, spec, re, p, &matchCount, int64(maxMatches))
			if err != nil {
				return err
			}
			bp := bytesProcessed.Add(scanned)
			if bp-lastReported.Load() >= progressStep && limiter.Allow() {
				lastReported.Store(bp)
				if onProgress != nil {
					onProgress(Progress{BytesProcessed: bp, TotalBytes: totalBytes})
				}
			}
			resultsCh <- found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	close(resultsCh)

	var all []Match
	for m := range resultsCh {
		all = append(all, m...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].LineNumber != all[j].LineNumber {
			return all[i].LineNumber < all[j].LineNumber
		}
		if all[i].Column != all[j].Column {
			return all[i].Column < all[j].Column
		}
		return all[i].StartIndex < all[j].StartIndex
	})

	// capped reflects the saturated match count, not the truncated slice
	// length: every worker stops appending once matchCount reaches
	// maxMatches, so len(all) alone would never exceed it. The original
	// reports search_complete = false once nbr_matches >= MAX_RESULTS
	// (search.rs), so mirror that with the shared atomic counter.
	capped := matchCount.Load() >= int64(maxMatches)
	if int64(len(all)) > int64(maxMatches) {
		all = all[:maxMatches]
	}

	return &SearchResult{Matches: all, Capped: capped, ScannedTo: bytesProcessed.Load()}, nil
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return re, nil
}

type linePartition struct {
	startLine int64
	endLine   int64
}

// partitionLines splits [0, totalLines) into up to workers contiguous,
// roughly-equal line ranges. Because every boundary is a line number,
// every partition starts and ends on a newline, satisfying the
// newline-snapped partitioning spec §4.5 requires without needing a
// separate byte-offset search.
func partitionLines(totalLines int64, workers int) []linePartition {
	if workers < 1 {
		workers = 1
	}
	size := (totalLines + int64(workers) - 1) / int64(workers)
	if size == 0 {
		size = 1
	}

	var parts []linePartition
	var start int64
	for start < totalLines {
		end := start + size
		if end > totalLines {
			end = totalLines
		}
		parts = append(parts, linePartition{startLine: start, endLine: end})
		start = end
	}
	// Merge a trailing short partition into the previous one so workers
	// doesn't silently produce more partitions than requested.
	if len(parts) > workers {
		last := parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		parts[len(parts)-1].endLine = last.endLine
	}
	return parts
}

// searchPartition scans lines [p.startLine, p.endLine), stopping early
// once the shared match cap is reached. It returns the matches found and
// the number of bytes it scanned, for progress accounting.
func searchPartition(ctx context.Context, sess *session.Session, spec *parsespec.Spec, re *regexp.Regexp, p linePartition, matchCount *atomic.Int64, maxMatches int64) ([]Match, int64, error) {
	lines, err := sess.Lines(p.startLine, p.endLine)
	if err != nil {
		return nil, 0, fmt.Errorf("read partition [%d,%d): %w", p.startLine, p.endLine, err)
	}

	var scanned int64
	var found []Match

	for i, text := range lines {
		select {
		case <-ctx.Done():
			return found, scanned, ctx.Err()
		default:
		}

		if matchCount.Load() >= maxMatches {
			break
		}
		lineNo := p.startLine + int64(i)
		scanned += int64(len(text)) + 1

		if spec != nil {
			cols, _ := parsespec.Apply(spec, text)
			for colIdx, col := range cols {
				for _, loc := range re.FindAllStringIndex(col, -1) {
					if matchCount.Add(1) > maxMatches {
						return found, scanned, nil
					}
					found = append(found, Match{
						LineNumber: lineNo,
						Column:     colIdx,
						StartIndex: loc[0],
						EndIndex:   loc[1],
					})
				}
			}
			continue
		}

		for _, loc := range re.FindAllStringIndex(text, -1) {
			if matchCount.Add(1) > maxMatches {
				return found, scanned, nil
			}
			found = append(found, Match{
				LineNumber: lineNo,
				Column:     0,
				StartIndex: loc[0],
				EndIndex:   loc[1],
			})
		}
	}

	return found, scanned, nil
}
