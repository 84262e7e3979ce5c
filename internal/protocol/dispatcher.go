package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Marabii/fatfile/internal/config"
	"github.com/Marabii/fatfile/internal/encoding"
	"github.com/Marabii/fatfile/internal/logging"
	"github.com/Marabii/fatfile/internal/parsespec"
	"github.com/Marabii/fatfile/internal/protocolerr"
	"github.com/Marabii/fatfile/internal/query"
	"github.com/Marabii/fatfile/internal/session"
	"github.com/Marabii/fatfile/internal/watcher"
	"github.com/Marabii/fatfile/pkg/logformat"
)

// Dispatcher reads newline-delimited Commands from a reader, executes
// them against the single global Session (spec §9's "global mutable
// state, one session at a time" design), and writes newline-delimited
// Responses to a writer. It also drains a watcher goroutine's Change
// events and interleaves them onto the same writer as unsolicited
// LinesAdded/FileTruncated records (spec §4.8/§5).
//
// Commands are served strictly in arrival order: dispatch blocks the
// read loop for the duration of each command, including Search, the way
// original_source/RustBackend's single-threaded command actor does.
type Dispatcher struct {
	cfg *config.Config
	out io.Writer
	mu  sync.Mutex // guards writes to out, so watcher events never interleave mid-response

	sessMu      sync.Mutex
	sess        *session.Session
	watchCancel context.CancelFunc

	log *slog.Logger
}

// New creates a Dispatcher that writes responses to out.
func New(cfg *config.Config, out io.Writer) *Dispatcher {
	return &Dispatcher{cfg: cfg, out: out, log: logging.ForComponent(logging.CompProtocol)}
}

// Run reads Commands line by line from in until EOF or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, in io.Reader) error {
	defer d.closeSession()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			d.writeError(protocolerr.New(protocolerr.MalformedCommand, err.Error()))
			continue
		}
		d.dispatch(ctx, &cmd)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// dispatch routes a single command to its handler, which writes one
// final Response (or an Error) for it, per spec §6, possibly preceded by
// Info or Progress records.
func (d *Dispatcher) dispatch(ctx context.Context, cmd *Command) {
	switch {
	case cmd.GetFileEncoding != nil:
		d.handleGetFileEncoding(cmd.GetFileEncoding)
	case cmd.OpenFile != nil:
		d.handleOpenFile(ctx, cmd.OpenFile)
	case cmd.ParseFile != nil:
		d.handleParseFile(cmd.ParseFile)
	case cmd.GetChunk != nil:
		d.handleGetChunk(cmd.GetChunk)
	case cmd.Search != nil:
		d.handleSearch(ctx, cmd.Search)
	case cmd.GetParsingInformation != nil:
		d.handleGetParsingInformation(cmd.GetParsingInformation)
	case cmd.CloseFile != nil:
		d.handleCloseFile()
	default:
		d.writeError(protocolerr.New(protocolerr.MalformedCommand, "command object had no recognized key"))
	}
}

// requireAbsolute enforces spec §7's PathNotAbsolute rule, checked
// before any I/O is attempted.
func requireAbsolute(path string) error {
	if !filepath.IsAbs(path) {
		return protocolerr.New(protocolerr.PathNotAbsolute, path)
	}
	return nil
}

// requireSession enforces spec §4.8's ordering rule: every session-scoped
// command requires an open session.
func (d *Dispatcher) requireSession() (*session.Session, error) {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	if d.sess == nil {
		return nil, protocolerr.New(protocolerr.NoSessionOpen, "no file is open")
	}
	return d.sess, nil
}

func (d *Dispatcher) handleGetFileEncoding(args *GetFileEncodingArgs) {
	if err := requireAbsolute(args.Path); err != nil {
		d.writeError(err)
		return
	}
	result, err := encoding.Probe(args.Path)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.IoError, "probe encoding", err))
		return
	}
	d.write(&Response{FileEncoding: &FileEncodingResult{
		Encoding:    string(result.Encoding),
		IsSupported: result.IsSupported,
	}})
}

func (d *Dispatcher) handleOpenFile(ctx context.Context, args *OpenFileArgs) {
	if err := requireAbsolute(args.Path); err != nil {
		d.writeError(err)
		return
	}

	probed, err := encoding.Probe(args.Path)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.IoError, "probe encoding", err))
		return
	}

	newSess, err := session.Open(args.Path, probed.Encoding)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.IoError, "open file", err))
		return
	}

	d.closeSession()

	d.sessMu.Lock()
	d.sess = newSess
	watchCtx, cancel := context.WithCancel(ctx)
	d.watchCancel = cancel
	d.sessMu.Unlock()

	d.startWatcher(watchCtx, newSess)

	if !probed.IsSupported {
		d.writeInfo(fmt.Sprintf("%s has unsupported encoding %s, treating as %s",
			newSess.Path(), probed.Encoding, encoding.UTF8))
	}

	d.writeInfo(fmt.Sprintf("opened %s (%s, %s lines)",
		newSess.Path(), humanize.Bytes(uint64(newSess.ByteLength())), humanize.Comma(newSess.LineCount())))

	d.write(&Response{FileOpened: &FileOpenedResult{
		Path:       newSess.Path(),
		Encoding:   string(newSess.Encoding()),
		LineCount:  newSess.LineCount(),
		ByteLength: newSess.ByteLength(),
	}})
}

// handleParseFile installs a ParseSpec either from a named built-in
// log_format (its pattern and column count both come from
// pkg/logformat, the way log_format_patterns::get_column_count drives
// the original's parse_file.rs) or from a caller-supplied pattern plus
// an optional nbr_columns, per spec §4.7.
func (d *Dispatcher) handleParseFile(args *ParseFileArgs) {
	sess, err := d.requireSession()
	if err != nil {
		d.writeError(err)
		return
	}

	var (
		re         *regexp.Regexp
		nbrColumns int
		hasColumns bool
		detected   logformat.Format
	)

	if args.LogFormat != "" {
		detected = logformat.Format(args.LogFormat)
		re = logformat.Pattern(detected)
		if re == nil {
			d.writeError(protocolerr.New(protocolerr.InvalidRegex, args.LogFormat))
			return
		}
		nbrColumns = logformat.ColumnCount(detected)
		hasColumns = true
	} else {
		re, err = regexp.Compile(args.Pattern)
		if err != nil {
			d.writeError(protocolerr.Wrap(protocolerr.InvalidRegex, args.Pattern, err))
			return
		}
		detected = logformat.Other
		hasColumns = args.NbrColumns != nil
		if hasColumns {
			nbrColumns = *args.NbrColumns
		}
	}

	spec, err := parsespec.New(re, nbrColumns, hasColumns)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.ColumnCountMismatch, err.Error(), err))
		return
	}

	sess.SetParseSpec(spec)
	d.write(&Response{ParsingInformation: &ParsingInformationWire{
		DetectedFormat: string(detected),
		NbrColumns:     re.NumSubexp(),
	}})
}

func (d *Dispatcher) handleGetChunk(args *GetChunkArgs) {
	sess, err := d.requireSession()
	if err != nil {
		d.writeError(err)
		return
	}

	result, err := query.GetChunk(sess, args.StartLine, args.EndLine)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.IoError, "get chunk", err))
		return
	}

	if len(result.FailedLines) > 0 {
		d.writeInfo(summarizeFailedLines(result.FailedLines))
	}

	rows := make([]ChunkRowWire, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = ChunkRowWire{LineNumber: row.LineNumber, Text: row.Text, Columns: row.Columns}
	}
	d.write(&Response{Chunk: &ChunkResultWire{
		Rows:        rows,
		TotalLines:  result.TotalLines,
		FailedLines: result.FailedLines,
	}})
}

// summarizeFailedLines renders up to 5 failing line numbers plus an
// ellipsis if more failed, the way original_source/RustBackend's
// parse_data.rs reports GetChunk-triggered parse failures (show_errors
// = true; the watcher's live-tail parsing never calls this, matching
// open_file.rs's show_errors = false).
func summarizeFailedLines(failed []int64) string {
	const shown = 5
	n := len(failed)
	if n > shown {
		return fmt.Sprintf("%d lines did not match the installed parse pattern, starting at %v, ...", n, failed[:shown])
	}
	return fmt.Sprintf("%d line(s) did not match the installed parse pattern: %v", n, failed)
}

func (d *Dispatcher) handleSearch(ctx context.Context, args *SearchArgs) {
	sess, err := d.requireSession()
	if err != nil {
		d.writeError(err)
		return
	}

	opts := query.SearchOptions{
		CaseSensitive: args.CaseSensitive,
		MaxMatches:    args.MaxMatches,
		Workers:       d.cfg.Search.Workers,
		ProgressEvery: time.Duration(d.cfg.Search.ProgressMinIntervalMs) * time.Millisecond,
	}
	if opts.MaxMatches <= 0 {
		opts.MaxMatches = d.cfg.Search.MaxMatches
	}

	result, err := query.Search(ctx, sess, args.Pattern, opts, func(p query.Progress) {
		d.write(&Response{Progress: &ProgressWire{BytesProcessed: p.BytesProcessed, TotalBytes: p.TotalBytes}})
	})
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.InvalidRegex, args.Pattern, err))
		return
	}

	matches := make([]MatchWire, len(result.Matches))
	for i, m := range result.Matches {
		matches[i] = MatchWire{LineNumber: m.LineNumber, Column: m.Column, StartIndex: m.StartIndex, EndIndex: m.EndIndex}
	}
	d.write(&Response{SearchResult: &SearchResultWire{Matches: matches, Capped: result.Capped}})
}

func (d *Dispatcher) handleGetParsingInformation(args *GetParsingInformationArgs) {
	sess, err := d.requireSession()
	if err != nil {
		d.writeError(err)
		return
	}

	sampleLines := args.SampleLines
	if sampleLines <= 0 {
		sampleLines = 200
	}
	end := sampleLines
	if total := sess.LineCount(); end > total {
		end = total
	}
	lines, err := sess.Lines(0, end)
	if err != nil {
		d.writeError(protocolerr.Wrap(protocolerr.IoError, "sample lines", err))
		return
	}

	format := logformat.DetectSample(lines)
	d.write(&Response{ParsingInformation: &ParsingInformationWire{
		DetectedFormat: string(format),
		NbrColumns:     logformat.ColumnCount(format),
	}})
}

func (d *Dispatcher) handleCloseFile() {
	if _, err := d.requireSession(); err != nil {
		d.writeError(err)
		return
	}
	d.closeSession()
	d.write(&Response{FileClosed: &struct{}{}})
}

// closeSession stops the watcher and releases the current session, if
// any. Safe to call when no session is open.
func (d *Dispatcher) closeSession() {
	d.sessMu.Lock()
	sess := d.sess
	cancel := d.watchCancel
	d.sess = nil
	d.watchCancel = nil
	d.sessMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			d.log.Warn("close_session_failed", slog.String("error", err.Error()))
		}
	}
}

// startWatcher launches the File Watcher goroutine for a freshly-opened
// session and pumps its Change/Error channels onto the wire as
// unsolicited LinesAdded/FileTruncated/Info records until ctx is done.
func (d *Dispatcher) startWatcher(ctx context.Context, sess *session.Session) {
	poll := time.Duration(d.cfg.Watcher.PollIntervalMs) * time.Millisecond
	debounce := time.Duration(d.cfg.Watcher.DebounceMs) * time.Millisecond
	w := watcher.New(sess, poll, debounce)

	go w.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-w.Events():
				if !ok {
					return
				}
				d.emitChange(change)
			case err, ok := <-w.Errors():
				if !ok {
					continue
				}
				d.writeInfo(fmt.Sprintf("watcher: %v", err))
			}
		}
	}()
}

func (d *Dispatcher) emitChange(c watcher.Change) {
	switch c.Kind {
	case watcher.Append:
		d.write(&Response{LinesAdded: &LinesAddedWire{
			OldLineCount: c.OldLineCount,
			NewLineCount: c.NewLineCount,
			NewLines:     d.materializeAppendedLines(c.OldLineCount, c.NewLineCount),
		}})
	case watcher.Truncate:
		d.write(&Response{FileTruncated: &FileTruncatedWire{NewLineCount: c.NewLineCount}})
	}
}

// materializeAppendedLines decodes and, if a ParseSpec is installed,
// parses the lines that just appeared on disk, for the LinesAdded
// event's new_lines payload (spec §4.3/§6). Parse failures are never
// reported here: open_file.rs's watcher path runs with show_errors =
// false, but it still ships the parsed (or raw-fallback) rows rather
// than omitting them.
func (d *Dispatcher) materializeAppendedLines(oldLineCount, newLineCount int64) [][]string {
	d.sessMu.Lock()
	sess := d.sess
	d.sessMu.Unlock()
	if sess == nil {
		return nil
	}

	lines, err := sess.Lines(oldLineCount, newLineCount)
	if err != nil {
		d.log.Warn("materialize_appended_lines_failed", slog.String("error", err.Error()))
		return nil
	}

	rows, _ := parsespec.ApplyBatch(sess.ParseSpec(), lines, oldLineCount)
	return rows
}

// write marshals and writes a Response line, serialized against any
// concurrent watcher-driven write so lines on stdout are never interleaved
// mid-record.
func (d *Dispatcher) write(r *Response) {
	data, err := MarshalResponse(r)
	if err != nil {
		d.log.Error("marshal_response_failed", slog.String("error", err.Error()))
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out.Write(data)
	d.out.Write([]byte("\n"))
}

func (d *Dispatcher) writeInfo(msg string) {
	d.write(&Response{Info: &InfoWire{Message: msg}})
}

func (d *Dispatcher) writeError(err error) {
	var message string
	if pe, ok := err.(*protocolerr.Error); ok {
		message = pe.Message()
	} else {
		message = err.Error()
	}
	d.write(&Response{Error: &ErrorWire{Message: message}})
	d.log.Warn("command_error", slog.String("message", message))
}
