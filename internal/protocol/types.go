// Package protocol implements the wire protocol (spec §6): newline-
// delimited JSON commands read from stdin, responses written to stdout,
// and unsolicited Info/Error/Progress/LinesAdded/FileTruncated records
// interleaved on the same stdout stream. Grounded on
// original_source/RustBackend's services/types.rs enum shapes, rendered
// as single-key Go structs the way bogen85-config's command types use
// tagged JSON objects.
package protocol

import "encoding/json"

// Command is the envelope read from stdin: exactly one of its fields is
// non-nil, mirroring the original's single-variant-tagged-object wire
// shape (spec §6's command table).
type Command struct {
	GetFileEncoding       *GetFileEncodingArgs       `json:"GetFileEncoding,omitempty"`
	OpenFile              *OpenFileArgs              `json:"OpenFile,omitempty"`
	ParseFile             *ParseFileArgs             `json:"ParseFile,omitempty"`
	GetChunk              *GetChunkArgs              `json:"GetChunk,omitempty"`
	Search                *SearchArgs                `json:"Search,omitempty"`
	GetParsingInformation *GetParsingInformationArgs `json:"GetParsingInformation,omitempty"`
	CloseFile             *struct{}                  `json:"CloseFile,omitempty"`
}

type GetFileEncodingArgs struct {
	Path string `json:"path"`
}

type OpenFileArgs struct {
	Path string `json:"path"`
}

type ParseFileArgs struct {
	Pattern    string `json:"pattern,omitempty"`
	NbrColumns *int   `json:"nbr_columns,omitempty"`
	LogFormat  string `json:"log_format,omitempty"`
}

type GetChunkArgs struct {
	StartLine int64 `json:"start_line"`
	EndLine   int64 `json:"end_line"`
}

type SearchArgs struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
	MaxMatches    int    `json:"max_matches,omitempty"`
}

type GetParsingInformationArgs struct {
	SampleLines int64 `json:"sample_lines,omitempty"`
}

// Response is the envelope written to stdout in reply to a Command, and
// also used for the unsolicited LinesAdded/FileTruncated variants the
// watcher posts between command replies.
type Response struct {
	FileEncoding       *FileEncodingResult     `json:"FileEncoding,omitempty"`
	FileOpened         *FileOpenedResult       `json:"FileOpened,omitempty"`
	Chunk              *ChunkResultWire        `json:"Chunk,omitempty"`
	SearchResult       *SearchResultWire       `json:"SearchResult,omitempty"`
	ParsingInformation *ParsingInformationWire `json:"ParsingInformation,omitempty"`
	FileClosed         *struct{}               `json:"FileClosed,omitempty"`
	LinesAdded         *LinesAddedWire         `json:"LinesAdded,omitempty"`
	FileTruncated      *FileTruncatedWire      `json:"FileTruncated,omitempty"`
	Progress           *ProgressWire           `json:"Progress,omitempty"`
	Info               *InfoWire               `json:"Info,omitempty"`
	Error              *ErrorWire              `json:"Error,omitempty"`
}

type FileEncodingResult struct {
	Encoding    string `json:"encoding"`
	IsSupported bool   `json:"is_supported"`
}

type FileOpenedResult struct {
	Path       string `json:"path"`
	Encoding   string `json:"encoding"`
	LineCount  int64  `json:"line_count"`
	ByteLength int64  `json:"byte_length"`
}

type ChunkRowWire struct {
	LineNumber int64    `json:"line_number"`
	Text       string   `json:"text"`
	Columns    []string `json:"columns,omitempty"`
}

type ChunkResultWire struct {
	Rows        []ChunkRowWire `json:"rows"`
	TotalLines  int64          `json:"total_lines"`
	FailedLines []int64        `json:"failed_lines,omitempty"`
}

type MatchWire struct {
	LineNumber int64 `json:"line_number"`
	Column     int   `json:"column"`
	StartIndex int   `json:"start_index"`
	EndIndex   int   `json:"end_index"`
}

type SearchResultWire struct {
	Matches []MatchWire `json:"matches"`
	Capped  bool        `json:"capped"`
}

type ParsingInformationWire struct {
	DetectedFormat string `json:"detected_format"`
	NbrColumns     int    `json:"nbr_columns"`
}

type LinesAddedWire struct {
	OldLineCount int64      `json:"old_line_count"`
	NewLineCount int64      `json:"new_line_count"`
	NewLines     [][]string `json:"new_lines"`
}

type FileTruncatedWire struct {
	NewLineCount int64 `json:"new_line_count"`
}

type ProgressWire struct {
	BytesProcessed int64 `json:"bytes_processed"`
	TotalBytes     int64 `json:"total_bytes"`
}

type InfoWire struct {
	Message string `json:"message"`
}

type ErrorWire struct {
	Message string `json:"message"`
}

// MarshalResponse renders a Response as a single compact JSON line,
// ready to be followed by '\n' on the wire.
func MarshalResponse(r *Response) ([]byte, error) {
	return json.Marshal(r)
}
