package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Command verbs understood by the daemon. One JSON line per command, one
// JSON line per response.
const (
	CmdStart      = "start"
	CmdStop       = "stop"
	CmdStatus     = "status"
	CmdList       = "list"
	CmdChunks     = "chunks"
	CmdTranscribe = "transcribe"
	CmdResume     = "resume"
	CmdTranscript = "transcript"
	CmdClear      = "clear"
	CmdExport     = "export"
	CmdPlay       = "play"
	CmdPause      = "pause"
	CmdSeek       = "seek"
	CmdPosition   = "position"
	CmdDelete     = "delete"
	CmdImport     = "import"
	CmdRecover    = "recover"
	CmdPolish     = "polish"
	CmdShutdown   = "shutdown"
)

// Command is a single request line. Only the fields the verb needs are set.
type Command struct {
	Cmd     string  `json:"cmd"`
	ID      string  `json:"id,omitempty"`      // recording id
	Path    string  `json:"path,omitempty"`    // import source file
	Out     string  `json:"out,omitempty"`     // export destination
	Rate    int     `json:"rate,omitempty"`    // export sample rate
	Seconds float64 `json:"seconds,omitempty"` // seek target
	Prompt  string  `json:"prompt,omitempty"`  // polish prompt name
}

// Response is a single reply line. Data carries the verb-specific payload.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Success wraps v as the data payload of an ok response.
func Success(v any) Response {
	if v == nil {
		return Response{OK: true}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Failure(fmt.Errorf("encode response: %w", err))
	}
	return Response{OK: true, Data: data}
}

// Failure turns err into an error response.
func Failure(err error) Response {
	return Response{Error: err.Error()}
}

// Decode unmarshals the data payload into v. A response without data
// decodes to nothing.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// The payload types below are the wire contract between daemon and CLI.
// They mirror internal types on purpose so the socket protocol does not
// shift when internals do.

// CaptureInfo describes the active capture session.
type CaptureInfo struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	ElapsedSecs   float64   `json:"elapsed_secs"`
	SampleRate    int       `json:"sample_rate"`
	SampleCount   int       `json:"sample_count"`
	FlushedCount  int       `json:"flushed_count"`
	ChunksWritten int       `json:"chunks_written"`
}

// PlayInfo describes playback position and state.
type PlayInfo struct {
	RecordingID  string  `json:"recording_id"`
	Playing      bool    `json:"playing"`
	Paused       bool    `json:"paused"`
	PositionSecs float64 `json:"position_secs"`
	DurationSecs float64 `json:"duration_secs"`
	Chunk        int     `json:"chunk"`
	ChunkCount   int     `json:"chunk_count"`
}

// StatusInfo is the status reply.
type StatusInfo struct {
	Version                  string       `json:"version"`
	AudioSource              string       `json:"audio_source"`
	UptimeSecs               float64      `json:"uptime_secs"`
	Recording                *CaptureInfo `json:"recording,omitempty"`
	Playback                 *PlayInfo    `json:"playback,omitempty"`
	IncompleteTranscriptions []string     `json:"incomplete_transcriptions,omitempty"`
}

// RecordingInfo is one row of list output. InProgress marks the active
// capture session, which has no stored row yet.
type RecordingInfo struct {
	ID                      string    `json:"id"`
	Source                  string    `json:"source"`
	CreatedAt               time.Time `json:"created_at"`
	DurationSecs            int64     `json:"duration_secs"`
	SampleRate              int       `json:"sample_rate"`
	Channels                int       `json:"channels"`
	SampleCount             int64     `json:"sample_count"`
	ChunkCount              int       `json:"chunk_count"`
	Recovered               bool      `json:"recovered,omitempty"`
	InProgress              bool      `json:"in_progress,omitempty"`
	HasTranscript           bool      `json:"has_transcript,omitempty"`
	IncompleteTranscription bool      `json:"incomplete_transcription,omitempty"`
}

// ChunkInfo is one row of chunks output.
type ChunkInfo struct {
	ID          string    `json:"id"`
	ChunkNumber int       `json:"chunk_number"`
	CreatedAt   time.Time `json:"created_at"`
	SampleCount int64     `json:"sample_count"`
	SizeBytes   int64     `json:"size_bytes"`
}

// TranscriptInfo is the transcript reply, variants included.
type TranscriptInfo struct {
	ID         string            `json:"id"`
	Transcript string            `json:"transcript"`
	Variants   map[string]string `json:"variants,omitempty"`
}

// TranscribeInfo reports a completed transcription run.
type TranscribeInfo struct {
	ID         string `json:"id"`
	Segments   int    `json:"segments"`
	Transcript string `json:"transcript"`
}

// ExportInfo reports a written WAV file.
type ExportInfo struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	SampleRate int    `json:"sample_rate"`
	Samples    int64  `json:"samples"`
}

// RecoverInfo reports a recovery pass.
type RecoverInfo struct {
	Recovered int `json:"recovered"`
}

// PolishInfo reports a stored transcript variant.
type PolishInfo struct {
	ID      string `json:"id"`
	Prompt  string `json:"prompt"`
	Variant string `json:"variant"`
}

// Client is one connection to the daemon socket. Safe for concurrent use;
// commands are serialized on the connection.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the control socket.
func Connect() (*Client, error) {
	conn, err := Dial()
	if err != nil {
		return nil, fmt.Errorf("daemon not running: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Do sends one command and waits for its response line. Transcription
// commands answer only when the run finishes, so there is no read deadline.
func (c *Client) Do(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("encode command: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("send command: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, fmt.Errorf("daemon closed the connection")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Send dials, issues one command, and closes the connection.
func Send(cmd Command) (Response, error) {
	c, err := Connect()
	if err != nil {
		return Response{}, err
	}
	defer c.Close()
	return c.Do(cmd)
}
