package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingType      = errors.New("message has no type")
)

// Reserved connection-lifecycle types. These are always critical.
const (
	TypeOpen  = "open"
	TypeClose = "close"
	TypeError = "error"
)

// TypeMessage is the catch-all type every inbound message is mirrored under.
const TypeMessage = "message"

// Server event types.
const (
	TypeConnected             = "connected"
	TypeStatus                = "status"
	TypeTranscription         = "transcription"
	TypeTranscriptionUpdate   = "transcription_update"
	TypeTranscriptionProgress = "transcription_progress"
	TypeDownloadProgress      = "download_progress"
	TypeBatchProgress         = "batch_progress"
)

// Priority decides whether an event may be throttled.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Event is one decoded push message. Type is the payload's own "type" tag,
// Raw the complete JSON object as received.
type Event struct {
	Type       string
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// Decode unmarshals the full payload into v, typically one of the typed
// events below.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// MarshalJSON emits the payload unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return json.Marshal(map[string]string{"type": e.Type})
	}
	return e.Raw, nil
}

// ConnectedEvent is the greeting the server sends right after the upgrade.
type ConnectedEvent struct {
	Type        string `json:"type"`
	State       string `json:"state"`
	ModelLoaded bool   `json:"model_loaded"`
}

// StatusEvent reports a recorder/transcriber state change.
type StatusEvent struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	Recording bool   `json:"recording"`
	Model     string `json:"model,omitempty"`
}

// TranscriptionEvent carries a finished transcription, or an edit to one when
// delivered as transcription_update.
type TranscriptionEvent struct {
	Type         string  `json:"type"`
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	DurationMS   int64   `json:"duration_ms"`
	OriginalText *string `json:"original_text,omitempty"`
	IsAIEnhanced bool    `json:"is_ai_enhanced,omitempty"`
}

// ErrorEvent is either a server-reported error or the synthetic transport
// error.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TranscriptionProgressEvent is a partial update for a long transcription.
type TranscriptionProgressEvent struct {
	Type            string `json:"type"`
	CurrentChunk    int    `json:"current_chunk"`
	TotalChunks     int    `json:"total_chunks"`
	ChunkText       string `json:"chunk_text"`
	ProgressPercent int    `json:"progress_percent"`
}

// IsComplete reports whether the last chunk has been processed.
func (e TranscriptionProgressEvent) IsComplete() bool {
	return e.TotalChunks > 0 && e.CurrentChunk >= e.TotalChunks
}

// DownloadProgressEvent is a partial update for a model download.
type DownloadProgressEvent struct {
	Type                      string   `json:"type"`
	DownloadID                string   `json:"download_id"`
	ModelName                 string   `json:"model_name"`
	ModelType                 string   `json:"model_type"`
	DownloadedBytes           int64    `json:"downloaded_bytes"`
	TotalBytes                int64    `json:"total_bytes"`
	ProgressPercent           float64  `json:"progress_percent"`
	Status                    string   `json:"status"` // "pending", "downloading", "completed", "cancelled", "error"
	ErrorMessage              *string  `json:"error_message"`
	ElapsedSeconds            float64  `json:"elapsed_seconds"`
	BytesPerSecond            float64  `json:"bytes_per_second"`
	EstimatedRemainingSeconds *float64 `json:"estimated_remaining_seconds"`
}

// IsTerminal reports whether the download reached a final status. Consumers
// should refetch full state when it does.
func (e DownloadProgressEvent) IsTerminal() bool {
	switch e.Status {
	case "completed", "cancelled", "error":
		return true
	}
	return false
}

// BatchProgressEvent is a partial update for a batch transcription job.
type BatchProgressEvent struct {
	Type         string  `json:"type"`
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	CurrentFile  *string `json:"current_file"`
	CurrentIndex int     `json:"current_index"`
	TotalFiles   int     `json:"total_files"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	FileStatus   string  `json:"file_status,omitempty"`
}

// IsTerminal reports whether the job stopped processing files. A non-empty
// FileStatus also signals a structural change worth a refetch.
func (e BatchProgressEvent) IsTerminal() bool {
	switch e.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
