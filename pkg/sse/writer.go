package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/broadcastqueue/eventsubd/pkg/domain"
)

// Writer formats Patches as text/event-stream frames and flushes after each
// write so subscribers see patches as soon as they're produced, not buffered
// until the handler returns.
type Writer struct {
	w       io.Writer
	flusher interface{ Flush() }
}

// NewWriter wraps w. flusher may be nil if the underlying ResponseWriter
// doesn't support http.Flusher (tests, pipes).
func NewWriter(w io.Writer, flusher interface{ Flush() }) *Writer {
	return &Writer{w: w, flusher: flusher}
}

// wireEvent is the JSON body of each SSE "data:" line.
type wireEvent struct {
	Tenant  string      `json:"tenant"`
	Version int64       `json:"version"`
	Type    string      `json:"type"`
	At      time.Time   `json:"at"`
	Data    interface{} `json:"data"`
}

// WritePatch emits one SSE frame: "id: <version>\nevent: patch\ndata: <json>\n\n".
// Every patch uses the single "patch" event name regardless of its own
// Type — clients distinguish patches by the "type" field inside the JSON
// body, so a plain addEventListener('patch', ...) sees everything and the
// id field doubles as the client's since_version cursor on reconnect.
func (w *Writer) WritePatch(p domain.Patch) error {
	body, err := json.Marshal(wireEvent{
		Tenant:  p.Tenant,
		Version: p.Version,
		Type:    string(p.Type),
		At:      p.At,
		Data:    p.Data,
	})
	if err != nil {
		return fmt.Errorf("sse: marshal patch: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "id: %d\nevent: patch\ndata: %s\n\n", p.Version, body); err != nil {
		return err
	}
	w.flush()
	return nil
}

// WriteHeartbeat emits a comment-only frame, invisible to EventSource
// listeners but enough to keep intermediaries from closing an idle
// connection.
func (w *Writer) WriteHeartbeat() error {
	if _, err := fmt.Fprint(w.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	w.flush()
	return nil
}

func (w *Writer) flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}
