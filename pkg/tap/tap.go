// Package tap implements the Observability Tap: a non-blocking per-stage
// event broadcaster that must never back-pressure the pipeline. Every
// publish either lands in a bounded channel or, if full, drops the oldest
// queued event to make room — grounded in the teacher's
// ConnectionManager.Broadcast fire-and-forget-to-many-subscribers discipline,
// adapted from "broadcast to registered connections" to "buffer for one
// internal fan-out goroutine."
package tap

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Stage names the pipeline stage that produced a StageEvent.
type Stage string

const (
	StageIngress    Stage = "ingress"
	StageNormalizer Stage = "normalizer"
	StagePolicy     Stage = "policy"
	StageCommand    Stage = "command"
	StageProjector  Stage = "projector"
	StageSSE        Stage = "sse"
	StageStorage    Stage = "storage"
)

// StageEvent is one observed unit of pipeline work.
type StageEvent struct {
	Timestamp time.Time `json:"ts"`
	Stage     Stage     `json:"stage"`
	TraceID   string    `json:"trace_id"`
	OpID      string    `json:"op_id,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Tenant    string    `json:"tenant"`
	Meta      any       `json:"meta,omitempty"`
	In        string    `json:"in,omitempty"`
	Out       string    `json:"out,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
}

// Sink receives StageEvents forwarded by the Tap's fan-out goroutine —
// typically a debug SSE stream or an in-memory capture buffer (pkg/replay).
type Sink interface {
	Accept(StageEvent)
}

// Tap is the bounded, drop-oldest-when-full StageEvent broadcaster. The zero
// value is not usable; construct with New.
type Tap struct {
	events chan StageEvent
	mu     sync.RWMutex
	sinks  map[string]Sink
	done   chan struct{}
	once   sync.Once
}

// New creates a Tap with the given channel capacity and starts its fan-out
// goroutine. Capacity bounds how many StageEvents may be queued before
// Publish starts dropping the oldest to admit the newest.
func New(capacity int) *Tap {
	t := &Tap{
		events: make(chan StageEvent, capacity),
		sinks:  make(map[string]Sink),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// AddSink registers a named sink. Re-registering a name replaces it.
func (t *Tap) AddSink(name string, sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks[name] = sink
}

// RemoveSink unregisters a named sink.
func (t *Tap) RemoveSink(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sinks, name)
}

// Publish is fire-and-forget: it never blocks the caller. If the internal
// buffer is full, the oldest queued event is dropped to admit ev. In, Out,
// and Meta are redacted and user ids masked before anything reaches a sink.
func (t *Tap) Publish(ev StageEvent) {
	if in, truncated := Truncate(MaskUserIDsInJSON(RedactSecrets(ev.In))); truncated {
		ev.In = in
		ev.Truncated = true
	} else {
		ev.In = in
	}
	if out, truncated := Truncate(MaskUserIDsInJSON(RedactSecrets(ev.Out))); truncated {
		ev.Out = out
		ev.Truncated = true
	} else {
		ev.Out = out
	}
	if ev.Meta != nil {
		if b, err := json.Marshal(ev.Meta); err == nil {
			ev.Meta = json.RawMessage(MaskUserIDsInJSON(RedactSecrets(string(b))))
		}
	}

	select {
	case t.events <- ev:
		return
	default:
	}

	select {
	case <-t.events:
	default:
	}
	select {
	case t.events <- ev:
	default:
		slog.Warn("tap: dropped event, buffer contended", "stage", ev.Stage, "tenant", ev.Tenant)
	}
}

// PublishJSON marshals payload to JSON for the In/Out field, swallowing
// marshal errors into a placeholder rather than ever failing the caller's
// own operation over an observability concern.
func PublishJSON(t *Tap, ev StageEvent, in, out any) {
	if in != nil {
		if b, err := json.Marshal(in); err == nil {
			ev.In = string(b)
		} else {
			ev.In = "<unmarshalable>"
		}
	}
	if out != nil {
		if b, err := json.Marshal(out); err == nil {
			ev.Out = string(b)
		} else {
			ev.Out = "<unmarshalable>"
		}
	}
	t.Publish(ev)
}

func (t *Tap) run() {
	for {
		select {
		case ev := <-t.events:
			t.mu.RLock()
			sinks := make([]Sink, 0, len(t.sinks))
			for _, s := range t.sinks {
				sinks = append(sinks, s)
			}
			t.mu.RUnlock()
			for _, s := range sinks {
				s.Accept(ev)
			}
		case <-t.done:
			return
		}
	}
}

// Close stops the fan-out goroutine. Safe to call more than once.
func (t *Tap) Close() {
	t.once.Do(func() { close(t.done) })
}
