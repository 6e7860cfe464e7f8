package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Audit event types covering every stage of a tool invocation.
const (
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventGrantApply   EventType = "grant_apply"
	EventGrantRevoke  EventType = "grant_revoke"
	EventScriptRun    EventType = "script_run"
	EventCleanup      EventType = "cleanup"
	EventRateLimit    EventType = "rate_limit"
	EventScratchSweep EventType = "scratch_sweep"
	EventConfigLoad   EventType = "config_load"
	EventAuthSuccess  EventType = "auth_success"
	EventAuthFailure  EventType = "auth_failure"
)

// AuditEvent is a single audit log entry. Results themselves are never
// recorded; Detail carries a truncated preview at most.
type AuditEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	Type         EventType         `json:"type"`
	InvocationID string            `json:"invocation_id,omitempty"`
	ToolName     string            `json:"tool_name,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	Detail       string            `json:"detail,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent and subscribers.
	Writer io.Writer

	// Redactor, if non-nil, is applied to Detail and Metadata values before writing.
	Redactor *Redactor

	// OnEvent, if non-nil, is called for every event (used in tests).
	OnEvent func(AuditEvent)

	// Now overrides time.Now for testing. Defaults to time.Now.
	Now func() time.Time
}

// AuditLogger writes structured audit events as JSONL with optional
// redaction and fans them out to live subscribers.
type AuditLogger struct {
	writer   io.Writer
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
	mu       sync.Mutex

	writeErrors atomic.Int64

	subMu  sync.Mutex
	subs   map[int]chan AuditEvent
	nextID int
}

// NewAuditLogger creates an audit logger with the given configuration.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
		subs:     make(map[int]chan AuditEvent),
	}
}

// Log writes an audit event. The timestamp is set automatically.
// If a Redactor is configured, Detail and Metadata values are redacted.
// The caller's Metadata map is never mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()

	if len(event.Metadata) > 0 {
		event.Metadata = maps.Clone(event.Metadata)
	}

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	// Callback and JSONL share one lock so ordering is consistent.
	l.mu.Lock()
	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		if err := json.NewEncoder(l.writer).Encode(event); err != nil {
			l.writeErrors.Add(1)
		}
	}
	l.mu.Unlock()

	l.publish(event)
}

// WriteErrors returns how many events failed to be written.
func (l *AuditLogger) WriteErrors() int64 {
	return l.writeErrors.Load()
}

// Subscribe registers a live listener. Events are delivered without
// blocking the logger: when the buffer is full the event is dropped for
// that subscriber. The returned cancel function closes the channel.
func (l *AuditLogger) Subscribe(buffer int) (<-chan AuditEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan AuditEvent, buffer)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (l *AuditLogger) Subscribers() int {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	return len(l.subs)
}

func (l *AuditLogger) publish(event AuditEvent) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
