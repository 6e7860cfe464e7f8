// Package securitytest provides test doubles for the security package.
package securitytest

import (
	"slices"
	"sync"

	"github.com/flemzord/gasbox/internal/security"
)

// NewTestRedactor creates a Redactor with no patterns, so tests using
// strings shaped like real credentials are left untouched.
func NewTestRedactor() *security.Redactor {
	return &security.Redactor{}
}

// NewTestCredentialStore creates a CredentialStore pre-populated with
// the given key-value pairs. Panics if an odd number of args is provided.
func NewTestCredentialStore(kvs ...string) *security.CredentialStore {
	if len(kvs)%2 != 0 {
		panic("securitytest: NewTestCredentialStore requires even number of args (key, value pairs)")
	}
	store := security.NewCredentialStore()
	for i := 0; i < len(kvs); i += 2 {
		store.Set(kvs[i], kvs[i+1])
	}
	return store
}

// NewTestAuditLogger creates an AuditLogger that records events in memory.
// The returned function yields a snapshot of the events logged so far and
// is safe to call concurrently with logging.
func NewTestAuditLogger() (*security.AuditLogger, func() []security.AuditEvent) {
	var (
		mu     sync.Mutex
		events []security.AuditEvent
	)
	logger := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})
	return logger, func() []security.AuditEvent {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(events)
	}
}

// Types returns the event types of events, in order.
func Types(events []security.AuditEvent) []security.EventType {
	out := make([]security.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
