// Package security provides credential tracking, log and output redaction,
// tool-call rate limiting, argument validation, subprocess environment
// sanitization and the audit trail.
package security

import (
	"os"
	"slices"
	"strings"
	"sync"
)

// CredentialStore is a thread-safe store for secret values known at
// runtime. Its values feed the Redactor and are scrubbed from subprocess
// environments.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[string]string),
	}
}

// Set stores a credential, overwriting any previous value.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = value
}

// Get returns the credential value and true, or "" and false if not found.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// LoadEnv copies the named environment variables into the store. Unset or
// empty variables are skipped. It returns the number of values loaded.
func (s *CredentialStore) LoadEnv(names ...string) int {
	loaded := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			s.Set(name, v)
			loaded++
		}
	}
	return loaded
}

// Names returns a sorted list of all credential names.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Values returns all non-empty credential values. Order is not guaranteed.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.creds))
	for _, v := range s.creds {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
