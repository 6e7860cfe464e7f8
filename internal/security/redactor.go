package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|passwd|pass$|key|credential)`)

// Redactor scrubs secrets from log lines, audit events, script output and
// displayed configuration. It knows two kinds of secret: token formats
// matched by pattern and exact values loaded at runtime. It is safe for
// concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string // longest first
}

// NewRedactor returns a Redactor knowing DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern adds a token format.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds an exact secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = sortLiterals(append(r.literals, secret))
}

// SyncCredentials replaces the exact values with those of store.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := sortLiterals(store.Values())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// sortLiterals orders longest first, so a secret that contains another
// one is replaced whole rather than leaving its remainder visible.
func sortLiterals(lits []string) []string {
	slices.SortFunc(lits, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	return slices.Compact(lits)
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap scrubs m in place. Non-empty strings under secret-looking keys
// are replaced outright. Other strings, list items included, go through
// Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		m[k] = r.redactValue(secretKeyPattern.MatchString(k), v)
	}
}

func (r *Redactor) redactValue(secretKey bool, v any) any {
	switch val := v.(type) {
	case string:
		if secretKey && val != "" {
			return RedactPlaceholder
		}
		return r.Redact(val)
	case map[string]any:
		r.RedactMap(val)
	case []any:
		for i, item := range val {
			val[i] = r.redactValue(false, item)
		}
	}
	return v
}

// DefaultPatterns returns the token formats redacted out of the box.
// Google credentials come first since scripts talk to Google APIs.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`ya29\.[0-9A-Za-z_\-]{20,}`),   // OAuth access token
		regexp.MustCompile(`1//[0-9A-Za-z_\-]{20,}`),      // OAuth refresh token
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),      // API key
		regexp.MustCompile(`GOCSPX-[0-9A-Za-z_\-]{20,}`), // OAuth client secret
		regexp.MustCompile(`-----BEGIN (?:RSA )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA )?PRIVATE KEY-----`),
		regexp.MustCompile(`sk-(?:ant-)?[a-zA-Z0-9\-]{20,}`),
		regexp.MustCompile(`(?:ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	}
}
