package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GrantEnvVar carries the typed capability grant into script subprocesses.
// A value inherited from the host is always dropped.
const GrantEnvVar = "GASBOX_GRANT"

// sensitiveEnvPrefixes are environment variable prefixes that are stripped
// from subprocess environments to prevent secret leakage.
// Google credential variables are deliberately absent: the script engine
// needs them to reach Workspace APIs outside the sandbox.
var sensitiveEnvPrefixes = []string{
	"OPENAI_",
	"ANTHROPIC_",
	"AWS_SECRET",
	"AWS_SESSION_TOKEN",
	"GITHUB_TOKEN",
	"GH_TOKEN",
	"GITLAB_TOKEN",
	"NPM_TOKEN",
	"SMTP_PASSWORD",
	"GASBOX_",
}

// sensitiveEnvExact are environment variable names that are stripped exactly.
// DATABASE_URL and DB_PASSWORD are exact-only to avoid over-blocking
// DB_PORT or DATABASE_HOST.
var sensitiveEnvExact = map[string]struct{}{
	"AWS_SECRET_ACCESS_KEY": {},
	"DATABASE_URL":          {},
	"DB_PASSWORD":           {},
	"REDIS_PASSWORD":        {},
}

// SanitizedEnv returns a copy of os.Environ() with sensitive variables
// removed. Names in extraDeny are stripped as well (case-insensitive). If
// store is non-nil, any credential values registered in it are redacted
// from the remaining values.
func SanitizedEnv(store *CredentialStore, extraDeny ...string) []string {
	var secrets []string
	if store != nil {
		secrets = store.Values()
	}
	return sanitizeEnv(os.Environ(), secrets, extraDeny)
}

func sanitizeEnv(env, secrets, extraDeny []string) []string {
	deny := make(map[string]struct{}, len(extraDeny))
	for _, name := range extraDeny {
		deny[strings.ToUpper(strings.TrimSpace(name))] = struct{}{}
	}

	result := make([]string, 0, len(env))
	for _, entry := range env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if isSensitiveEnvVar(key) {
			continue
		}
		if _, denied := deny[strings.ToUpper(key)]; denied {
			continue
		}

		// Secrets shorter than 8 characters are skipped to avoid
		// redacting values like "yes" or "1".
		sanitized := entry
		for _, secret := range secrets {
			if len(secret) >= 8 && strings.Contains(sanitized, secret) {
				sanitized = strings.ReplaceAll(sanitized, secret, RedactPlaceholder)
			}
		}

		result = append(result, sanitized)
	}

	return result
}

// isSensitiveEnvVar checks if an environment variable name matches
// a known sensitive prefix or exact name.
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)

	if _, ok := sensitiveEnvExact[upper]; ok {
		return true
	}

	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}

	return false
}

// ErrRestrictedPath is returned when a configured path points into a
// restricted system tree (/proc, /sys, /dev).
var ErrRestrictedPath = errors.New("access to restricted path is not allowed")

// ValidatePath checks that a filesystem path does not point into /proc,
// /sys or /dev. The path is made absolute and symlinks are followed
// (best-effort) before checking.
func ValidatePath(path string) error {
	cleaned := filepath.Clean(path)
	if abs, err := filepath.Abs(cleaned); err == nil {
		cleaned = abs
	}
	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		cleaned = resolved
	}
	normalized := strings.ToLower(cleaned)

	for _, root := range []string{"/proc", "/sys", "/dev"} {
		if normalized == root || strings.HasPrefix(normalized, root+"/") {
			return fmt.Errorf("%w: %s", ErrRestrictedPath, path)
		}
	}
	return nil
}
