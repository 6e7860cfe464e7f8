package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const accessToken = "ya29.abcdefghijklmnopqrstuvwxyz"

// logJSON runs fn against a redacting JSON logger and decodes the single
// record it writes.
func logJSON(t *testing.T, r *Redactor, fn func(*slog.Logger)) (string, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	fn(slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil), r)))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return buf.String(), rec
}

type tokenValuer struct{}

func (tokenValuer) LogValue() slog.Value { return slog.StringValue("bearer " + accessToken) }

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("script-secret")

	tests := []struct {
		name    string
		log     func(*slog.Logger)
		visible []string
	}{
		{"message", func(l *slog.Logger) { l.Info("calling with " + accessToken) }, []string{"calling with"}},
		{"string attr", func(l *slog.Logger) { l.Info("run", "output", "got script-secret", "tool", "run_script") }, []string{"run_script"}},
		{"secret key", func(l *slog.Logger) { l.Info("auth", "bearer_token", "plain-looking", "user", "admin") }, []string{"admin"}},
		{"error attr", func(l *slog.Logger) { l.Warn("failed", "error", errors.New("denied for "+accessToken)) }, []string{"denied for"}},
		{"log valuer", func(l *slog.Logger) { l.Info("request", "auth", tokenValuer{}) }, []string{"request"}},
		{"group", func(l *slog.Logger) {
			l.Info("call", slog.Group("args", slog.String("gas_script", "login('script-secret')"), slog.Int("n", 3)))
		}, []string{"login("}},
		{"with attrs", func(l *slog.Logger) { l.With("credential", "abc").Info("bound") }, []string{"bound"}},
		{"with group", func(l *slog.Logger) { l.WithGroup("grant").Info("applied", "item", "script-secret") }, []string{"grant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, _ := logJSON(t, r, tt.log)
			for _, leaked := range []string{accessToken, "script-secret", "plain-looking", `"abc"`} {
				if strings.Contains(out, leaked) {
					t.Errorf("%q leaked: %s", leaked, out)
				}
			}
			for _, want := range tt.visible {
				if !strings.Contains(out, want) {
					t.Errorf("%q missing: %s", want, out)
				}
			}
		})
	}
}

func TestRedactingHandler_KeepsNonSecrets(t *testing.T) {
	t.Parallel()

	_, rec := logJSON(t, NewRedactor(), func(l *slog.Logger) {
		l.Info("tool call finished", "tool", "read_file", "count", 2, "ok", true)
	})
	if rec["msg"] != "tool call finished" || rec["tool"] != "read_file" || rec["count"] != float64(2) || rec["ok"] != true {
		t.Errorf("record = %v", rec)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := NewRedactingHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}), NewRedactor())
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	r := NewRedactor()

	var jsonBuf bytes.Buffer
	NewLogger(&jsonBuf, "JSON", slog.LevelInfo, r).Info("grant applied", "token", accessToken)
	var rec map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &rec); err != nil {
		t.Fatalf("json output not parseable: %v (%s)", err, jsonBuf.String())
	}
	if rec["token"] != RedactPlaceholder {
		t.Errorf("token = %v, want redacted", rec["token"])
	}

	var textBuf bytes.Buffer
	logger := NewLogger(&textBuf, "", slog.LevelWarn, r)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(textBuf.String(), "hidden") || !strings.Contains(textBuf.String(), "level=WARN") {
		t.Errorf("text output = %q", textBuf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
