package runner

import (
	"unicode/utf8"
)

// Result is the normalized outcome of one invocation. Text is always plain
// text, including for errors.
type Result struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}

// successResult returns a non-error result.
func successResult(text string) Result {
	return Result{Text: text}
}

// errorResult converts err into an error result carrying its message.
func errorResult(err error) Result {
	return Result{Text: err.Error(), IsError: true}
}

// override makes err take precedence over r. The prior text is kept after a
// blank line so the caller still sees what the script did.
func (r Result) override(err error) Result {
	text := err.Error()
	if r.Text != "" {
		text += "\n\n" + r.Text
	}
	return Result{Text: text, IsError: true}
}

// maxAuditDetailLen is the maximum length of audit detail strings.
const maxAuditDetailLen = 1024

// truncateForAudit shortens s to maxAuditDetailLen, walking back to a rune
// boundary so multi-byte characters are never split.
func truncateForAudit(s string) string {
	if len(s) <= maxAuditDetailLen {
		return s
	}
	i := maxAuditDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
