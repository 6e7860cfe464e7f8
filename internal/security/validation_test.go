package security

import (
	"errors"
	"strings"
	"testing"
)

func nested(depth int) string {
	return strings.Repeat(`{"a":`, depth) + "1" + strings.Repeat("}", depth)
}

func TestValidateArgs(t *testing.T) {
	t.Parallel()

	script := `{"gas_script":"DriveApp.createFile('x', 'y')","gas_fakes_args":{"sandbox":true,"whitelistItems":["id1"]}}`

	tests := []struct {
		name    string
		args    string
		limits  ArgLimits
		wantErr error
	}{
		{"run_script call", script, ArgLimits{}, nil},
		{"empty", "", ArgLimits{}, nil},
		{"at size limit", `"12345678"`, ArgLimits{MaxBytes: 10}, nil},
		{"over size limit", `"123456789"`, ArgLimits{MaxBytes: 10}, ErrArgsTooLarge},
		{"default size limit", `"` + strings.Repeat("x", DefaultMaxArgsSize) + `"`, ArgLimits{}, ErrArgsTooLarge},
		{"depth at limit", script, ArgLimits{MaxDepth: 3}, nil},
		{"depth over limit", script, ArgLimits{MaxDepth: 2}, ErrJSONTooDeep},
		{"arrays count as depth", `[[[1]]]`, ArgLimits{MaxDepth: 2}, ErrJSONTooDeep},
		{"default depth limit", nested(DefaultMaxJSONDepth + 1), ArgLimits{}, ErrJSONTooDeep},
		{"deep but allowed", nested(DefaultMaxJSONDepth), ArgLimits{}, nil},
		{"malformed", `{"gas_script":]`, ArgLimits{}, ErrInvalidJSON},
		{"truncated", `{"gas_script":"x"`, ArgLimits{}, ErrInvalidJSON},
		{"size checked before syntax", `{"gas_script":]`, ArgLimits{MaxBytes: 4}, ErrArgsTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateArgs([]byte(tt.args), tt.limits); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateArgs(%.40q) = %v, want %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

func BenchmarkValidateJSONDepth(b *testing.B) {
	data := []byte(`{"gas_script": "DriveApp.getFiles()", "gas_fakes_args": {"sandbox": true, "whitelistItems": ["a", "b"]}}`)
	for b.Loop() {
		_ = ValidateJSONDepth(data, DefaultMaxJSONDepth)
	}
}
