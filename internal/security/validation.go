package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Argument limits applied before schema validation.
const (
	DefaultMaxArgsSize  = 512 << 10 // 512 KiB, room for a long script
	DefaultMaxJSONDepth = 32
)

// Validation errors.
var (
	ErrArgsTooLarge = errors.New("arguments exceed maximum size")
	ErrJSONTooDeep  = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// ArgLimits bounds raw tool arguments. Zero fields use the defaults.
type ArgLimits struct {
	MaxBytes int `yaml:"max_bytes"`
	MaxDepth int `yaml:"max_depth"`
}

// ValidateArgs applies both the size and the depth limit to raw arguments.
func ValidateArgs(data []byte, limits ArgLimits) error {
	if err := ValidateArgsSize(data, limits.MaxBytes); err != nil {
		return err
	}
	return ValidateJSONDepth(data, limits.MaxDepth)
}

// ValidateArgsSize checks that data does not exceed limit bytes.
// If limit is <= 0, DefaultMaxArgsSize is used.
func ValidateArgsSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxArgsSize
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrArgsTooLarge, len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks that the JSON in data does not nest deeper
// than limit levels. It walks tokens without building values, so hostile
// input cannot exhaust the stack. If limit is <= 0, DefaultMaxJSONDepth
// is used.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if depth != 0 {
					return fmt.Errorf("%w: unexpected end of input", ErrInvalidJSON)
				}
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
