// Package capability defines the per-invocation capability descriptor: the
// declarative statement of whether a script runs sandboxed and which
// external resources it may write.
package capability

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ArgsField is the tool argument that carries the descriptor for in-process tools.
const ArgsField = "gas_fakes_args"

// Mode is the restriction level a descriptor asks for.
type Mode string

// Mode values, from least to most restrictive.
const (
	ModeUnrestricted Mode = "unrestricted"
	ModeOpen         Mode = "open"
	ModeStrict       Mode = "strict"
)

// Raw holds the caller-facing descriptor fields as they arrive on the wire.
// Pointer fields distinguish "omitted" from an explicit zero value.
type Raw struct {
	Sandbox        *bool    `json:"sandbox,omitempty"`
	WhitelistItems []string `json:"whitelistItems,omitempty"`
}

// Descriptor is a validated capability grant request. It is immutable once
// built; use New or Parse to construct one.
type Descriptor struct {
	sandboxed bool
	writable  []string
}

// Default returns the descriptor used when the caller supplies nothing:
// sandboxed, with no writable resources.
func Default() Descriptor {
	return Descriptor{sandboxed: true}
}

// New validates raw and builds a Descriptor.
// An allow-list combined with an explicit sandbox=false is rejected with
// ErrInvalidDescriptor. Blank ids are rejected; repeated ids are collapsed.
func New(raw Raw) (Descriptor, error) {
	d := Default()
	if raw.Sandbox != nil {
		d.sandboxed = *raw.Sandbox
	}

	if len(raw.WhitelistItems) > 0 && !d.sandboxed {
		return Descriptor{}, fmt.Errorf("%w: whitelistItems require sandbox to be true", ErrInvalidDescriptor)
	}

	seen := make(map[string]struct{}, len(raw.WhitelistItems))
	for i, id := range raw.WhitelistItems {
		id = strings.TrimSpace(id)
		if id == "" {
			return Descriptor{}, fmt.Errorf("%w: whitelistItems[%d] is empty", ErrInvalidDescriptor, i)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		d.writable = append(d.writable, id)
	}
	return d, nil
}

// Parse decodes a JSON object holding the raw descriptor fields.
// Empty input or JSON null yields Default.
func Parse(data json.RawMessage) (Descriptor, error) {
	if len(data) == 0 || string(data) == "null" {
		return Default(), nil
	}
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return New(raw)
}

// FromArgs extracts and parses the descriptor stored under field in a tool
// argument object. A missing field yields Default.
func FromArgs(args json.RawMessage, field string) (Descriptor, error) {
	if len(args) == 0 {
		return Default(), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil {
		return Descriptor{}, fmt.Errorf("%w: arguments are not an object: %v", ErrInvalidDescriptor, err)
	}
	return Parse(obj[field])
}

// Sandboxed reports the caller's sandbox flag after defaults.
func (d Descriptor) Sandboxed() bool { return d.sandboxed }

// WritableIDs returns a copy of the writable resource ids in request order.
func (d Descriptor) WritableIDs() []string {
	if len(d.writable) == 0 {
		return nil
	}
	out := make([]string, len(d.writable))
	copy(out, d.writable)
	return out
}

// Mode returns the restriction level implied by the descriptor. A non-empty
// allow-list always means strict, whatever the sandbox flag says.
func (d Descriptor) Mode() Mode {
	switch {
	case len(d.writable) > 0:
		return ModeStrict
	case d.sandboxed:
		return ModeOpen
	default:
		return ModeUnrestricted
	}
}

// MarshalJSON encodes the typed grant handed to out-of-process engines.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	writable := d.writable
	if writable == nil {
		writable = []string{}
	}
	return json.Marshal(struct {
		Mode     Mode     `json:"mode"`
		Writable []string `json:"writable"`
	}{Mode: d.Mode(), Writable: writable})
}

// String implements fmt.Stringer for logs.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%d writable)", d.Mode(), len(d.writable))
}
