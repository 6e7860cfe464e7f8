package capability

import "errors"

// ErrInvalidDescriptor is returned when a capability descriptor is malformed
// or self-contradictory.
var ErrInvalidDescriptor = errors.New("invalid capability descriptor")
