package behavior

import "errors"

var (
	// ErrAccessDenied is returned by grant gate checks when the current
	// sandbox mode does not allow the requested access.
	ErrAccessDenied = errors.New("access denied by sandbox")

	// ErrGrantRevoked is returned when a revoked grant is used again.
	ErrGrantRevoked = errors.New("grant already revoked")

	// ErrTrash is returned by Revoke when sandbox-created resources could
	// not be removed. The behavior state is reset regardless.
	ErrTrash = errors.New("trashing sandbox resources failed")
)
