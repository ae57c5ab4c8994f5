package invites

import "errors"

var (
	// ErrNotReady means the configured guild or channel has not been
	// resolved yet, or resolution failed at startup.
	ErrNotReady = errors.New("guild or channel not resolved")

	// ErrRoleNotFound means the configured reward role does not exist in
	// the guild.
	ErrRoleNotFound = errors.New("reward role not found")
)
