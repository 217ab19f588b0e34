package resolve

import "errors"

var (
	// Returned when the machine identifier has no row in the
	// architecture table.
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// Returned when the identifier maps to a triple but the staging
	// area holds no artifact for it.
	ErrMissingArtifact = errors.New("artifact not staged")

	// Returned when copying the artifact to its destination fails or
	// the copied content does not match the staging manifest.
	ErrCopy = errors.New("install failed")
)
