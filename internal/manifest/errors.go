package manifest

import "errors"

var (
	ErrInvalid       = errors.New("invalid release manifest")
	ErrUnknownTriple = errors.New("unknown target triple")
)
