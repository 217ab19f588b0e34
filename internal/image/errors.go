package image

import "errors"

var (
	ErrAssemble = errors.New("image assembly failed")
	ErrInit     = errors.New("init binary missing")
)
