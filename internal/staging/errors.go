package staging

import "errors"

var (
	ErrStage    = errors.New("staging failed")
	ErrManifest = errors.New("staging manifest unreadable")
	ErrVerify   = errors.New("staging verification failed")
)
