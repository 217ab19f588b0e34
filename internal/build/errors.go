package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrToolchain           = errors.New("toolchain invocation failed")
	ErrArtifact            = errors.New("artifact missing or unusable")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
