//go:build !unix

package main

import "errors"

// Replacing the process image requires execve, which this platform does
// not provide. Release images are Linux-only, so this path is only ever
// reachable in local development.
func execBinary(path string, argv, env []string) error {
	return errors.New("replacing the process is not supported on this platform")
}
