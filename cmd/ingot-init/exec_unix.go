//go:build unix

package main

import "golang.org/x/sys/unix"

// Replaces the current process image with the given binary.
//
// Does not return on success: the installed executable takes over the
// process, keeping its PID and inheriting the environment, which is what
// an entrypoint shim must do for signal handling to keep working.
func execBinary(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
