// Package resolve selects and installs the release binary that matches
// the architecture of the machine it runs on.
//
// A release image carries one staged binary per supported architecture
// plus the staging manifest describing them. At container start the
// resolver reads the host's machine identifier, maps it through the
// architecture table, verifies the matching artifact against the
// manifest, and installs it at the canonical path. Hosts outside the
// table fail before anything is written.
//
// Example usage:
//
//	result, err := resolve.Run(resolve.Options{})
//	if err != nil {
//		slog.Error("resolution failed", "error", err)
//		os.Exit(1)
//	}
//	slog.Info("ready", "binary", result.Dest)
package resolve
