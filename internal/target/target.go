package target

import (
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Describes one supported release architecture.
//
// Every architecture carries three names for the three stages of the
// pipeline: the toolchain triple used to cross-compile, the machine
// identifier a kernel on that architecture reports via uname(2), and the
// OCI platform used when the release image is assembled.
type Target struct {
	Triple   string           // Toolchain target triple (e.g., "aarch64-unknown-linux-musl").
	Machine  string           // Machine identifier from uname(2) (e.g., "aarch64").
	Platform ocispec.Platform // OCI platform for image assembly (e.g., linux/arm64).
}

// The supported architecture set.
//
// The table is closed: lookups for anything outside it fail, and callers
// treat that failure as fatal. Supporting a new architecture means adding
// one row here; the build matrix, the staging area, the image assembler,
// and the runtime resolver all consume the same table.
var All = []Target{
	{
		Triple:   "x86_64-unknown-linux-musl",
		Machine:  "x86_64",
		Platform: ocispec.Platform{OS: "linux", Architecture: "amd64"},
	},
	{
		Triple:   "armv7-unknown-linux-musleabihf",
		Machine:  "armv7l",
		Platform: ocispec.Platform{OS: "linux", Architecture: "arm", Variant: "v7"},
	},
	{
		Triple:   "aarch64-unknown-linux-musl",
		Machine:  "aarch64",
		Platform: ocispec.Platform{OS: "linux", Architecture: "arm64"},
	},
}

// Returns the target with the given toolchain triple.
//
// Returns false when the triple is not in the supported set.
func ByTriple(triple string) (Target, bool) {
	for _, t := range All {
		if t.Triple == triple {
			return t, true
		}
	}
	return Target{}, false
}

// Returns the target with the given machine identifier.
//
// The machine identifier is the string reported by uname(2) on the running
// host. Returns false when the identifier is not in the supported set; there
// is deliberately no fallback row.
func ByMachine(machine string) (Target, bool) {
	for _, t := range All {
		if t.Machine == machine {
			return t, true
		}
	}
	return Target{}, false
}

// Returns the toolchain triples of the given targets, in order.
func Triples(targets []Target) []string {
	triples := make([]string, 0, len(targets))
	for _, t := range targets {
		triples = append(triples, t.Triple)
	}
	return triples
}

// Returns the machine identifiers of the given targets, in order.
func Machines(targets []Target) []string {
	machines := make([]string, 0, len(targets))
	for _, t := range targets {
		machines = append(machines, t.Machine)
	}
	return machines
}
