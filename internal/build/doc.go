// Package build drives the cross-compilation matrix.
//
// The matrix has one leg per target architecture. Each leg invokes the
// external toolchain declared in the release manifest, streams the
// invocation's output to a per-target log file, and validates that the
// declared artifact was actually produced. Legs run concurrently and
// independently: a broken leg fails with an error naming its triple while
// the remaining legs run to completion, so one bad architecture never
// hides the state of the others.
//
// The toolchain is always executed, never reimplemented. Compilation,
// linking, and caching semantics belong to it alone.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    Manifest: m,
//	    Root:     ".",
//	})
//	if err != nil {
//	    return err
//	}
//
//	for triple, artifact := range result.Artifacts {
//	    // ...
//	}
package build
