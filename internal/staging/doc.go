// Package staging publishes built artifacts into a keyed staging area.
//
// An [Area] is a plain directory tree with one subdirectory per toolchain
// triple plus a JSON manifest indexing every artifact by triple, machine
// identifier, content digest, size, and permission bits. Because the area
// is just files, it survives any transfer boundary; because the manifest
// records modes and digests explicitly, consumers can restore executable
// bits and detect corruption no matter what the transfer stripped.
//
// Example usage:
//
//	area, err := staging.New("dist/staging", staging.Options{Binary: "app"})
//	if err != nil {
//	    return err
//	}
//
//	for _, t := range targets {
//	    if _, err := area.Stage(t, artifacts[t.Triple]); err != nil {
//	        return err
//	    }
//	}
//
//	if err := area.Verify(targets); err != nil {
//	    return err
//	}
//	if err := area.Commit(); err != nil {
//	    return err
//	}
package staging
