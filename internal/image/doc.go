// Package image assembles the multi-architecture release image.
//
// The image is built as an OCI image layout on disk, with no container
// runtime involved. An index references one manifest per supported
// platform; all manifests share a single artifacts layer carrying every
// architecture's staged binary plus the staging manifest, and each adds
// a per-architecture layer with the resolver binary that runs as the
// entrypoint. At container start the resolver picks the one binary that
// matches the host out of the shared layer.
//
// Layers and blobs are written deterministically, so the index digest is
// a stable function of the staged artifacts and resolver binaries.
//
// Example usage:
//
//	result, err := image.Assemble(image.Options{
//	    Area:    area,
//	    Targets: m.Targets(),
//	    InitDir: "dist/init",
//	    Output:  "dist/image",
//	    Tag:     m.Image.Tag,
//	})
//	if err != nil {
//	    return err
//	}
package image
