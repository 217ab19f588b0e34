package image

import (
	"archive/tar"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/ingot/internal/paths"
)

// Writes blobs and the entry-point index of an OCI image layout.
//
// A layout is a plain directory: an oci-layout marker file, a blobs/ tree
// addressed by content digest, and an index.json entry point. Everything
// below index.json is immutable once written, which is what makes the
// layout safe to copy, archive, and re-import anywhere.
type layout struct {
	root string // Layout root directory.
}

// Creates the layout skeleton at the given root.
func newLayout(root string) (*layout, error) {
	blobDir := filepath.Join(root, ocispec.ImageBlobsDir, digest.SHA256.String())
	if err := os.MkdirAll(blobDir, paths.DefaultDirMode); err != nil {
		return nil, err
	}

	marker, err := json.Marshal(ocispec.ImageLayout{Version: ocispec.ImageLayoutVersion})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(root, ocispec.ImageLayoutFile), marker, paths.DefaultFileMode); err != nil {
		return nil, err
	}

	return &layout{root: root}, nil
}

// Serializes a value and writes it to the blob store, returning the
// descriptor that references the stored blob.
func (l *layout) writeBlob(mediaType string, v any) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}

	if err := os.WriteFile(l.blobPath(desc.Digest), b, paths.DefaultFileMode); err != nil {
		return ocispec.Descriptor{}, err
	}

	return desc, nil
}

// Streams a layer into the blob store.
//
// The fill function writes the uncompressed tar stream. The stream is
// digested before compression (the diff ID recorded in the image config)
// and after (the blob's content address), in a single pass through a
// temporary file that is renamed to its content address on success.
func (l *layout) writeLayer(fill func(tw *tar.Writer) error) (ocispec.Descriptor, digest.Digest, error) {
	tmp, err := os.CreateTemp(filepath.Join(l.root, ocispec.ImageBlobsDir), "layer-*")
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}
	defer os.Remove(tmp.Name()) // No-op once the rename has happened.

	blobDigester := digest.SHA256.Digester()
	counter := &countingWriter{w: io.MultiWriter(tmp, blobDigester.Hash())}

	diffDigester := digest.SHA256.Digester()
	gz := gzip.NewWriter(counter)
	tw := tar.NewWriter(io.MultiWriter(gz, diffDigester.Hash()))

	if err := fill(tw); err != nil {
		tmp.Close()
		return ocispec.Descriptor{}, "", err
	}
	if err := tw.Close(); err != nil {
		tmp.Close()
		return ocispec.Descriptor{}, "", err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return ocispec.Descriptor{}, "", err
	}
	if err := tmp.Close(); err != nil {
		return ocispec.Descriptor{}, "", err
	}

	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageLayerGzip,
		Digest:    blobDigester.Digest(),
		Size:      counter.n,
	}

	if err := os.Rename(tmp.Name(), l.blobPath(desc.Digest)); err != nil {
		return ocispec.Descriptor{}, "", err
	}

	return desc, diffDigester.Digest(), nil
}

// Writes the layout's entry-point index.
func (l *layout) writeIndex(idx ocispec.Index) error {
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.root, ocispec.ImageIndexFile), b, paths.DefaultFileMode)
}

// Returns the path of a blob within the layout.
func (l *layout) blobPath(dgst digest.Digest) string {
	return filepath.Join(l.root, ocispec.ImageBlobsDir, dgst.Algorithm().String(), dgst.Encoded())
}

// Counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
