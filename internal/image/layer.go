package image

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruciblehq/ingot/internal/paths"
	"github.com/cruciblehq/ingot/internal/resolve"
	"github.com/cruciblehq/ingot/internal/staging"
)

// Timestamp applied to every archive entry. Layer digests must depend on
// content alone, never on when the assembly ran.
var epoch = time.Unix(0, 0)

// Emits deterministic tar entries: fixed timestamps, root ownership, and
// parent directories created exactly once, so identical inputs always
// produce identical bytes.
type layerWriter struct {
	tw   *tar.Writer
	dirs map[string]bool // Directory entries already emitted.
}

// Creates a new [layerWriter] wrapping the given tar writer.
func newLayerWriter(tw *tar.Writer) *layerWriter {
	return &layerWriter{tw: tw, dirs: make(map[string]bool)}
}

// Emits a directory entry, creating missing parents first.
func (w *layerWriter) mkdir(name string) error {
	name = strings.TrimSuffix(path.Clean(name), "/")
	if name == "." || name == "/" || w.dirs[name] {
		return nil
	}
	if err := w.mkdir(path.Dir(name)); err != nil {
		return err
	}

	w.dirs[name] = true
	return w.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     int64(paths.DefaultDirMode),
		ModTime:  epoch,
	})
}

// Emits a regular file entry, creating missing parent directories first.
func (w *layerWriter) writeFile(name string, mode os.FileMode, size int64, r io.Reader) error {
	if err := w.mkdir(path.Dir(name)); err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     size,
		ModTime:  epoch,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return err
	}

	_, err := io.Copy(w.tw, r)
	return err
}

// Emits a regular file entry sourced from the host filesystem, overriding
// its mode with the given one.
func (w *layerWriter) writeHostFile(name, hostPath string, mode os.FileMode) error {
	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	return w.writeFile(name, mode, info.Size(), f)
}

// Returns the fill function for the shared artifacts layer: every staged
// binary plus the staging manifest, mounted at the in-image staging root.
//
// Entries are written in the staging area's sorted order with the modes
// the manifest records, so the executable bit survives into the layer and
// the layer digest is stable across assemblies.
func artifactsLayer(area *staging.Area) func(tw *tar.Writer) error {
	return func(tw *tar.Writer) error {
		w := newLayerWriter(tw)
		prefix := strings.TrimPrefix(resolve.DefaultStagingDir, "/")

		for _, e := range area.Entries() {
			mode, err := e.FileMode()
			if err != nil {
				return err
			}
			if err := w.writeHostFile(path.Join(prefix, e.Path), area.ArtifactPath(e), mode); err != nil {
				return err
			}
		}

		manifestPath := filepath.Join(area.Root(), staging.ManifestFilename)
		return w.writeHostFile(path.Join(prefix, staging.ManifestFilename), manifestPath, paths.DefaultFileMode)
	}
}

// Returns the fill function for a per-architecture init layer: the one
// resolver binary that runs as the image entrypoint.
func initLayer(hostPath string) func(tw *tar.Writer) error {
	return func(tw *tar.Writer) error {
		w := newLayerWriter(tw)
		name := strings.TrimPrefix(path.Join(resolve.DefaultInstallDir, initName), "/")
		return w.writeHostFile(name, hostPath, paths.DefaultExecMode)
	}
}
