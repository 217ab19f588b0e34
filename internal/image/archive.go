package image

import (
	"archive/tar"
	"os"
	"path/filepath"
)

// Archives the layout directory as a tar file for transport.
//
// The walk is lexical and entries get the same fixed metadata as layer
// entries, so archiving the same layout twice produces identical bytes.
// Blob files keep their content-addressed names; the archive is just a
// container around the layout, importable by any OCI-aware runtime.
func archiveLayout(layoutDir, archivePath string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(f)
	w := newLayerWriter(tw)

	err = filepath.WalkDir(layoutDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(layoutDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		name := filepath.ToSlash(rel)
		if d.IsDir() {
			return w.mkdir(name)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return w.writeHostFile(name, p, info.Mode().Perm())
	})
	if err != nil {
		tw.Close()
		f.Close()
		return err
	}

	if err := tw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
