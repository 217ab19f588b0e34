package resolve

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/ingot/internal/paths"
	"github.com/cruciblehq/ingot/internal/staging"
	"github.com/cruciblehq/ingot/internal/target"
)

const (

	// Default staging area root inside the release image.
	DefaultStagingDir = "/opt/ingot"

	// Directory the resolved executable is installed into.
	DefaultInstallDir = "/usr/local/bin"
)

// Controls architecture resolution.
type Options struct {
	Staging string // Staging area root. Empty uses [DefaultStagingDir].
	Dest    string // Install path for the executable. Empty derives it from the staging manifest.
	Machine string // Machine identifier override. Empty detects the host's.
}

// Returned after successful resolution.
type Result struct {
	Machine string // Machine identifier that was resolved.
	Triple  string // Toolchain triple the identifier mapped to.
	Source  string // Staged artifact that was installed.
	Dest    string // Path the executable was installed at.
}

// Resolves the host architecture and installs the matching staged binary.
//
// The machine identifier is mapped through the closed architecture table.
// An identifier outside the table fails with [ErrUnsupportedArch] before
// anything is written: there is no artifact that could work, so the only
// correct move is to stop. A mapped identifier whose artifact was never
// staged fails with [ErrMissingArtifact], which points at the pipeline
// rather than the host.
//
// The install is an atomic write-then-rename with the content verified
// against the staging manifest, so re-running the resolver is idempotent
// and a torn install can never be observed at the destination.
func Run(opts Options) (*Result, error) {
	machine := opts.Machine
	if machine == "" {
		detected, err := DetectMachine()
		if err != nil {
			return nil, err
		}
		machine = detected
	}

	t, ok := target.ByMachine(machine)
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedArch, machine, strings.Join(target.Machines(target.All), ", "))
	}

	slog.Debug("machine identifier mapped", "machine", machine, "triple", t.Triple)

	root := opts.Staging
	if root == "" {
		root = DefaultStagingDir
	}

	area, err := staging.Load(root)
	if err != nil {
		return nil, err
	}

	entry, err := area.Entry(t.Triple)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s maps to %s but the area at %s has no artifact for it",
				ErrMissingArtifact, machine, t.Triple, root)
		}
		return nil, err
	}

	dest := opts.Dest
	if dest == "" {
		dest = filepath.Join(DefaultInstallDir, area.Binary())
	}

	if err := install(area, entry, dest); err != nil {
		return nil, err
	}

	slog.Info("executable installed",
		"machine", machine,
		"triple", t.Triple,
		"dest", dest,
	)

	return &Result{
		Machine: machine,
		Triple:  t.Triple,
		Source:  area.ArtifactPath(entry),
		Dest:    dest,
	}, nil
}

// Installs a staged artifact at the destination path.
//
// The artifact is copied to a temporary file in the destination directory,
// verified against the manifest digest and size, given the manifest's
// permission bits, and renamed into place. The manifest's mode is applied
// rather than the staged file's, because the staged file may have crossed
// a transfer boundary that stripped its bits.
func install(area *staging.Area, entry staging.Entry, dest string) error {
	mode, err := entry.FileMode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	src, err := os.Open(area.ArtifactPath(entry))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	defer os.Remove(tmp.Name()) // No-op once the rename has happened.

	digester := digest.SHA256.Digester()
	size, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), src)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if size != entry.Size {
		return fmt.Errorf("%w: size mismatch for %s: manifest has %d bytes, copied %d",
			ErrCopy, entry.Triple, entry.Size, size)
	}
	if dgst := digester.Digest(); dgst != entry.Digest {
		return fmt.Errorf("%w: digest mismatch for %s: manifest has %s, copied %s",
			ErrCopy, entry.Triple, entry.Digest, dgst)
	}

	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}
