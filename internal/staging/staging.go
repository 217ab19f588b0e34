package staging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/ingot/internal/paths"
	"github.com/cruciblehq/ingot/internal/target"
)

// Filename of the staging manifest, written at the area root by Commit.
const ManifestFilename = "staging.json"

// Records one staged artifact.
//
// The path is relative to the area root and always slash-separated, so a
// manifest written on one machine resolves identically on another. The
// permission bits are recorded separately from the file because transfer
// boundaries (archive uploads, artifact stores) routinely strip them; the
// manifest is the authority and consumers re-apply the recorded mode.
type Entry struct {
	Triple  string        `json:"triple"`  // Toolchain triple the artifact was built for.
	Machine string        `json:"machine"` // Machine identifier that selects this artifact at runtime.
	Path    string        `json:"path"`    // Artifact path relative to the area root, slash-separated.
	Digest  digest.Digest `json:"digest"`  // Content digest computed while staging.
	Size    int64         `json:"size"`    // Artifact size in bytes.
	Mode    string        `json:"mode"`    // Permission bits in octal (e.g., "0755").
}

// The staging manifest: the explicit index of the area, consumed on the
// far side of the artifact-transfer boundary.
type Manifest struct {
	Binary    string  `json:"binary"`              // Executable name shared by every entry.
	Version   string  `json:"version,omitempty"`   // Release version, for provenance.
	Toolchain string  `json:"toolchain,omitempty"` // Toolchain identity, for provenance.
	Entries   []Entry `json:"entries"`             // Staged artifacts, sorted by triple.
}

// A directory tree of staged artifacts plus the manifest that indexes it.
//
// Artifacts are keyed by toolchain triple and laid out one subdirectory per
// triple, each holding the binary under its fixed name. An area is built by
// the producer with [New], published with [Area.Commit], and reopened by
// consumers with [Load].
type Area struct {
	root     string   // Area root directory.
	manifest Manifest // Index of staged artifacts.
}

// Identifies the release an area belongs to.
type Options struct {
	Binary    string // Executable name shared by every staged artifact.
	Version   string // Release version, recorded for provenance.
	Toolchain string // Toolchain identity (e.g., "cross@0.2.5"), recorded for provenance.
}

// Creates an empty staging area rooted at the given directory.
//
// The directory is created if it does not exist. Entries from a previous
// run are not loaded; staging always starts from an empty index so that a
// narrower matrix cannot inherit stale artifacts.
func New(root string, opts Options) (*Area, error) {
	if opts.Binary == "" {
		return nil, fmt.Errorf("%w: binary name is required", ErrStage)
	}
	if err := os.MkdirAll(root, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStage, err)
	}
	return &Area{
		root: root,
		manifest: Manifest{
			Binary:    opts.Binary,
			Version:   opts.Version,
			Toolchain: opts.Toolchain,
		},
	}, nil
}

// Opens a committed staging area.
func Load(root string) (*Area, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	return &Area{root: root, manifest: m}, nil
}

// Returns the area root directory.
func (a *Area) Root() string {
	return a.root
}

// Returns the executable name shared by every staged artifact.
func (a *Area) Binary() string {
	return a.manifest.Binary
}

// Returns all staged entries sorted by triple.
func (a *Area) Entries() []Entry {
	entries := make([]Entry, len(a.manifest.Entries))
	copy(entries, a.manifest.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Triple < entries[j].Triple })
	return entries
}

// Returns the staged entry for the given toolchain triple.
//
// A miss wraps [errdefs.ErrNotFound]; a mapped machine identifier whose
// artifact was never staged surfaces through exactly this path.
func (a *Area) Entry(triple string) (Entry, error) {
	if e, ok := a.lookup(triple); ok {
		return e, nil
	}
	return Entry{}, fmt.Errorf("artifact for triple %q: %w", triple, errdefs.ErrNotFound)
}

// Returns the absolute path of a staged entry's artifact.
func (a *Area) ArtifactPath(e Entry) string {
	return filepath.Join(a.root, filepath.FromSlash(e.Path))
}

// Copies an artifact into the area under the target's triple.
//
// The content digest is computed during the copy and the source's
// permission bits are recorded and re-applied explicitly, so neither the
// umask nor a later mode-stripping transfer can lose the executable bit.
// Staging the same triple twice wraps [errdefs.ErrAlreadyExists]: an area
// is write-once per key.
func (a *Area) Stage(t target.Target, src string) (Entry, error) {
	if _, ok := a.lookup(t.Triple); ok {
		return Entry{}, fmt.Errorf("artifact for %s: %w", t.Triple, errdefs.ErrAlreadyExists)
	}

	info, err := os.Stat(src)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrStage, err)
	}
	if !info.Mode().IsRegular() {
		return Entry{}, fmt.Errorf("%w: %s is not a regular file", ErrStage, src)
	}
	if info.Size() == 0 {
		return Entry{}, fmt.Errorf("%w: %s is empty", ErrStage, src)
	}

	mode := info.Mode().Perm()
	rel := path.Join(t.Triple, a.manifest.Binary)
	dest := filepath.Join(a.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrStage, err)
	}

	dgst, size, err := copyFile(src, dest, mode)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrStage, err)
	}

	entry := Entry{
		Triple:  t.Triple,
		Machine: t.Machine,
		Path:    rel,
		Digest:  dgst,
		Size:    size,
		Mode:    fmt.Sprintf("%#o", uint32(mode)),
	}
	a.manifest.Entries = append(a.manifest.Entries, entry)

	slog.Info("artifact staged",
		"triple", t.Triple,
		"digest", dgst,
		"size", size,
		"mode", entry.Mode,
	)

	return entry, nil
}

// Writes the staging manifest to the area root.
//
// Commit is the publication point: consumers only ever see an area through
// the manifest, so an uncommitted area is invisible to them. Entries are
// sorted by triple so the manifest bytes are deterministic.
func (a *Area) Commit() error {
	sort.Slice(a.manifest.Entries, func(i, j int) bool {
		return a.manifest.Entries[i].Triple < a.manifest.Entries[j].Triple
	})

	data, err := json.MarshalIndent(a.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStage, err)
	}
	data = append(data, '\n')

	manifestPath := filepath.Join(a.root, ManifestFilename)
	if err := os.WriteFile(manifestPath, data, paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrStage, err)
	}

	slog.Debug("staging manifest written", "path", manifestPath, "entries", len(a.manifest.Entries))
	return nil
}

// Checks that the staged key set matches the declared matrix exactly.
//
// Both directions are violations: a declared triple without an artifact
// means the pipeline lost a build, and a staged triple outside the matrix
// means the area was contaminated by another run.
func (a *Area) Verify(targets []target.Target) error {
	want := make(map[string]bool, len(targets))
	var missing []string
	for _, t := range targets {
		want[t.Triple] = true
		if _, ok := a.lookup(t.Triple); !ok {
			missing = append(missing, t.Triple)
		}
	}

	var extra []string
	for _, e := range a.manifest.Entries {
		if !want[e.Triple] {
			extra = append(extra, e.Triple)
		}
	}

	switch {
	case len(missing) > 0 && len(extra) > 0:
		return fmt.Errorf("%w: missing %v, unexpected %v", ErrVerify, missing, extra)
	case len(missing) > 0:
		return fmt.Errorf("%w: missing %v", ErrVerify, missing)
	case len(extra) > 0:
		return fmt.Errorf("%w: unexpected %v", ErrVerify, extra)
	}

	return nil
}

// Recomputes every entry's content digest and compares it against the
// manifest. Run on the consumer side of a transfer boundary to detect
// corruption or tampering in transit.
func (a *Area) VerifyContent() error {
	for _, e := range a.manifest.Entries {
		dgst, err := digestFile(a.ArtifactPath(e))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrVerify, e.Triple, err)
		}
		if dgst != e.Digest {
			return fmt.Errorf("%w: %s digest mismatch: manifest has %s, disk has %s",
				ErrVerify, e.Triple, e.Digest, dgst)
		}
	}
	return nil
}

// Returns the entry with the given triple.
func (a *Area) lookup(triple string) (Entry, bool) {
	for _, e := range a.manifest.Entries {
		if e.Triple == triple {
			return e, true
		}
	}
	return Entry{}, false
}

// Returns the recorded permission bits as a file mode.
func (e Entry) FileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(e.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad mode %q for %s", ErrManifest, e.Mode, e.Triple)
	}
	return os.FileMode(mode).Perm(), nil
}

// Copies src to dest with the given mode, returning the content digest and
// size. The mode is applied with an explicit chmod because the umask masks
// permission bits at creation time.
func copyFile(src, dest string, mode os.FileMode) (digest.Digest, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return "", 0, err
	}

	digester := digest.SHA256.Digester()
	size, err := io.Copy(io.MultiWriter(out, digester.Hash()), in)
	if err != nil {
		out.Close()
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}

	if err := os.Chmod(dest, mode); err != nil {
		return "", 0, err
	}

	return digester.Digest(), size, nil
}

// Computes the content digest of a file.
func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return digest.FromReader(f)
}
