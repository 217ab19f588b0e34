package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cruciblehq/ingot/internal/target"
)

// Default filename of the release manifest, resolved relative to the
// project root.
const DefaultFilename = "ingot.yaml"

// Describes one release: what to build, with which toolchain, for which
// architectures, and where the pipeline writes its outputs.
type Manifest struct {
	Binary    string    `yaml:"binary"`    // Executable name produced by the toolchain.
	Version   string    `yaml:"version"`   // Release version, recorded for provenance.
	Matrix    []string  `yaml:"matrix"`    // Toolchain triples to build. Defaults to the full supported set.
	Toolchain Toolchain `yaml:"toolchain"` // Cross-compilation toolchain invocation.
	Output    Output    `yaml:"output"`    // Pipeline output locations.
	Image     Image     `yaml:"image"`     // Release image parameters.
}

// Describes the external cross-compilation toolchain.
//
// The command and artifact fields are templates: {triple}, {machine},
// {binary}, and {version} are expanded per matrix entry before use.
type Toolchain struct {
	Name     string   `yaml:"name"`     // Toolchain executable (e.g., "cross").
	Version  string   `yaml:"version"`  // Pinned toolchain version, recorded for provenance.
	Command  []string `yaml:"command"`  // Invocation argv template.
	Artifact string   `yaml:"artifact"` // Path template of the produced artifact, relative to the project root.
}

// Describes where the pipeline writes its outputs, relative to the project
// root unless absolute.
type Output struct {
	Dir     string `yaml:"dir"`     // Base output directory.
	Staging string `yaml:"staging"` // Staging area root.
	Init    string `yaml:"init"`    // Directory holding the per-architecture init binaries.
	Logs    string `yaml:"logs"`    // Toolchain log directory. Empty selects the XDG state directory.
}

// Describes the release image.
type Image struct {
	Tag string `yaml:"tag"` // Reference recorded on the image index (e.g., "example/app:1.2.3").
	Dir string `yaml:"dir"` // Directory for the OCI layout and archive.
}

// Reads and validates a release manifest from the given path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return Parse(data)
}

// Parses and validates a release manifest.
//
// Unknown fields are rejected. Missing fields are filled with defaults
// where a default exists; the binary name has no default and must be set.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Fills unset fields with their defaults.
//
// The default matrix is the full supported architecture set. The default
// toolchain invocation follows the cargo convention used by cross and its
// drop-in replacements.
func (m *Manifest) applyDefaults() {
	if len(m.Matrix) == 0 {
		m.Matrix = target.Triples(target.All)
	}
	if m.Toolchain.Name == "" {
		m.Toolchain.Name = "cross"
	}
	if len(m.Toolchain.Command) == 0 {
		m.Toolchain.Command = []string{m.Toolchain.Name, "build", "--release", "--target", "{triple}"}
	}
	if m.Toolchain.Artifact == "" {
		m.Toolchain.Artifact = "target/{triple}/release/{binary}"
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "dist"
	}
	if m.Output.Staging == "" {
		m.Output.Staging = filepath.Join(m.Output.Dir, "staging")
	}
	if m.Output.Init == "" {
		m.Output.Init = filepath.Join(m.Output.Dir, "init")
	}
	if m.Image.Dir == "" {
		m.Image.Dir = filepath.Join(m.Output.Dir, "image")
	}
	if m.Image.Tag == "" && m.Binary != "" {
		version := m.Version
		if version == "" {
			version = "latest"
		}
		m.Image.Tag = m.Binary + ":" + version
	}
}

// Checks the manifest for structural errors.
func (m *Manifest) validate() error {
	if strings.TrimSpace(m.Binary) == "" {
		return fmt.Errorf("%w: binary name is required", ErrInvalid)
	}

	seen := make(map[string]bool, len(m.Matrix))
	for _, triple := range m.Matrix {
		if _, ok := target.ByTriple(triple); !ok {
			return fmt.Errorf("%w: %q (supported: %s)",
				ErrUnknownTriple, triple, strings.Join(target.Triples(target.All), ", "))
		}
		if seen[triple] {
			return fmt.Errorf("%w: duplicate matrix entry %q", ErrInvalid, triple)
		}
		seen[triple] = true
	}

	if len(m.Toolchain.Command) == 0 {
		return fmt.Errorf("%w: toolchain command is empty", ErrInvalid)
	}

	return nil
}

// Returns the matrix as resolved targets, in declaration order.
func (m *Manifest) Targets() []target.Target {
	targets := make([]target.Target, 0, len(m.Matrix))
	for _, triple := range m.Matrix {
		t, ok := target.ByTriple(triple)
		if !ok {
			continue // Unreachable after validate.
		}
		targets = append(targets, t)
	}
	return targets
}

// Returns the toolchain argv for the given target, with template
// placeholders expanded.
func (m *Manifest) Command(t target.Target) []string {
	argv := make([]string, len(m.Toolchain.Command))
	for i, arg := range m.Toolchain.Command {
		argv[i] = m.expand(arg, t)
	}
	return argv
}

// Returns the artifact path the toolchain produces for the given target,
// relative to the project root, with template placeholders expanded.
func (m *Manifest) ArtifactPath(t target.Target) string {
	return filepath.FromSlash(m.expand(m.Toolchain.Artifact, t))
}

// Returns the toolchain identity as "name@version", or just the name when
// no version is pinned.
func (m *Manifest) ToolchainID() string {
	if m.Toolchain.Version == "" {
		return m.Toolchain.Name
	}
	return m.Toolchain.Name + "@" + m.Toolchain.Version
}

// Expands template placeholders for one target.
func (m *Manifest) expand(s string, t target.Target) string {
	r := strings.NewReplacer(
		"{triple}", t.Triple,
		"{machine}", t.Machine,
		"{binary}", m.Binary,
		"{version}", m.Version,
	)
	return r.Replace(s)
}
