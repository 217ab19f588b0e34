package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cruciblehq/ingot/internal/target"
)

func TestParseDefaults(t *testing.T) {
	m, err := Parse([]byte("binary: regexbot\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Matrix) != len(target.All) {
		t.Fatalf("len(matrix) = %d, want %d", len(m.Matrix), len(target.All))
	}
	if m.Toolchain.Name != "cross" {
		t.Errorf("toolchain name = %q, want cross", m.Toolchain.Name)
	}
	if m.Toolchain.Artifact != "target/{triple}/release/{binary}" {
		t.Errorf("artifact template = %q", m.Toolchain.Artifact)
	}
	if m.Output.Dir != "dist" {
		t.Errorf("output dir = %q, want dist", m.Output.Dir)
	}
	if m.Output.Staging != filepath.Join("dist", "staging") {
		t.Errorf("staging dir = %q", m.Output.Staging)
	}
	if m.Image.Tag != "regexbot:latest" {
		t.Errorf("image tag = %q, want regexbot:latest", m.Image.Tag)
	}
}

func TestParseFull(t *testing.T) {
	data := []byte(`
binary: regexbot
version: 2.3.1
matrix:
  - aarch64-unknown-linux-musl
  - x86_64-unknown-linux-musl
toolchain:
  name: cross
  version: 0.2.5
  command: [cross, build, --release, --target, "{triple}"]
  artifact: target/{triple}/release/{binary}
output:
  dir: out
image:
  tag: ghcr.io/example/regexbot:2.3.1
`)

	m, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Matrix) != 2 {
		t.Fatalf("len(matrix) = %d, want 2", len(m.Matrix))
	}
	if m.Matrix[0] != "aarch64-unknown-linux-musl" {
		t.Errorf("matrix[0] = %q", m.Matrix[0])
	}
	if m.ToolchainID() != "cross@0.2.5" {
		t.Errorf("toolchain id = %q, want cross@0.2.5", m.ToolchainID())
	}
	if m.Output.Staging != filepath.Join("out", "staging") {
		t.Errorf("staging dir = %q", m.Output.Staging)
	}
	if m.Image.Tag != "ghcr.io/example/regexbot:2.3.1" {
		t.Errorf("image tag = %q", m.Image.Tag)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{
			name: "missing binary",
			data: "version: 1.0.0\n",
			want: ErrInvalid,
		},
		{
			name: "empty manifest",
			data: "",
			want: ErrInvalid,
		},
		{
			name: "unknown triple",
			data: "binary: app\nmatrix: [riscv64gc-unknown-linux-gnu]\n",
			want: ErrUnknownTriple,
		},
		{
			name: "duplicate triple",
			data: "binary: app\nmatrix: [aarch64-unknown-linux-musl, aarch64-unknown-linux-musl]\n",
			want: ErrInvalid,
		},
		{
			name: "unknown field",
			data: "binary: app\nbinsry: typo\n",
			want: ErrInvalid,
		},
		{
			name: "not yaml",
			data: "{{{",
			want: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCommandExpansion(t *testing.T) {
	m, err := Parse([]byte("binary: regexbot\nversion: 2.3.1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tgt, ok := target.ByTriple("armv7-unknown-linux-musleabihf")
	if !ok {
		t.Fatal("armv7 triple missing from table")
	}

	argv := m.Command(tgt)
	want := []string{"cross", "build", "--release", "--target", "armv7-unknown-linux-musleabihf"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}

	artifact := m.ArtifactPath(tgt)
	wantPath := filepath.Join("target", "armv7-unknown-linux-musleabihf", "release", "regexbot")
	if artifact != wantPath {
		t.Fatalf("artifact = %q, want %q", artifact, wantPath)
	}
}

func TestExpandAllPlaceholders(t *testing.T) {
	m, err := Parse([]byte(`
binary: app
version: 9.9.9
toolchain:
  command: [build.sh, "{triple}", "{machine}", "{binary}", "{version}"]
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tgt, _ := target.ByTriple("x86_64-unknown-linux-musl")
	argv := m.Command(tgt)

	want := []string{"build.sh", "x86_64-unknown-linux-musl", "x86_64", "app", "9.9.9"}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestTargetsOrder(t *testing.T) {
	m, err := Parse([]byte("binary: app\nmatrix: [aarch64-unknown-linux-musl, x86_64-unknown-linux-musl]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	targets := m.Targets()
	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}
	if targets[0].Machine != "aarch64" {
		t.Errorf("targets[0].Machine = %q, want aarch64", targets[0].Machine)
	}
	if targets[1].Machine != "x86_64" {
		t.Errorf("targets[1].Machine = %q, want x86_64", targets[1].Machine)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingot.yaml")
	if err := os.WriteFile(path, []byte("binary: app\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Binary != "app" {
		t.Fatalf("binary = %q, want app", m.Binary)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want %v", err, ErrInvalid)
	}
}
