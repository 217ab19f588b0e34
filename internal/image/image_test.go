package image

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/ingot/internal/staging"
	"github.com/cruciblehq/ingot/internal/target"
)

// Builds a committed staging area with one artifact per target.
func buildArea(t *testing.T, targets []target.Target) *staging.Area {
	t.Helper()

	area, err := staging.New(filepath.Join(t.TempDir(), "staging"), staging.Options{
		Binary:    "crux",
		Version:   "1.2.3",
		Toolchain: "cross@0.2.5",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srcDir := t.TempDir()
	for _, tgt := range targets {
		src := filepath.Join(srcDir, tgt.Triple)
		if err := os.WriteFile(src, []byte("#!binary for "+tgt.Triple+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
		if _, err := area.Stage(tgt, src); err != nil {
			t.Fatalf("Stage(%s) error = %v", tgt.Triple, err)
		}
	}
	if err := area.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return area
}

// Writes one fake resolver binary per target into a fresh directory.
func writeInitBinaries(t *testing.T, targets []target.Target) string {
	t.Helper()

	dir := t.TempDir()
	for _, tgt := range targets {
		name := filepath.Join(dir, "ingot-init-"+tgt.Machine)
		if err := os.WriteFile(name, []byte("#!resolver for "+tgt.Machine+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func assemble(t *testing.T, targets []target.Target) *Result {
	t.Helper()

	result, err := Assemble(Options{
		Area:    buildArea(t, targets),
		Targets: targets,
		InitDir: writeInitBinaries(t, targets),
		Output:  t.TempDir(),
		Tag:     "example/crux:1.2.3",
	})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return result
}

func readBlob(t *testing.T, layoutDir string, dgst digest.Digest) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(layoutDir, "blobs", dgst.Algorithm().String(), dgst.Encoded()))
	if err != nil {
		t.Fatalf("reading blob %s: %v", dgst, err)
	}
	if got := digest.FromBytes(data); got != dgst {
		t.Fatalf("blob %s hashes to %s", dgst, got)
	}
	return data
}

// Decompresses a gzipped layer blob and lists its entries by name.
func readLayer(t *testing.T, layoutDir string, desc ocispec.Descriptor) (digest.Digest, map[string]*tar.Header, map[string][]byte) {
	t.Helper()

	f, err := os.Open(filepath.Join(layoutDir, "blobs", desc.Digest.Algorithm().String(), desc.Digest.Encoded()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("layer %s is not gzipped: %v", desc.Digest, err)
	}

	diffDigester := digest.SHA256.Digester()
	tr := tar.NewReader(io.TeeReader(gz, diffDigester.Hash()))

	headers := make(map[string]*tar.Header)
	contents := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading layer tar: %v", err)
		}
		headers[hdr.Name] = hdr
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatal(err)
			}
			contents[hdr.Name] = data
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return diffDigester.Digest(), headers, contents
}

func TestAssembleLayoutStructure(t *testing.T) {
	result := assemble(t, target.All)

	marker, err := os.ReadFile(filepath.Join(result.Layout, ocispec.ImageLayoutFile))
	if err != nil {
		t.Fatalf("layout marker: %v", err)
	}
	var layoutFile ocispec.ImageLayout
	if err := json.Unmarshal(marker, &layoutFile); err != nil {
		t.Fatal(err)
	}
	if layoutFile.Version != ocispec.ImageLayoutVersion {
		t.Errorf("layout version = %q, want %q", layoutFile.Version, ocispec.ImageLayoutVersion)
	}

	rootData, err := os.ReadFile(filepath.Join(result.Layout, ocispec.ImageIndexFile))
	if err != nil {
		t.Fatal(err)
	}
	var root ocispec.Index
	if err := json.Unmarshal(rootData, &root); err != nil {
		t.Fatal(err)
	}
	if len(root.Manifests) != 1 {
		t.Fatalf("root index has %d descriptors, want 1", len(root.Manifests))
	}

	entry := root.Manifests[0]
	if entry.Digest != result.Digest {
		t.Errorf("root index points at %s, result digest is %s", entry.Digest, result.Digest)
	}
	if got := entry.Annotations[ocispec.AnnotationRefName]; got != "example/crux:1.2.3" {
		t.Errorf("ref annotation = %q, want %q", got, "example/crux:1.2.3")
	}

	var index ocispec.Index
	if err := json.Unmarshal(readBlob(t, result.Layout, entry.Digest), &index); err != nil {
		t.Fatal(err)
	}
	if len(index.Manifests) != len(target.All) {
		t.Fatalf("image index has %d manifests, want %d", len(index.Manifests), len(target.All))
	}
	for i, desc := range index.Manifests {
		if desc.Platform == nil {
			t.Errorf("manifest %d has no platform", i)
		}
	}
}

func TestAssemblePlatformManifests(t *testing.T) {
	result := assemble(t, target.All)

	if len(result.Images) != len(target.All) {
		t.Fatalf("Images has %d platforms, want %d", len(result.Images), len(target.All))
	}

	var sharedLayer digest.Digest
	initLayers := make(map[digest.Digest]bool)

	for _, want := range []string{"linux/amd64", "linux/arm/v7", "linux/arm64"} {
		dgst, ok := result.Images[want]
		if !ok {
			t.Fatalf("Images missing platform %q (have %v)", want, result.Images)
		}

		var m ocispec.Manifest
		if err := json.Unmarshal(readBlob(t, result.Layout, dgst), &m); err != nil {
			t.Fatal(err)
		}
		if len(m.Layers) != 2 {
			t.Fatalf("%s: manifest has %d layers, want 2", want, len(m.Layers))
		}

		// Layer zero is the artifacts layer, shared across every platform.
		if sharedLayer == "" {
			sharedLayer = m.Layers[0].Digest
		} else if m.Layers[0].Digest != sharedLayer {
			t.Errorf("%s: artifacts layer %s differs from shared %s", want, m.Layers[0].Digest, sharedLayer)
		}
		initLayers[m.Layers[1].Digest] = true

		var config ocispec.Image
		if err := json.Unmarshal(readBlob(t, result.Layout, m.Config.Digest), &config); err != nil {
			t.Fatal(err)
		}

		wantEntrypoint := []string{"/usr/local/bin/ingot-init", "--exec"}
		if len(config.Config.Entrypoint) != 2 ||
			config.Config.Entrypoint[0] != wantEntrypoint[0] ||
			config.Config.Entrypoint[1] != wantEntrypoint[1] {
			t.Errorf("%s: entrypoint = %v, want %v", want, config.Config.Entrypoint, wantEntrypoint)
		}
		if len(config.RootFS.DiffIDs) != 2 {
			t.Fatalf("%s: config has %d diff IDs, want 2", want, len(config.RootFS.DiffIDs))
		}

		// Diff IDs must be the digests of the uncompressed layers.
		for i, layer := range m.Layers {
			diffID, _, _ := readLayer(t, result.Layout, layer)
			if diffID != config.RootFS.DiffIDs[i] {
				t.Errorf("%s: layer %d diff ID = %s, config records %s", want, i, diffID, config.RootFS.DiffIDs[i])
			}
		}
	}

	// Init layers carry different binaries, so they must not collapse.
	if len(initLayers) != len(target.All) {
		t.Errorf("got %d distinct init layers, want %d", len(initLayers), len(target.All))
	}
}

func TestAssembleArtifactsLayerContents(t *testing.T) {
	result := assemble(t, target.All)

	dgst := result.Images["linux/amd64"]
	var m ocispec.Manifest
	if err := json.Unmarshal(readBlob(t, result.Layout, dgst), &m); err != nil {
		t.Fatal(err)
	}

	_, headers, contents := readLayer(t, result.Layout, m.Layers[0])

	for _, tgt := range target.All {
		name := "opt/ingot/" + tgt.Triple + "/crux"
		hdr, ok := headers[name]
		if !ok {
			t.Fatalf("artifacts layer missing %q (have %d entries)", name, len(headers))
		}
		if hdr.Mode&0111 == 0 {
			t.Errorf("%s: mode %#o lost the executable bit", name, hdr.Mode)
		}
		if want := "#!binary for " + tgt.Triple + "\n"; string(contents[name]) != want {
			t.Errorf("%s: content = %q, want %q", name, contents[name], want)
		}
		if !hdr.ModTime.Equal(epoch) {
			t.Errorf("%s: mod time %v, want epoch", name, hdr.ModTime)
		}
	}

	manifestData, ok := contents["opt/ingot/"+staging.ManifestFilename]
	if !ok {
		t.Fatal("artifacts layer missing the staging manifest")
	}
	var sm staging.Manifest
	if err := json.Unmarshal(manifestData, &sm); err != nil {
		t.Fatalf("staging manifest in layer does not parse: %v", err)
	}
	if len(sm.Entries) != len(target.All) {
		t.Errorf("staging manifest in layer has %d entries, want %d", len(sm.Entries), len(target.All))
	}

	_, headers, _ = readLayer(t, result.Layout, m.Layers[1])
	hdr, ok := headers["usr/local/bin/ingot-init"]
	if !ok {
		t.Fatal("init layer missing the resolver binary")
	}
	if hdr.Mode&0111 == 0 {
		t.Errorf("resolver mode %#o lost the executable bit", hdr.Mode)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	targets := target.All
	area := buildArea(t, targets)
	initDir := writeInitBinaries(t, targets)

	run := func() (*Result, []byte) {
		out := t.TempDir()
		result, err := Assemble(Options{
			Area:    area,
			Targets: targets,
			InitDir: initDir,
			Output:  out,
			Tag:     "example/crux:1.2.3",
		})
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		index, err := os.ReadFile(filepath.Join(result.Layout, ocispec.ImageIndexFile))
		if err != nil {
			t.Fatal(err)
		}
		return result, index
	}

	first, firstIndex := run()
	second, secondIndex := run()

	if first.Digest != second.Digest {
		t.Errorf("index digest changed between runs: %s vs %s", first.Digest, second.Digest)
	}
	if string(firstIndex) != string(secondIndex) {
		t.Error("index.json differs between runs")
	}
}

func TestAssembleWritesArchive(t *testing.T) {
	result := assemble(t, target.All)

	f, err := os.Open(result.Archive)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	defer f.Close()

	names := make(map[string]bool)
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		names[hdr.Name] = true
	}

	for _, want := range []string{ocispec.ImageLayoutFile, ocispec.ImageIndexFile} {
		if !names[want] {
			t.Errorf("archive missing %q", want)
		}
	}
}

func TestAssembleMissingInitBinary(t *testing.T) {
	targets := target.All
	initDir := writeInitBinaries(t, targets)
	if err := os.Remove(filepath.Join(initDir, "ingot-init-armv7l")); err != nil {
		t.Fatal(err)
	}

	_, err := Assemble(Options{
		Area:    buildArea(t, targets),
		Targets: targets,
		InitDir: initDir,
		Output:  t.TempDir(),
		Tag:     "example/crux:1.2.3",
	})
	if !errors.Is(err, ErrInit) {
		t.Fatalf("Assemble() error = %v, want ErrInit", err)
	}
}

func TestAssembleIncompleteArea(t *testing.T) {
	// Area staged for one target only; the full matrix cannot be packed.
	area := buildArea(t, target.All[:1])

	_, err := Assemble(Options{
		Area:    area,
		Targets: target.All,
		InitDir: writeInitBinaries(t, target.All),
		Output:  t.TempDir(),
		Tag:     "example/crux:1.2.3",
	})
	if !errors.Is(err, ErrAssemble) {
		t.Fatalf("Assemble() error = %v, want ErrAssemble", err)
	}
}

func TestAssembleNoTargets(t *testing.T) {
	_, err := Assemble(Options{
		Area:   buildArea(t, target.All),
		Output: t.TempDir(),
		Tag:    "example/crux:1.2.3",
	})
	if !errors.Is(err, ErrAssemble) {
		t.Fatalf("Assemble() error = %v, want ErrAssemble", err)
	}
}
