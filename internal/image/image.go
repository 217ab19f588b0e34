package image

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/ingot/internal/resolve"
	"github.com/cruciblehq/ingot/internal/staging"
	"github.com/cruciblehq/ingot/internal/target"
)

const (

	// Name of the resolver binary inside the image. The per-architecture
	// builds in the init directory are named "<initName>-<machine>".
	initName = "ingot-init"

	// Subdirectory of the output directory holding the OCI image layout.
	layoutDirname = "layout"

	// Filename of the archived layout, written next to it.
	archiveFilename = "image.tar"
)

// Controls release image assembly.
type Options struct {
	Area    *staging.Area   // Committed staging area, one artifact per target.
	Targets []target.Target // Platforms to include in the image index.
	InitDir string          // Directory holding the per-architecture resolver binaries.
	Output  string          // Directory for the OCI layout and archive.
	Tag     string          // Reference recorded on the image index (e.g., "example/app:1.2.3").
}

// Returned after successful assembly.
type Result struct {
	Layout  string                   // Directory containing the OCI image layout.
	Archive string                   // Path of the layout archived for transport.
	Digest  digest.Digest            // Digest of the multi-platform image index.
	Images  map[string]digest.Digest // Manifest digest per platform.
}

// Assembles the staged artifacts into a multi-architecture release image.
//
// The image is an OCI index with one manifest per target platform. Every
// manifest shares a single artifacts layer carrying all architectures'
// binaries plus the staging manifest, and adds a small per-architecture
// layer with the resolver binary that runs as the entrypoint. Sharing the
// fat layer means the registry stores the artifacts once no matter how
// many platforms the index covers.
//
// Assembly is deterministic: layer tars use fixed timestamps, configs
// carry no creation time, and JSON blobs marshal stably, so assembling
// the same staging area twice produces byte-identical layouts.
func Assemble(opts Options) (*Result, error) {
	if len(opts.Targets) == 0 {
		return nil, fmt.Errorf("%w: no targets", ErrAssemble)
	}
	if err := opts.Area.Verify(opts.Targets); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	layoutDir := filepath.Join(opts.Output, layoutDirname)
	l, err := newLayout(layoutDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	artifacts, artifactsDiff, err := l.writeLayer(artifactsLayer(opts.Area))
	if err != nil {
		return nil, fmt.Errorf("%w: artifacts layer: %w", ErrAssemble, err)
	}

	slog.Debug("artifacts layer written",
		"digest", artifacts.Digest,
		"size", artifacts.Size,
		"artifacts", len(opts.Area.Entries()),
	)

	result := &Result{
		Layout:  layoutDir,
		Archive: filepath.Join(opts.Output, archiveFilename),
		Images:  make(map[string]digest.Digest, len(opts.Targets)),
	}

	manifests := make([]ocispec.Descriptor, 0, len(opts.Targets))
	for _, t := range opts.Targets {
		desc, err := assemblePlatform(l, opts, t, artifacts, artifactsDiff)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, desc)
		result.Images[platforms.Format(t.Platform)] = desc.Digest
	}

	index := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: manifests,
	}
	indexDesc, err := l.writeBlob(ocispec.MediaTypeImageIndex, index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}
	indexDesc.Annotations = map[string]string{ocispec.AnnotationRefName: opts.Tag}
	result.Digest = indexDesc.Digest

	root := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{indexDesc},
	}
	if err := l.writeIndex(root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	if err := archiveLayout(layoutDir, result.Archive); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	slog.Info("release image assembled",
		"tag", opts.Tag,
		"digest", result.Digest,
		"platforms", len(manifests),
		"archive", result.Archive,
	)

	return result, nil
}

// Builds one platform's init layer, image config, and manifest on top of
// the shared artifacts layer, returning the manifest descriptor with its
// platform set for the index.
func assemblePlatform(l *layout, opts Options, t target.Target, artifacts ocispec.Descriptor, artifactsDiff digest.Digest) (ocispec.Descriptor, error) {
	initBinary := filepath.Join(opts.InitDir, initName+"-"+t.Machine)
	if _, err := os.Stat(initBinary); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: resolver for %s: %w", ErrInit, t.Machine, err)
	}

	initDesc, initDiff, err := l.writeLayer(initLayer(initBinary))
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: init layer for %s: %w", ErrAssemble, t.Machine, err)
	}

	config := ocispec.Image{
		Platform: t.Platform,
		Config: ocispec.ImageConfig{
			Entrypoint: []string{path.Join(resolve.DefaultInstallDir, initName), "--exec"},
			Env:        []string{"PATH=/usr/local/bin:/usr/bin:/bin"},
		},
		RootFS: ocispec.RootFS{
			Type:    "layers",
			DiffIDs: []digest.Digest{artifactsDiff, initDiff},
		},
	}
	configDesc, err := l.writeBlob(ocispec.MediaTypeImageConfig, config)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Layers:    []ocispec.Descriptor{artifacts, initDesc},
	}
	desc, err := l.writeBlob(ocispec.MediaTypeImageManifest, manifest)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %w", ErrAssemble, err)
	}

	platform := t.Platform
	desc.Platform = &platform

	slog.Debug("platform image assembled",
		"platform", platforms.Format(t.Platform),
		"digest", desc.Digest,
	)

	return desc, nil
}
