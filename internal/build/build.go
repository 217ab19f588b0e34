package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/cruciblehq/ingot/internal/manifest"
	"github.com/cruciblehq/ingot/internal/paths"
)

// Controls build matrix execution.
type Options struct {
	Manifest *manifest.Manifest // Release manifest with the matrix and toolchain invocation.
	Root     string             // Project root the toolchain runs in.
	LogDir   string             // Directory for per-target toolchain logs. Empty uses the XDG state directory.
	Env      []string           // Extra environment for the toolchain, as "key=value" entries.
}

// Returned after successful matrix execution.
type Result struct {
	Artifacts map[string]string // Artifact path per toolchain triple.
	Logs      map[string]string // Toolchain log path per toolchain triple.
}

// Runs the build matrix.
//
// Every matrix entry is one leg: a single toolchain invocation for a single
// target, run concurrently with the others and sharing no mutable state with
// them. A failing leg never stops the rest; all legs run to completion, the
// per-leg errors are joined, and any failure fails the whole run. On success
// the result maps each triple to its validated artifact.
func Run(ctx context.Context, opts Options) (*Result, error) {
	targets := opts.Manifest.Targets()

	logDir := opts.LogDir
	if logDir == "" {
		logDir = paths.LogDir()
	}
	if err := os.MkdirAll(logDir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Info("executing build matrix",
		"binary", opts.Manifest.Binary,
		"toolchain", opts.Manifest.ToolchainID(),
		"targets", len(targets),
		"logs", logDir,
	)

	legs := make([]*leg, len(targets))
	for i, t := range targets {
		legs[i] = newLeg(opts, t, logDir)
	}

	errs := make([]error, len(legs))
	var wg sync.WaitGroup
	for i, l := range legs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.run(ctx)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	result := &Result{
		Artifacts: make(map[string]string, len(legs)),
		Logs:      make(map[string]string, len(legs)),
	}
	for _, l := range legs {
		result.Artifacts[l.target.Triple] = l.artifact
		result.Logs[l.target.Triple] = l.logPath
	}

	slog.Info("build matrix complete", "targets", len(legs))
	return result, nil
}
