package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cruciblehq/ingot/internal/paths"
	"github.com/cruciblehq/ingot/internal/target"
)

// Executes one matrix leg: a single toolchain invocation for a single
// target.
type leg struct {
	target   target.Target
	argv     []string // Expanded toolchain invocation.
	root     string   // Working directory for the toolchain.
	env      []string // Extra environment variables.
	artifact string   // Artifact the invocation must produce.
	logPath  string   // Destination for the toolchain's combined output.
}

// Creates the leg for one target, expanding the manifest templates.
func newLeg(opts Options, t target.Target, logDir string) *leg {
	artifact := opts.Manifest.ArtifactPath(t)
	if !filepath.IsAbs(artifact) {
		artifact = filepath.Join(opts.Root, artifact)
	}

	return &leg{
		target:   t,
		argv:     opts.Manifest.Command(t),
		root:     opts.Root,
		env:      opts.Env,
		artifact: artifact,
		logPath:  filepath.Join(logDir, t.Triple+".log"),
	}
}

// Runs the toolchain and validates the produced artifact.
//
// Errors are scoped to this leg and name its triple; the other legs keep
// running regardless of the outcome here.
func (l *leg) run(ctx context.Context) error {
	slog.Info("building target", "triple", l.target.Triple, "log", l.logPath)
	start := time.Now()

	if err := l.invoke(ctx); err != nil {
		return fmt.Errorf("target %s: %w", l.target.Triple, err)
	}
	if err := l.validate(); err != nil {
		return fmt.Errorf("target %s: %w", l.target.Triple, err)
	}

	slog.Info("target built",
		"triple", l.target.Triple,
		"artifact", l.artifact,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Invokes the toolchain with stdout and stderr streamed to the leg's log
// file. The toolchain inherits the pipeline's environment plus any extra
// entries from the options.
func (l *leg) invoke(ctx context.Context) error {
	logFile, err := os.OpenFile(l.logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.Dir = l.root
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), l.env...)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %q (see %s): %w", ErrToolchain, l.argv, l.logPath, err)
	}
	return nil
}

// Checks that the toolchain produced the artifact it declared.
//
// The toolchain exiting zero is not proof of output; the artifact must
// exist as a regular, non-empty file at the declared path.
func (l *leg) validate() error {
	info, err := os.Stat(l.artifact)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArtifact, l.artifact, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrArtifact, l.artifact)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrArtifact, l.artifact)
	}
	return nil
}
