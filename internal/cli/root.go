package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/ingot/internal"
	"github.com/cruciblehq/ingot/internal/manifest"
)

// Represents the root command for the ingot pipeline.
var RootCmd struct {
	Quiet    bool       `short:"q" help:"Suppress informational output."`
	Verbose  bool       `short:"v" help:"Enable verbose output."`
	Debug    bool       `short:"d" help:"Enable debug output."`
	Manifest string     `short:"m" env:"INGOT_MANIFEST" help:"Override the default release manifest path." placeholder:"PATH"`
	Build    BuildCmd   `cmd:"" help:"Run the cross-compilation matrix."`
	Stage    StageCmd   `cmd:"" help:"Stage built artifacts for packaging."`
	Verify   VerifyCmd  `cmd:"" help:"Verify the staging area against the release manifest."`
	Pack     PackCmd    `cmd:"" help:"Assemble the multi-architecture release image."`
	Ship     ShipCmd    `cmd:"" help:"Build, stage, verify, and pack in one run."`
	Targets  TargetsCmd `cmd:"" help:"List the supported target architectures."`
	Version  VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("The Crucible release pipeline.\n\nCross-compiles the release matrix, stages the built artifacts, and packs them into a single multi-architecture container image."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	}

	// Text for terminals, JSON for pipes and CI logs.
	var handler slog.Handler
	if isatty(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Loads the release manifest named by the --manifest flag, falling back to
// the default filename in the working directory.
func loadManifest() (*manifest.Manifest, error) {
	path := RootCmd.Manifest
	if path == "" {
		path = manifest.DefaultFilename
	}
	return manifest.Load(path)
}

// Resolves a manifest-relative path against the project root.
func resolvePath(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
