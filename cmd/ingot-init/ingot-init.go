package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/ingot/internal"
	"github.com/cruciblehq/ingot/internal/resolve"
)

// Represents the flags for the ingot-init resolver.
var flags struct {
	Staging string           `help:"Staging area root." placeholder:"DIR" default:"${staging}"`
	Dest    string           `help:"Install path for the resolved executable." placeholder:"PATH"`
	Machine string           `help:"Override the detected machine identifier." placeholder:"NAME"`
	Exec    bool             `help:"Replace this process with the installed executable."`
	Quiet   bool             `short:"q" help:"Suppress informational output."`
	Debug   bool             `short:"d" help:"Enable debug output."`
	Version kong.VersionFlag `help:"Show version information."`
	Args    []string         `arg:"" optional:"" passthrough:"" help:"Arguments forwarded to the executable with --exec."`
}

// The entry point for the ingot-init resolver.
//
// Runs as the release image's entrypoint: detects the host architecture,
// installs the matching staged binary at the canonical path, and with
// --exec replaces itself with that binary. Any failure exits with code 1
// before anything reaches the canonical path.
func main() {
	kong.Parse(&flags,
		kong.Name("ingot-init"),
		kong.Description("Installs the release binary matching this machine's architecture."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
			"staging": resolve.DefaultStagingDir,
		},
	)

	slog.SetDefault(logger())

	result, err := resolve.Run(resolve.Options{
		Staging: flags.Staging,
		Dest:    flags.Dest,
		Machine: flags.Machine,
	})
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if !flags.Exec {
		return
	}

	argv := append([]string{result.Dest}, flags.Args...)
	if err := execBinary(result.Dest, argv, os.Environ()); err != nil {
		slog.Error("exec failed", "binary", result.Dest, "error", err)
		os.Exit(1)
	}
}

// Creates a logger honoring the level flags.
func logger() *slog.Logger {
	level := slog.LevelInfo
	if flags.Debug {
		level = slog.LevelDebug
	} else if flags.Quiet {
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
