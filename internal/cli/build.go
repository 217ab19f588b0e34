package cli

import (
	"context"

	"github.com/cruciblehq/ingot/internal/build"
	"github.com/cruciblehq/ingot/internal/manifest"
)

// Represents the 'ingot build' command.
type BuildCmd struct {
	Root string   `short:"C" help:"Project root the toolchain runs in." placeholder:"DIR" default:"."`
	Env  []string `short:"e" help:"Extra environment for the toolchain." placeholder:"KEY=VALUE"`
}

// Executes the build command.
//
// Runs the cross-compilation toolchain once per target in the manifest's
// matrix. Targets build independently: a failing target never stops the
// others, and every failure is reported together at the end.
func (c *BuildCmd) Run(ctx context.Context) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	_, err = build.Run(ctx, build.Options{
		Manifest: m,
		Root:     c.Root,
		LogDir:   logDir(m, c.Root),
		Env:      c.Env,
	})
	return err
}

// Returns the toolchain log directory from the manifest, or empty to let
// the build fall back to the state directory.
func logDir(m *manifest.Manifest, root string) string {
	if m.Output.Logs == "" {
		return ""
	}
	return resolvePath(root, m.Output.Logs)
}
