package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/ingot/internal/build"
)

// Represents the 'ingot ship' command.
type ShipCmd struct {
	Root string   `short:"C" help:"Project root the toolchain runs in." placeholder:"DIR" default:"."`
	Env  []string `short:"e" help:"Extra environment for the toolchain." placeholder:"KEY=VALUE"`
	Tag  string   `short:"t" help:"Override the image reference from the manifest." placeholder:"REF"`
}

// Executes the ship command.
//
// Runs the whole pipeline: build the matrix, stage the artifacts, verify
// the staged content, and pack the release image. Each phase only starts
// once the previous one finished cleanly.
func (c *ShipCmd) Run(ctx context.Context) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	if _, err := build.Run(ctx, build.Options{
		Manifest: m,
		Root:     c.Root,
		LogDir:   logDir(m, c.Root),
		Env:      c.Env,
	}); err != nil {
		return err
	}

	area, err := stageArtifacts(m, c.Root)
	if err != nil {
		return err
	}

	if err := area.VerifyContent(); err != nil {
		return err
	}

	result, err := packImage(m, area, c.Root, c.Tag)
	if err != nil {
		return err
	}

	fmt.Println(result.Digest)
	return nil
}
