package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/ingot/internal/staging"
)

// Represents the 'ingot verify' command.
type VerifyCmd struct {
	Root string `short:"C" help:"Project root the artifacts were staged in." placeholder:"DIR" default:"."`
}

// Executes the verify command.
//
// Checks the committed staging area against the manifest's matrix: every
// target must be staged, nothing extra may be present, and every staged
// file must still match its recorded digest and size. Run it after moving
// a staging area between machines.
func (c *VerifyCmd) Run(ctx context.Context) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	area, err := staging.Load(resolvePath(c.Root, m.Output.Staging))
	if err != nil {
		return err
	}

	if err := area.Verify(m.Targets()); err != nil {
		return err
	}
	if err := area.VerifyContent(); err != nil {
		return err
	}

	slog.Info("staging area verified",
		"area", area.Root(),
		"artifacts", len(area.Entries()),
	)
	return nil
}
