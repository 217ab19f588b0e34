package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/cruciblehq/ingot/internal/manifest"
	"github.com/cruciblehq/ingot/internal/staging"
)

// Represents the 'ingot stage' command.
type StageCmd struct {
	Root string `short:"C" help:"Project root the artifacts were built in." placeholder:"DIR" default:"."`
}

// Executes the stage command.
//
// Collects the artifacts the toolchain produced into the staging area and
// commits the staging manifest. Staging always starts from an empty area,
// so a re-run after a narrower build cannot keep stale artifacts.
func (c *StageCmd) Run(ctx context.Context) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	area, err := stageArtifacts(m, c.Root)
	if err != nil {
		return err
	}

	slog.Info("staging complete",
		"area", area.Root(),
		"artifacts", len(area.Entries()),
	)
	return nil
}

// Stages every artifact of the manifest's matrix and commits the area.
func stageArtifacts(m *manifest.Manifest, root string) (*staging.Area, error) {
	area, err := staging.New(resolvePath(root, m.Output.Staging), staging.Options{
		Binary:    m.Binary,
		Version:   m.Version,
		Toolchain: m.ToolchainID(),
	})
	if err != nil {
		return nil, err
	}

	for _, t := range m.Targets() {
		src := m.ArtifactPath(t)
		if !filepath.IsAbs(src) {
			src = filepath.Join(root, src)
		}
		if _, err := area.Stage(t, src); err != nil {
			return nil, err
		}
	}

	if err := area.Commit(); err != nil {
		return nil, err
	}
	return area, nil
}
