package cli

import (
	"context"
	"fmt"

	"github.com/cruciblehq/ingot/internal/image"
	"github.com/cruciblehq/ingot/internal/manifest"
	"github.com/cruciblehq/ingot/internal/staging"
)

// Represents the 'ingot pack' command.
type PackCmd struct {
	Root string `short:"C" help:"Project root the artifacts were staged in." placeholder:"DIR" default:"."`
	Tag  string `short:"t" help:"Override the image reference from the manifest." placeholder:"REF"`
}

// Executes the pack command.
//
// Assembles the staged artifacts into a multi-architecture OCI image and
// prints the resulting index digest.
func (c *PackCmd) Run(ctx context.Context) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	area, err := staging.Load(resolvePath(c.Root, m.Output.Staging))
	if err != nil {
		return err
	}

	result, err := packImage(m, area, c.Root, c.Tag)
	if err != nil {
		return err
	}

	fmt.Println(result.Digest)
	return nil
}

// Assembles the release image for a committed staging area.
func packImage(m *manifest.Manifest, area *staging.Area, root, tag string) (*image.Result, error) {
	if tag == "" {
		tag = m.Image.Tag
	}

	return image.Assemble(image.Options{
		Area:    area,
		Targets: m.Targets(),
		InitDir: resolvePath(root, m.Output.Init),
		Output:  resolvePath(root, m.Image.Dir),
		Tag:     tag,
	})
}
