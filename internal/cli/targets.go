package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/containerd/platforms"

	"github.com/cruciblehq/ingot/internal/target"
)

// Represents the 'ingot targets' command.
type TargetsCmd struct{}

// Executes the targets command.
//
// Prints the closed architecture table: the toolchain triple, the machine
// identifier it answers to at runtime, and the image platform it maps to.
func (c *TargetsCmd) Run(ctx context.Context) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TRIPLE\tMACHINE\tPLATFORM")
	for _, t := range target.All {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Triple, t.Machine, platforms.Format(t.Platform))
	}
	return w.Flush()
}
