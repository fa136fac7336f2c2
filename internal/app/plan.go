package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PrintPlan writes the nodes a run would execute, dependencies first,
// without running anything.
func (a *App) PrintPlan(ctx context.Context, w io.Writer) error {
	plan, res, err := a.Plan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# %s, prefix %s\n", res.Provenance, a.config.Prefix)
	if plan.IsEmpty() {
		fmt.Fprintln(w, "# everything is up to date")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tROLE\tOUTPUTS")
	for _, n := range plan.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID(), n.Role(), strings.Join(n.Output().Paths(), " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "# %d to run, %d already complete\n", len(plan.Nodes), len(plan.Elided))
	return nil
}
