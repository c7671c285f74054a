package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/TFMV/dirgraph/ingest"
	"github.com/TFMV/dirgraph/models"
	"github.com/TFMV/dirgraph/render"
)

func newDiffCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "diff [old] [new]",
		Short: "Show which nodes and links an update would add and remove",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], all)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list elements that stay")
	return cmd
}

func runDiff(ctx context.Context, w io.Writer, oldPath, newPath string, all bool) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)

	g, err := loadGraph(cfg, logger, "", oldPath)
	if err != nil {
		return err
	}
	edges, err := ingest.ProcessFile(newPath)
	if err != nil {
		return err
	}
	changes, err := g.Preview(edges)
	if err != nil {
		return fmt.Errorf("%s: %w", newPath, err)
	}

	printTitle(w, fmt.Sprintf("%s %s %s", oldPath, iconArrow, newPath))
	printJoin(w, "nodes", changes.Nodes, func(k string) string { return k }, all)
	printJoin(w, "links", changes.Links, linkLabel, all)

	printSuccess(w, "%s nodes, %s links",
		counts(changes.Nodes), counts(changes.Links))
	return nil
}

func printJoin(w io.Writer, title string, j render.Join, label func(string) string, all bool) {
	fmt.Fprintln(w, StyleDim.Render(title))
	list := func(style lipgloss.Style, mark string, keys []string) {
		for _, k := range keys {
			fmt.Fprintf(w, "  %s\n", style.Render(mark+" "+label(k)))
		}
	}
	list(styleEnter, "+", j.Enter)
	if all {
		list(styleUpdate, "~", j.Update)
	}
	list(styleExit, "-", j.Exit)
	if j.Duplicates > 0 {
		printDetail(w, "duplicates ignored", StyleNumber.Render(fmt.Sprint(j.Duplicates)))
	}
}

func counts(j render.Join) string {
	return fmt.Sprintf("%s added, %s kept, %s removed",
		StyleNumber.Render(fmt.Sprint(len(j.Enter))),
		StyleNumber.Render(fmt.Sprint(len(j.Update))),
		StyleNumber.Render(fmt.Sprint(len(j.Exit))))
}

func linkLabel(key string) string {
	source, target := models.SplitLinkKey(key)
	return source + " " + iconArrow + " " + target
}
