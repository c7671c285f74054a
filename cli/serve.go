package cli

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/dirgraph/graph"
	"github.com/TFMV/dirgraph/ingest"
	"github.com/TFMV/dirgraph/models"
	"github.com/TFMV/dirgraph/server"
)

type serveOpts struct {
	addr     string
	selector string
	watch    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve live graphs over HTTP and websockets",
		Long: `Serve starts the HTTP API and host page. When a file is given its edges
are loaded into the default graph; with --watch the graph is updated
every time the file changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if opts.watch && path == "" {
				return errors.New("--watch needs a file")
			}
			return runServe(cmd.Context(), path, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&opts.selector, "selector", "s", "", "container of the default graph (default from config)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload the file when it changes")

	return cmd
}

func runServe(ctx context.Context, path string, opts *serveOpts) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)

	scfg := server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if opts.addr != "" {
		scfg.Addr = opts.addr
	}
	selector := opts.selector
	if selector == "" {
		selector = cfg.Canvas.Selector
	}

	srv := server.New(scfg, cfg.NewPage(), logger, cfg.GraphOptions(logger)...)
	g, err := srv.CreateGraph(selector)
	if err != nil {
		return err
	}

	if path != "" {
		edges, err := ingest.ProcessFile(path)
		if err != nil {
			return err
		}
		if err := apply(logger, g, path, edges); err != nil {
			return err
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Run(ctx) })
	if opts.watch {
		group.Go(func() error {
			return ingest.Watch(ctx, path, func(edges []*models.Edge, err error) {
				if err != nil {
					logger.Warn("reload failed", "file", path, "err", err)
					return
				}
				if err := apply(logger, g, path, edges); err != nil {
					logger.Warn("update rejected", "file", path, "err", err)
				}
			}, ingest.WithWatchLogger(logger))
		})
	}
	return group.Wait()
}

func apply(logger *log.Logger, g *graph.Graph, path string, edges []*models.Edge) error {
	changes, err := g.Update(edges)
	if err != nil {
		return err
	}
	logger.Info("graph updated", "file", path,
		"enter", len(changes.Nodes.Enter),
		"exit", len(changes.Nodes.Exit),
		"links", len(changes.Links.Enter)+len(changes.Links.Update))
	return nil
}
