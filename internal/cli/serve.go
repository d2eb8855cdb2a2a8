package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphtriple/pkg/api"
	"github.com/matzehuels/graphtriple/pkg/cache"
	"github.com/matzehuels/graphtriple/pkg/observability"
	"github.com/matzehuels/graphtriple/pkg/render"
)

const shutdownTimeout = 10 * time.Second

type serveOpts struct {
	addr    string
	workDir string
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve import, export and render over HTTP",
		Long: `Serve runs the HTTP API over the configured store.

  POST /import              triple lines in, JSON summary out
  GET  /export              the visible graph as triples
  GET  /export/{type}/{id}  one vertex or edge
  GET  /render?format=svg   the visible graph as DOT or SVG
  GET  /metrics             Prometheus metrics

Readers pass their tokens in the X-Authorizations header. Streaming-value
paths in imported lines must stay inside --work-dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.workDir, "work-dir", ".", "directory streaming-value paths resolve against")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()
	cfg := ws.cfg

	defaults, err := importOptions(cfg, importOpts{workDir: opts.workDir})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.NewPrometheus(reg).Install()

	rc, err := c.newCache(cfg, false)
	if err != nil {
		return err
	}
	defer rc.Close()
	renderer := render.NewRenderer(rc, cache.NewScopedKeyer(cache.NewDefaultKeyer(), "api"))
	renderer.Logger = c.Logger

	handler := api.New(ws.store, ws.importer,
		api.WithLogger(c.Logger),
		api.WithRenderer(renderer),
		api.WithGatherer(reg),
		api.WithImportDefaults(defaults),
		api.WithAuthorizations(ws.auths),
	)

	addr := firstNonEmpty(opts.addr, cfg.Server.Addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	printSuccess("Listening on %s", StyleValue.Render(addr))
	printDetail("store: %s · queue: %s · cache: %s", cfg.Store.Backend, cfg.Queue.Backend, cfg.Cache.Backend)

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	printInfo("Server stopped")
	return nil
}
