package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/service"
)

type watchCommandParams struct {
	buildParams
	metricsAddr string
	workers     int
}

func init() {
	params := watchCommandParams{buildParams: buildParams{logLevel: logging.Info}}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a file of the build changes",
		Long: `Watch runs a build and then watches every file read by it. Each change
starts a new full build; builds are neither debounced nor coalesced. Failed
builds are logged and the watch continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runWatch(ctx, &params)
		},
	}

	params.addFlags(watch.Flags())
	watch.Flags().StringVar(&params.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. localhost:9090")
	watch.Flags().IntVar(&params.workers, "workers", 4, "number of rebuilds that may run concurrently")

	RootCommand.AddCommand(watch)
}

func runWatch(ctx context.Context, params *watchCommandParams) error {
	log := params.logger()
	c, _, err := params.compiler(log)
	if err != nil {
		return err
	}
	c.WithWorkers(params.workers)

	return watchBuilds(ctx, log, c, params.metricsAddr)
}

// watchBuilds runs c in watch mode until ctx is done, serving metrics on
// metricsAddr unless it is empty.
func watchBuilds(ctx context.Context, log *logging.Logger, c *service.Compiler, metricsAddr string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Watch(ctx, func(err error, result *builder.Result, tracked []string) {
			if err != nil {
				log.Errorf("build failed, watching %d files: %v", len(tracked), err)
				return
			}
			log.Infof("wrote %v, watching %d files", result.Files, len(tracked))
		})
	})

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsHandler(), ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Infof("serving metrics on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}
