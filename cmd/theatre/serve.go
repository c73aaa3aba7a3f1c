package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/cli"
	"github.com/aretw0/theatre/internal/presentation/tui"
	httpAdapter "github.com/aretw0/theatre/pkg/adapters/http"
	"github.com/aretw0/theatre/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP inspection API",
	Long: `Serves a scene over HTTP: build the tree, evaluate nodes and follow changes
through server-sent events. Prometheus metrics are exposed on /metrics. With
--watch, mount configuration changes reload the scene while serving.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")
		watch, _ := cmd.Flags().GetBool("watch")
		save, _ := cmd.Flags().GetBool("save-on-exit")
		logger := cli.NewLogger(opts.Debug)

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(registry)
		if err != nil {
			return err
		}
		streams := httpAdapter.NewStreamManager()

		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, logger,
			theatre.WithLifecycleHooks(metrics.Hooks().Merge(streams.Hooks()).Merge(observability.LoggingHooks(logger))),
		)
		if err != nil {
			return err
		}
		defer closeFn()

		srv := &http.Server{
			Addr: ":" + port,
			Handler: httpAdapter.NewHandler(scene,
				httpAdapter.WithLogger(logger),
				httpAdapter.WithStreams(streams),
				httpAdapter.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
			),
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		g, ctx := errgroup.WithContext(sigCtx)

		g.Go(func() error {
			tui.PrintBanner(cmd.ErrOrStderr())
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving scene %q from %s on %s\n", scene.Name(), opts.RepoPath, srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
			}
			return nil
		})

		if watch {
			g.Go(func() error {
				changes, err := scene.Watch(ctx)
				if err != nil {
					return err
				}
				for range changes {
					if err := scene.Reload(); err != nil {
						logger.Error("Reload failed", "err", err)
						continue
					}
					streams.NotifyReload()
				}
				return nil
			})
		}

		err = g.Wait()
		if sig := sigCtx.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nShutdown signal received: %v\n", sig)
		}
		if save {
			if serr := scene.Save(context.Background()); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload mounts when virtual_fs changes")
	serveCmd.Flags().Bool("save-on-exit", false, "Save the scene when the server stops")
}
