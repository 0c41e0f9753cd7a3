package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/ParcelDesk/config"
	"github.com/BearBump/ParcelDesk/internal/api/dashboard_api"
	"github.com/BearBump/ParcelDesk/internal/logger"
	"github.com/BearBump/ParcelDesk/internal/services/refresher"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with a background refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.HTTPAddr = addr
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return a.withDeps(func(d *deps) error {
				lis, err := net.Listen("tcp", a.cfg.Server.HTTPAddr)
				if err != nil {
					return errors.Wrap(err, "listen")
				}
				err = runServe(ctx, a.cfg, d, lis)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.http_addr")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, d *deps, lis net.Listener) error {
	log := logger.Named("serve")

	ref := refresher.New(d.dash.List).
		WithInterval(time.Duration(cfg.Server.RefreshIntervalSeconds) * time.Second)
	if cfg.Server.DetailsWarmup > 0 {
		ref.WithDetailsWarmup(d.dash, d.store, cfg.Server.DetailsWarmup, 2).
			WithPlanner(refresher.PlannerConfig{ActiveDelay: time.Duration(cfg.Cache.TTLSeconds) * time.Second})
	}

	api := dashboard_api.New(d.dash, d.carriers).
		WithRefresher(ref).
		WithMetrics(d.metrics.Handler())
	if cfg.Server.SwaggerPath != "" {
		api.WithSwagger(cfg.Server.SwaggerPath)
	}

	srv := &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ref.Run(gctx)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
