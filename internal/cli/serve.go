package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/handler"
	"github.com/haullog/internal/metrics"
	"github.com/haullog/internal/router"
	"github.com/haullog/internal/scheduler"
	"github.com/haullog/internal/warehouse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	port     string
	interval time.Duration
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	sopts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional population scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			if flagChanged(cmd.Flags(), "port") {
				rt.cfg.ListenAddr = withPort(rt.cfg.ListenAddr, sopts.port)
				rt.cfg.Port = sopts.port
			}
			if flagChanged(cmd.Flags(), "schedule-interval") {
				rt.cfg.Schedule.Interval = sopts.interval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&sopts.port, "port", "", "override the listen port")
	cmd.Flags().DurationVar(&sopts.interval, "schedule-interval", 0, "run population on this interval, 0 disables")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg
	gin.SetMode(cfg.GinMode)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	if cfg.APIKey == "" {
		rt.logger.Warn("api key is not configured, every /api/v1 request will be rejected")
	}

	populator := warehouse.NewPopulator(rt.db, warehouse.Options{
		BatchSize: cfg.Warehouse.BatchSize,
		Logger:    rt.logger,
		Metrics:   m,
	})
	api := handler.NewAPI(rt.db, populator, handler.Options{Logger: rt.logger, Metrics: m})
	engine := router.SetupRouter(api, router.Options{APIKey: cfg.APIKey, Logger: rt.logger, Metrics: m})

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		rt.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		rt.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Schedule.Interval > 0 {
		sched, err := scheduler.New(populator, cfg.Schedule.Interval, rt.logger)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return sched.Run(egctx)
		})
	}

	return eg.Wait()
}

// withPort 保留监听地址中的主机部分，只替换端口。
func withPort(addr, port string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}
