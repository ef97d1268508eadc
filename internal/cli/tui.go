package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pagecraft/internal/mutate"
	"pagecraft/internal/tui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newTUICmd(app *App) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "tui <family>",
		Short: "Interactive outline editor (keyboard reordering)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			metrics := mutate.NewMetrics(reg)

			c, st, err := app.openCoordinator(cmd.Context(), args[0], metrics)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr, reg, app)
				defer stop()
			}
			return tui.Run(cmd.Context(), c, tui.Options{Threshold: app.cfg.Engine.NestThreshold})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", envOr("PAGECRAFT_METRICS_ADDR", ""), "Serve Prometheus metrics on this address while the editor runs (e.g. :9090)")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, app *App) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
