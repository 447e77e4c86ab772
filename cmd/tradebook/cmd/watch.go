package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/metrics"
	"github.com/rustyeddy/tradebook/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh live trades and journal on a schedule",
	Long: `Run until interrupted. Every watch.schedule the live trades are reconciled
with the broker; every watch.journal_schedule the previous day is written to
the journal. Prometheus metrics are served on watch.metrics_addr at /metrics.

Example:
  tradebook watch`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	b, err := openBroker()
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	refresh := &scheduler.RefreshJob{
		Store:   openStore(),
		Broker:  b,
		Metrics: m,
		Log:     log.With().Str("job", "refresh").Logger(),
		Timeout: time.Minute,
	}
	sync := &scheduler.JournalSyncJob{
		Store:   openStore(),
		Prices:  openCharts(),
		Journal: j,
		Log:     log.With().Str("job", "journal-sync").Logger(),
	}

	s := scheduler.New(log)
	if err := s.AddJob(cfg.Watch.Schedule, refresh); err != nil {
		return err
	}
	if err := s.AddJob(cfg.Watch.JournalSchedule, sync); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", cfg.Watch.MetricsAddr).Msg("Metrics server failed")
		}
	}()
	log.Info().Str("addr", cfg.Watch.MetricsAddr).Msg("Serving metrics")

	if err := s.RunNow(refresh); err != nil {
		log.Error().Err(err).Msg("Initial refresh failed")
	}
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-cmd.Context().Done():
	}

	s.Stop()
	return srv.Close()
}
