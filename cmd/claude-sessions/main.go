// Command claude-sessions watches a Claude Code projects directory and
// emits a live stream of session lifecycle and message events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgmacleod/claude-sessions/internal/apperror"
	"github.com/mgmacleod/claude-sessions/internal/async"
	"github.com/mgmacleod/claude-sessions/internal/config"
	"github.com/mgmacleod/claude-sessions/internal/emitter"
	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/logging"
	"github.com/mgmacleod/claude-sessions/internal/metrics"
	"github.com/mgmacleod/claude-sessions/internal/watcher"
	"github.com/mgmacleod/claude-sessions/internal/webhook"
)

// Version is stamped at release time; left as "dev" for source builds.
var Version = "dev"

// exit codes.
const (
	exitOK    = 0
	exitSetup = 1
	exitUsage = 2
)

type watchFlags struct {
	basePath     string
	configFile   string
	pollInterval string
	webhookURLs  []string
	metricsAddr  string
	withAsync    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:           "claude-sessions",
		Short:         "Watch Claude Code session transcripts and emit live events",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var wf watchFlags
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a projects directory and stream session events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), wf)
		},
	}
	watchCmd.Flags().StringVar(&wf.basePath, "base-path", "", "Claude Code home directory (default ~/.claude)")
	watchCmd.Flags().StringVar(&wf.configFile, "config", "", "path to a YAML config file")
	watchCmd.Flags().StringVar(&wf.pollInterval, "poll-interval", "", "poll interval, e.g. 500ms")
	watchCmd.Flags().StringArrayVar(&wf.webhookURLs, "webhook", nil, "webhook URL to deliver events to (repeatable)")
	watchCmd.Flags().StringVar(&wf.metricsAddr, "metrics-addr", "", "address to serve /metrics and /health on, e.g. :9090")
	watchCmd.Flags().BoolVar(&wf.withAsync, "async", false, "also expose the channel-based async facade (unused by the CLI formatter, diagnostic only)")

	var metricsAddr string
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics without running the watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetricsOnly(cmd.Context(), metricsAddr)
		},
	}
	metricsCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics and /health on")

	rootCmd.AddCommand(watchCmd, metricsCmd)
	for _, c := range []*cobra.Command{rootCmd, watchCmd, metricsCmd} {
		c.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
			return usageError{err}
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var usage usageError
		var appErr *apperror.Error
		switch {
		case errors.As(err, &usage):
			fmt.Fprintln(os.Stderr, "error:", err)
			return exitUsage
		case errors.As(err, &appErr):
			fmt.Fprintf(os.Stderr, "error: [%s] %s\n", appErr.Code, err)
			return exitSetup
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
			return exitSetup
		}
	}
	return exitOK
}

// usageError marks an error as originating from argument/flag parsing
// (exit code 2) rather than a setup failure (exit code 1).
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func runWatch(ctx context.Context, wf watchFlags) error {
	cfg, err := loadConfig(wf)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		RedactPatterns: logging.DefaultRedactPatterns,
	})
	em := emitter.New(logger)
	collector := metrics.New()
	em.OnAny(func(_ context.Context, ev event.Event) { collector.Observe(ev) })

	metricsAddr := wf.metricsAddr
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	var metricsServer *metrics.Server
	if metricsAddr != "" {
		metricsServer = metrics.NewServer(metricsAddr, collector)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error(ctx, "metrics server stopped with error", "error", err)
			}
		}()
	}

	var dispatcher *webhook.Dispatcher
	if len(cfg.Webhooks) > 0 {
		dispatcher = webhook.NewDispatcher(cfg.Webhooks, collector, logger)
		dispatcher.Start(ctx)
		em.OnAny(dispatcher.Handle)
		defer dispatcher.Stop()
	}

	var facade *async.Facade
	if wf.withAsync {
		facade = async.NewFacade(cfg.AsyncQueueCapacity)
		em.OnAny(facade.Push)
		defer facade.Close()
	}

	printer := newLineFormatter(os.Stdout)
	em.OnAny(printer.Handle)

	w := watcher.New(cfg, em, watcher.WithLogger(logger), watcher.WithMetrics(collector))
	logger.Info(ctx, "watching", "base_path", cfg.BasePath)
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

func runMetricsOnly(ctx context.Context, addr string) error {
	collector := metrics.New()
	server := metrics.NewServer(addr, collector)
	return server.Start(ctx)
}

func loadConfig(wf watchFlags) (config.WatcherConfig, error) {
	var cfg config.WatcherConfig
	var err error
	if wf.configFile != "" {
		cfg, err = config.Load(wf.configFile)
		if err != nil {
			return cfg, err
		}
	} else {
		cfg = config.Default()
	}

	if wf.basePath != "" {
		cfg.BasePath = wf.basePath
	}
	if wf.pollInterval != "" {
		d, err := time.ParseDuration(wf.pollInterval)
		if err != nil {
			return cfg, fmt.Errorf("invalid --poll-interval: %w", err)
		}
		cfg.PollInterval = d
	}
	for _, u := range wf.webhookURLs {
		cfg.Webhooks = append(cfg.Webhooks, config.WebhookEndpoint{URL: u})
	}
	cfg.ApplyWebhookDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// lineFormatter prints a one-line JSON summary per event to an io.Writer,
// standing in for a richer event formatter.
type lineFormatter struct {
	enc *json.Encoder
}

func newLineFormatter(w io.Writer) *lineFormatter {
	return &lineFormatter{enc: json.NewEncoder(w)}
}

func (f *lineFormatter) Handle(_ context.Context, ev event.Event) {
	_ = f.enc.Encode(ev)
}
