package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/reactord/internal/config"
	"github.com/yourusername/reactord/internal/logging"
	"github.com/yourusername/reactord/internal/message"
	"github.com/yourusername/reactord/internal/metrics"
	"github.com/yourusername/reactord/internal/reactor"
	"github.com/yourusername/reactord/internal/registry"
)

var configFile string

// newRootCmd builds the root `reactord` command, which serves directly
// (runServe), with every server flag, bound into the same FlagSet that config.Load layers
// beneath env vars and the config file.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reactord",
		Short: "A multi-reactor HTTP/1.1 application server",
		RunE:  runServe,
	}

	fs := root.Flags()
	fs.String("ip", "0.0.0.0", "bind address")
	fs.Int("port", 8080, "listen port")
	fs.Int("max_threads", 0, "worker count, clamped to hardware concurrency (0 = all cores)")
	fs.Int("backlog_size", 1024, "listen() backlog")
	fs.Int64("connection_timeout_ms", 60000, "idle reaper threshold in milliseconds")
	fs.Uint64("max_body_size", 8<<10, "hard limit on Content-Length")
	fs.Int("max_request_size", 16384, "per-session read ring buffer capacity")
	fs.Int("max_response_size", 16384, "per-session write ring buffer capacity")
	fs.Bool("reuseport", true, "use per-worker SO_REUSEPORT listeners instead of a single round-robin acceptor")
	fs.String("log_level", "info", "log level: debug, info, warn, error")
	fs.Bool("enable_metrics", false, "serve /metrics")
	fs.String("metrics_path", "/metrics", "path the metrics endpoint is registered under")
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	rootLog := log.WithField("component", "reactord")

	if lim, err := reactor.RaiseNoFileLimit(); err != nil {
		rootLog.WithError(err).Warn("failed to raise RLIMIT_NOFILE")
	} else {
		rootLog.WithField("rlimit_nofile", lim).Info("raised file descriptor limit")
	}

	reg := registry.New()
	if err := registerExampleHandlers(reg); err != nil {
		return err
	}

	srv := reactor.NewServer(reactor.ServerConfig{
		IP:                cfg.IP,
		Port:              cfg.Port,
		MaxThreads:        cfg.MaxThreads,
		BacklogSize:       cfg.BacklogSize,
		ConnectionTimeout: cfg.ConnectionTimeout(),
		MaxBodySize:       cfg.MaxBodySize,
		MaxRequestSize:    cfg.MaxRequestSize,
		MaxResponseSize:   cfg.MaxResponseSize,
		ReusePort:         cfg.ReusePort,
		ServerHeader:      "reactord",
	}, reg, rootLog)

	if cfg.EnableMetrics {
		collector := metrics.NewCollector(srv)
		mreg := metrics.NewRegistry(collector)
		if err := reg.Register(cfg.MetricsPath, message.MethodGET, metricsHandler(mreg)); err != nil {
			return err
		}
	}

	watcher, err := config.NewWatcher(cfg, cmd.Flags(), rootLog, func(next *config.Config) {
		rootLog.WithField("log_level", next.LogLevel).Info("configuration reloaded")
		if lvl, perr := logrus.ParseLevel(next.LogLevel); perr == nil {
			log.SetLevel(lvl)
		}
	})
	if err != nil {
		rootLog.WithError(err).Warn("failed to start config watcher")
	}
	defer watcher.Close()

	if err := srv.Start(); err != nil {
		return err
	}
	rootLog.WithField("port", cfg.Port).Info("reactord listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	rootLog.Info("shutting down")
	srv.Shutdown()
	return nil
}
