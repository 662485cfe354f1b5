package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartsales/smartsales/config"
	"github.com/smartsales/smartsales/pkg/logger"
	"github.com/smartsales/smartsales/pkg/metrics"
	"github.com/smartsales/smartsales/pkg/pipeline"
	"github.com/smartsales/smartsales/pkg/warehouse"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func Run(build BuildInfo) ExitCode {
	if err := NewRootCmd(build).Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd(build BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "smartsales",
		Short:        "Prepare sales extracts, load the warehouse and build OLAP cubes.",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", build.Version, build.Commit, build.Date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML settings file")
	rootCmd.PersistentFlags().String("env-file", "", "path to a dotenv file (default .env when present)")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		NewPrepareCmd(build).Command(),
		NewLoadCmd(build).Command(),
		NewCubeCmd(build).Command(),
		NewRunCmd(build).Command(),
	)
	return rootCmd
}

// session holds what every subcommand needs once flags are resolved.
type session struct {
	log      *slog.Logger
	settings *config.Settings
	db       *warehouse.SQLDB
	pipeline *pipeline.Pipeline
	ctx      context.Context
	cancel   context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("failed to close warehouse", "error", err)
		}
	}
}

func newSession(cmd *cobra.Command, build BuildInfo) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}

	log := logger.New(verbose)

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	settings, err := config.Resolve(configPath, flags)
	if err != nil {
		return nil, err
	}

	if settings.MetricsAddr != "" {
		startMetricsServer(log, settings.MetricsAddr, build)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	db, err := warehouse.Open(ctx, log, settings.WarehouseConfig())
	if err != nil {
		cancel()
		return nil, err
	}
	p, err := pipeline.New(pipeline.Config{Logger: log, Settings: settings, DB: db})
	if err != nil {
		cancel()
		db.Close()
		return nil, err
	}
	return &session{log: log, settings: settings, db: db, pipeline: p, ctx: ctx, cancel: cancel}, nil
}

func startMetricsServer(log *slog.Logger, addr string, build BuildInfo) {
	metrics.BuildInfo.WithLabelValues(build.Version, build.Commit, build.Date).Set(1)
	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error("Failed to start prometheus metrics server listener", "error", err)
			os.Exit(1)
		}
		log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.Serve(listener, mux); err != nil {
			log.Error("Failed to start prometheus metrics server", "error", err)
			os.Exit(1)
		}
	}()
}
