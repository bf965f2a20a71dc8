package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"tickfeed/internal/application/usecase/monitor"
	"tickfeed/internal/infrastructure/config"
	"tickfeed/internal/infrastructure/logger"
	"tickfeed/internal/infrastructure/svc"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "tickfeed",
	Short:         "Live market data stream with provider fallback and simulation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a live provider and render the price board",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.toml", "path to config.toml (empty for built-in defaults)")
	rootCmd.AddCommand(runCmd, providersCmd, eventsCmd, pricesCmd)
}

func main() {
	logger.Setup("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("tickfeed exited")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		logger.Setup(cfg.App.LogLevel)
		return cfg, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Str("config", configPath).Msg("load config failed")
		return nil, err
	}
	logger.Setup(cfg.App.LogLevel)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	sc, err := svc.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer sc.Close()

	// 任一组件退出即结束整个进程
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := sc.Manager()
	manager.Start(ctx)
	manager.ConnectToLiveProvider(cfg.App.PreferredProvider)

	mon := monitor.NewService(sc.BuildMonitorServiceDeps())

	log.Info().
		Str("config", configPath).
		Int("symbols", len(cfg.Symbols.List)).
		Strs("providers", cfg.EnabledProviders()).
		Str("preferred", cfg.App.PreferredProvider).
		Msg("tickfeed started")

	var wg conc.WaitGroup
	errs := make(chan error, 2)
	wg.Go(func() {
		defer cancel()
		if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- err
		}
	})
	if m := sc.Metrics(); m != nil {
		wg.Go(func() {
			defer cancel()
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)

	return <-errs
}
