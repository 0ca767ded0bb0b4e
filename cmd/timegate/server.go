package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/timegate/internal/config"
	"github.com/nainya/timegate/internal/logger"
	"github.com/nainya/timegate/internal/metrics"
	"github.com/nainya/timegate/internal/server"
	"github.com/nainya/timegate/pkg/version"
)

var (
	flagPort     int
	flagLogLevel string
	flagSeedPath string
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start the TimeGate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				conf.HTTP.Port = flagPort
			}
			if cmd.Flags().Changed("log-level") {
				conf.Log.Level = flagLogLevel
			}
			if err := conf.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, conf)
		},
	}
}

func runServer(ctx context.Context, conf *config.Config) error {
	logger.InitGlobalLogger(logger.Config{Level: conf.Log.Level, Pretty: conf.Log.Pretty})
	log := logger.GetGlobalLogger()
	log.LogServerStart(conf.HTTP.Port, conf.Store.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	store, err := openStore(conf.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Error("Close version store").Err(err).Send()
		}
	}()

	var embeds map[string][]string
	if flagSeedPath != "" {
		if store.writer == nil {
			return fmt.Errorf("store %q is read-only and cannot be seeded", conf.Store.Backend)
		}
		f, err := loadImportFile(flagSeedPath)
		if err != nil {
			return err
		}
		n, err := f.apply(ctx, store.writer)
		if err != nil {
			return err
		}
		embeds = f.embeds()
		log.Info("Seeded version store").Str("file", flagSeedPath).Int("revisions", n).Send()
	}

	mconf, err := conf.ToMemento()
	if err != nil {
		return err
	}

	locator := version.NewLocator(store.catalog,
		version.WithObserver(m),
		version.WithObserver(log.StoreLogger("locator")),
	)
	handler := server.NewHandler(locator, mconf, m, log,
		server.WithRenderer(server.NewTextRenderer(locator, embeds)))

	type service interface {
		Start() error
		Shutdown(ctx context.Context) error
	}
	services := []service{
		server.NewHTTPServer(conf.HTTP.Port, conf.ReadTimeout(), conf.WriteTimeout(), handler, log),
	}
	if conf.Observability.Enabled {
		services = append(services, server.NewObservabilityServer(conf.Observability.Port, reg, log))
	}
	if conf.RPC.Enabled {
		services = append(services, server.NewRPCServer(conf.RPC.Port, locator, m, log))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range services {
		g.Go(s.Start)
	}
	log.LogServerReady(conf.HTTP.Port)

	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		for _, s := range services {
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Shutdown failed").Err(err).Send()
			}
		}
		return nil
	})

	return g.Wait()
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().IntVarP(&flagPort, "port", "p", config.DefaultHTTPPort, "HTTP port")
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		config.DefaultLogLevel,
		"Log level: debug, info, warn, error",
	)
	cmd.Flags().StringVar(&flagSeedPath, "seed", "", "YAML file loaded into the store before serving")
	rootCmd.AddCommand(cmd)
}
