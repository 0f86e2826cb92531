package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sentinel-engine-go/internal/api"
	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/services"
	"sentinel-engine-go/internal/services/aggregation"
	"sentinel-engine-go/internal/services/fanout"
)

func main() {
	var envFile string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "sentinel-engine",
		Short:         "Detection-event alerting engine for retail cameras",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup structured logging
			zerolog.TimeFieldFormat = time.RFC3339
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

			cfg = config.LoadFile(envFile)

			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
				level = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(level)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default ./.env)")

	rootCmd.AddCommand(
		serveCmd(&cfg),
		aggregateCmd(&cfg),
		migrateCmd(&cfg),
		watchCmd(&cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func serveCmd(cfg **config.Config) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine: ingest, camera workers, alerting and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if port > 0 {
				c.Port = port
			}
			return serve(c)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides PORT)")
	return cmd
}

func serve(cfg *config.Config) error {
	if cfg.LogdyEnabled {
		writer, url, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Logdy disabled")
		} else {
			log.Logger = log.Output(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, writer))
			log.Info().Str("url", url).Msg("Streaming logs to Logdy")
		}
	}

	log.Info().
		Str("engine_id", cfg.EngineID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Msg("Starting Sentinel Engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := services.NewServiceContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create services: %w", err)
	}
	if err := container.Start(ctx); err != nil {
		shutdown(container, nil, cfg.ShutdownTimeout)
		return fmt.Errorf("failed to start services: %w", err)
	}

	server, err := api.NewServer(cfg, container)
	if err != nil {
		shutdown(container, nil, cfg.ShutdownTimeout)
		return fmt.Errorf("failed to create server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	shutdown(container, server, cfg.ShutdownTimeout)
	return err
}

func shutdown(container *services.ServiceContainer, server *api.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Services did not shut down cleanly")
		return
	}
	log.Info().Msg("Shutdown complete")
}

func aggregateCmd(cfg **config.Config) *cobra.Command {
	var hour string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run one hourly aggregation pass against the store and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			st, err := services.OpenStore(c)
			if err != nil {
				return err
			}
			defer st.Close()

			svc, err := aggregation.NewService(c, st, observability.NewCounters(), nil)
			if err != nil {
				return err
			}

			var res aggregation.Result
			if hour == "" {
				res, err = svc.RunOnce(cmd.Context())
			} else {
				t, perr := time.Parse(time.RFC3339, hour)
				if perr != nil {
					return fmt.Errorf("--hour must be RFC3339: %w", perr)
				}
				res, err = svc.RunHour(cmd.Context(), t)
			}
			printJSON(cmd.OutOrStdout(), res)
			return err
		},
	}
	cmd.Flags().StringVar(&hour, "hour", "", "RFC3339 time inside a single completed hour to aggregate")
	return cmd
}

func migrateCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := services.OpenStore(*cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Str("store", (*cfg).StoreDriver).Msg("Store schema is up to date")
			return nil
		},
	}
}

func watchCmd(cfg **config.Config) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live alert stream of a running engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = fmt.Sprintf("ws://localhost:%d/ws/alerts", (*cfg).Port)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := fanout.ClientOptionsFromConfig(*cfg)
			opts.OnStateChange = func(sc fanout.StateChange) {
				ev := log.Info().Str("state", string(sc.State))
				if sc.Attempt > 0 {
					ev = ev.Int("attempt", sc.Attempt)
				}
				ev.Err(sc.Err).Msg("Alert stream")
			}
			client := fanout.NewClient(url, opts)

			out := cmd.OutOrStdout()
			err := client.Run(ctx, func(msg models.FanoutMessage) {
				printJSON(out, msg)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Alert stream URL (default ws://localhost:$PORT/ws/alerts)")
	return cmd
}

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode output")
	}
}
