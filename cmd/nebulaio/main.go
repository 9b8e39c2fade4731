package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/piwi3910/nebulaio/internal/config"
	"github.com/piwi3910/nebulaio/internal/server"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configPath string
		directory  string
		port       int
		hostname   string
		silent     bool
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:     "nebulaio",
		Short:   "nebulaio serves a directory tree over the S3 REST API",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the S3 API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			configureLogging(debug)

			cfg, err := config.Load(configPath, config.Options{
				Port:      port,
				Hostname:  hostname,
				Directory: directory,
				Silent:    silent,
			})
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			return run(cfg)
		},
	}

	serveCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	serveCmd.Flags().StringVar(&directory, "directory", "", "directory to serve as the object store root")
	serveCmd.Flags().IntVar(&port, "port", 0, "S3 API port (defaults to "+fmt.Sprint(config.DefaultPort)+")")
	serveCmd.Flags().StringVar(&hostname, "hostname", "", "bind address (defaults to "+config.DefaultHostname+")")
	serveCmd.Flags().BoolVar(&silent, "silent", false, "suppress per-request logging")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func run(cfg *config.Config) error {
	log.Info().
		Str("version", version).
		Str("directory", cfg.Directory).
		Int("port", cfg.Port).
		Msg("starting nebulaio")

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("nebulaio shutdown complete")

	return nil
}
