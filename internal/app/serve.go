package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/httpapi"
	"horse.fit/whatson/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (overrides WO_HTTP_HOST)")
	port := fs.Int("port", 0, "HTTP port (overrides WO_HTTP_PORT)")
	readTimeout := fs.Duration("read-timeout", 0, "HTTP read timeout (overrides config)")
	writeTimeout := fs.Duration("write-timeout", 0, "HTTP write timeout (overrides config)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 0, "Graceful shutdown timeout (overrides config)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	engines, err := buildCore(cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engines: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	opts := httpapi.OptionsFromConfig(cfg)
	if *host != "" {
		opts.Host = *host
	}
	if *port > 0 {
		opts.Port = *port
	}
	if *readTimeout > 0 {
		opts.ReadTimeout = *readTimeout
	}
	if *writeTimeout > 0 {
		opts.WriteTimeout = *writeTimeout
	}
	if *shutdownTimeout > 0 {
		opts.ShutdownTimeout = *shutdownTimeout
	}

	srv := httpapi.NewServer(pool, cfg, engines.ingester, engines.profiles, engines.ranker, logger, opts)
	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", opts.Host).Int("port", opts.Port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
