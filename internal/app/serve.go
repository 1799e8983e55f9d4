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

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/entity"
	"nightfeed.app/nightfeed/internal/httpapi"
	"nightfeed.app/nightfeed/internal/ingest"
	"nightfeed.app/nightfeed/internal/match"
	"nightfeed.app/nightfeed/internal/scrape"
	"nightfeed.app/nightfeed/internal/workflow"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, ok := bootstrap(envLoader)
	if !ok {
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, ok := connect(dbCtx, cfg, logger)
	if !ok {
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	entities := entity.NewService(pool, logger)
	flow := workflow.NewService(pool, logger)

	var geocoder scrape.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = scrape.NewHTTPGeocoder(cfg.GeocoderURL, logger)
	}
	// Source adapters register out of process; a triggered run with none
	// configured still matches and geocodes whatever ingestion delivered.
	runner := scrape.NewRunner(
		pool,
		scrape.NewRunGuard(),
		ingest.NewService(pool, logger),
		match.NewService(pool, logger),
		geocoder,
		nil,
		cfg.SourceDelay,
		cfg.ScrapeActor,
		logger,
	)

	srv := httpapi.NewServer(pool, entities, flow, runner, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowOrigins:    cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
