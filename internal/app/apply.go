package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/entity"
)

func runApplyChanges(args []string) int {
	fs := flag.NewFlagSet("apply-changes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	typeFlag := fs.String("type", "all", "Entity types to process (comma-separated, or \"all\")")
	actor := fs.String("actor", "", "Actor recorded in the audit trail (defaults to NF_SCRAPE_ACTOR)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	types, err := parseEntityTypes(*typeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --type: %v\n", err)
		return 2
	}

	cfg, logger, ok := bootstrap(envLoader)
	if !ok {
		return 1
	}
	applyActor := *actor
	if applyActor == "" {
		applyActor = cfg.ScrapeActor
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, ok := connect(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer pool.Close()

	svc := entity.NewService(pool, logger)
	exitCode := 0
	for _, entityType := range types {
		result, err := svc.ApplyChanges(ctx, entityType, applyActor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Apply changes %s failed: %v\n", entityType, err)
			exitCode = 1
			continue
		}
		fmt.Printf("type=%s applied=%d untouched=%d errors=%d\n", entityType, result.Applied, result.Untouched, len(result.Errors))
		for _, applyErr := range result.Errors {
			fmt.Fprintf(os.Stderr, "%v\n", applyErr)
		}
	}
	return exitCode
}
