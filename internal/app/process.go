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
	"nightfeed.app/nightfeed/internal/match"
)

// runProcess executes the post-ingestion pipeline: matching for every entity
// type, then folding detected scraped changes into the unified entities.
func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")
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

	matcher := match.NewService(pool, logger)
	entities := entity.NewService(pool, logger)

	exitCode := 0
	for _, entityType := range types {
		matchResult, err := matcher.Match(ctx, entityType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Match %s failed: %v\n", entityType, err)
			exitCode = 1
			continue
		}
		applyResult, err := entities.ApplyChanges(ctx, entityType, applyActor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Apply changes %s failed: %v\n", entityType, err)
			exitCode = 1
			continue
		}
		fmt.Printf("type=%s linked=%d created=%d skipped=%d applied=%d untouched=%d errors=%d\n",
			entityType,
			matchResult.Linked,
			matchResult.Created,
			matchResult.Skipped,
			applyResult.Applied,
			applyResult.Untouched,
			len(applyResult.Errors),
		)
	}
	return exitCode
}
