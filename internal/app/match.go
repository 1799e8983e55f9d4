package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/match"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	typeFlag := fs.String("type", "all", "Entity types to match (comma-separated, or \"all\")")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, ok := connect(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer pool.Close()

	svc := match.NewService(pool, logger)
	exitCode := 0
	for _, entityType := range types {
		result, err := svc.Match(ctx, entityType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Match %s failed: %v\n", entityType, err)
			exitCode = 1
			continue
		}
		fmt.Printf("type=%s linked=%d created=%d skipped=%d\n", entityType, result.Linked, result.Created, result.Skipped)
	}
	return exitCode
}
