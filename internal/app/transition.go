package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/workflow"
)

func runTransition(args []string) int {
	fs := flag.NewFlagSet("transition", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	entityUUID := fs.String("uuid", "", "Event entity UUID")
	status := fs.String("status", "", "Target status")
	actor := fs.String("actor", "operator", "Actor recorded in the audit trail")
	pending := fs.String("pending", "", "Pending field edit as a JSON object, evaluated by the publish gate")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*entityUUID) == "" {
		fmt.Fprintln(os.Stderr, "--uuid is required")
		return 2
	}
	to, ok := workflow.ParseStatus(strings.TrimSpace(*status))
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown status %q\n", *status)
		return 2
	}

	var pendingFields map[string]any
	if trimmed := strings.TrimSpace(*pending); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &pendingFields); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --pending: %v\n", err)
			return 2
		}
	}

	cfg, logger, bootOK := bootstrap(envLoader)
	if !bootOK {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, poolOK := connect(ctx, cfg, logger)
	if !poolOK {
		return 1
	}
	defer pool.Close()

	svc := workflow.NewService(pool, logger)
	if err := svc.Transition(ctx, strings.TrimSpace(*entityUUID), to, strings.TrimSpace(*actor), pendingFields); err != nil {
		fmt.Fprintf(os.Stderr, "Transition failed: %v\n", err)
		return 1
	}
	fmt.Printf("entity_uuid=%s status=%s\n", strings.TrimSpace(*entityUUID), to)
	return 0
}

func runPublishStatus(args []string) int {
	fs := flag.NewFlagSet("publish-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	ids := fs.String("ids", "", "Comma-separated event entity UUIDs")
	status := fs.String("status", "", "Target status")
	actor := fs.String("actor", "operator", "Actor recorded in the audit trail")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var entityUUIDs []string
	for _, part := range strings.Split(*ids, ",") {
		if id := strings.TrimSpace(part); id != "" {
			entityUUIDs = append(entityUUIDs, id)
		}
	}
	if len(entityUUIDs) == 0 {
		fmt.Fprintln(os.Stderr, "--ids is required")
		return 2
	}
	to, ok := workflow.ParseStatus(strings.TrimSpace(*status))
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown status %q\n", *status)
		return 2
	}

	cfg, logger, bootOK := bootstrap(envLoader)
	if !bootOK {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, poolOK := connect(ctx, cfg, logger)
	if !poolOK {
		return 1
	}
	defer pool.Close()

	svc := workflow.NewService(pool, logger)
	result := svc.PublishStatus(ctx, entityUUIDs, to, strings.TrimSpace(*actor))
	printJSON(result)

	if len(result.Failed) > 0 {
		return 1
	}
	return 0
}
