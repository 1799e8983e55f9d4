package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/entity"
)

func runShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	entityUUID := fs.String("uuid", "", "Unified entity UUID")

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

	svc := entity.NewService(pool, logger)
	view, err := svc.View(ctx, strings.TrimSpace(*entityUUID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
		return 1
	}
	printJSON(view)
	return 0
}

func runCreate(args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	typeFlag := fs.String("type", "", "Entity type (event, venue, artist, organizer)")
	fields := fs.String("fields", "", "Entity fields as a JSON object")
	fieldsFile := fs.String("fields-file", "", "Path to a fields JSON file (overrides --fields)")
	actor := fs.String("actor", "operator", "Actor recorded in the audit trail")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	entityType, err := domain.ParseEntityType(strings.TrimSpace(*typeFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --type: %v\n", err)
		return 2
	}
	raw, err := loadJSONInput(*fields, *fieldsFile, "fields")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fields: %v\n", err)
		return 2
	}
	fieldMap, err := parseFieldMap(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fields: %v\n", err)
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

	svc := entity.NewService(pool, logger)
	entityUUID, err := svc.Create(ctx, entityType, fieldMap, strings.TrimSpace(*actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
		return 1
	}
	fmt.Printf("entity_uuid=%s\n", entityUUID)
	return 0
}

func runUpdate(args []string) int {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	entityUUID := fs.String("uuid", "", "Unified entity UUID")
	fields := fs.String("fields", "", "Changed fields as a JSON object")
	fieldsFile := fs.String("fields-file", "", "Path to a fields JSON file (overrides --fields)")
	actor := fs.String("actor", "operator", "Actor recorded in the audit trail")

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
	raw, err := loadJSONInput(*fields, *fieldsFile, "fields")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fields: %v\n", err)
		return 2
	}
	fieldMap, err := parseFieldMap(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fields: %v\n", err)
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

	svc := entity.NewService(pool, logger)
	changes, err := svc.Update(ctx, strings.TrimSpace(*entityUUID), fieldMap, strings.TrimSpace(*actor))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		return 1
	}
	if len(changes) == 0 {
		fmt.Println("no changes")
		return 0
	}
	printJSON(changes)
	return 0
}
