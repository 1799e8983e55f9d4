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
	"nightfeed.app/nightfeed/internal/ingest"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	payload := fs.String("payload", "", "One scraped record payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to a JSON file holding one payload or an array of payloads")
	scopes := fs.String("scopes", "venue,artist,organizer", "Nested payloads to ingest as their own records (comma-separated, empty to skip)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, ok := bootstrap(envLoader)
	if !ok {
		return 1
	}

	raw, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}
	payloads, err := splitPayloads(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, ok := connect(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer pool.Close()

	svc := ingest.NewService(pool, logger)
	result, err := svc.Ingest(ctx, payloads, ingest.Options{
		Scopes: splitScopes(*scopes),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("inserted=%d updated=%d unchanged=%d venues=%d artists=%d organizers=%d errors=%d\n",
		result.Inserted,
		result.Updated,
		result.Unchanged,
		result.CreatedVenues,
		result.CreatedArtists,
		result.CreatedOrganizers,
		len(result.Errors),
	)
	for _, recordErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "record %s: %v\n", recordErr.Key, recordErr.Err)
	}

	if len(result.Errors) > 0 && result.Inserted+result.Updated+result.Unchanged == 0 {
		return 1
	}
	return 0
}

// splitPayloads accepts either one payload object or an array of payloads.
func splitPayloads(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var payloads []json.RawMessage
		if err := json.Unmarshal(raw, &payloads); err != nil {
			return nil, fmt.Errorf("payload array is malformed: %w", err)
		}
		if len(payloads) == 0 {
			return nil, fmt.Errorf("payload array is empty")
		}
		return payloads, nil
	}
	return []json.RawMessage{raw}, nil
}

func splitScopes(raw string) []string {
	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		if scope := strings.TrimSpace(strings.ToLower(part)); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}
