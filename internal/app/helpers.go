package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/cli"
	"nightfeed.app/nightfeed/internal/config"
	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/logging"
)

// bootstrap loads env + config + logger, the shared preamble of every
// command.
func bootstrap(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, bool) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Logger{}, false
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Logger{}, false
	}
	return cfg, logger, true
}

func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*db.Pool, bool) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, false
	}
	return pool, true
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}

func parseFieldMap(raw json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("fields must not be empty")
	}
	return fields, nil
}

// parseEntityTypes resolves the --type flag: empty means every type.
func parseEntityTypes(raw string) ([]domain.EntityType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "all" {
		return []domain.EntityType{
			domain.EntityVenue,
			domain.EntityArtist,
			domain.EntityOrganizer,
			domain.EntityEvent,
		}, nil
	}

	var types []domain.EntityType
	for _, part := range strings.Split(trimmed, ",") {
		entityType, err := domain.ParseEntityType(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		types = append(types, entityType)
	}
	return types, nil
}

func printJSON(value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}
