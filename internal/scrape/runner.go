package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/ingest"
	"nightfeed.app/nightfeed/internal/match"
	"nightfeed.app/nightfeed/internal/metrics"
)

// ErrRunInProgress is returned when a run is requested while another holds
// the guard.
var ErrRunInProgress = errors.New("a scrape run is already in progress")

const (
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// RunSummary reports one finished run.
type RunSummary struct {
	RunUUID        string
	Sources        []string
	RecordsFetched int
	Inserted       int
	Updated        int
	Unchanged      int
	Linked         int
	Created        int
	ErrorCount     int
}

type Runner struct {
	pool     *db.Pool
	guard    *RunGuard
	ingester *ingest.Service
	matcher  *match.Service
	geocoder Geocoder
	adapters []Adapter
	delay    time.Duration
	actor    string
	logger   zerolog.Logger
}

func NewRunner(
	pool *db.Pool,
	guard *RunGuard,
	ingester *ingest.Service,
	matcher *match.Service,
	geocoder Geocoder,
	adapters []Adapter,
	delay time.Duration,
	actor string,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		pool:     pool,
		guard:    guard,
		ingester: ingester,
		matcher:  matcher,
		geocoder: geocoder,
		adapters: adapters,
		delay:    delay,
		actor:    actor,
		logger:   logger,
	}
}

func (r *Runner) Guard() *RunGuard {
	return r.guard
}

// Run executes one full scrape: fetch every adapter sequentially with the
// politeness delay, ingest the payloads, then match each entity type. The
// guard is released on every exit path.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("runner is not initialized")
	}
	if !r.guard.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.guard.Release()

	summary := &RunSummary{RunUUID: uuid.NewString()}
	for _, adapter := range r.adapters {
		summary.Sources = append(summary.Sources, adapter.Source())
	}

	runID, err := r.insertRun(ctx, summary)
	if err != nil {
		return nil, err
	}

	runErr := r.runAdapters(ctx, summary)
	if runErr == nil {
		r.matchAll(ctx, summary)
		r.backfillVenueCoordinates(ctx)
	}

	if err := r.finishRun(ctx, runID, summary, runErr); err != nil {
		r.logger.Error().Err(err).Str("run_uuid", summary.RunUUID).Msg("run bookkeeping update failed")
	}

	if runErr != nil {
		metrics.ScrapeRuns.WithLabelValues(runStatusFailed).Inc()
		return summary, runErr
	}
	metrics.ScrapeRuns.WithLabelValues(runStatusCompleted).Inc()
	r.logger.Info().
		Str("run_uuid", summary.RunUUID).
		Int("fetched", summary.RecordsFetched).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("linked", summary.Linked).
		Int("created", summary.Created).
		Int("errors", summary.ErrorCount).
		Msg("scrape run completed")
	return summary, nil
}

func (r *Runner) runAdapters(ctx context.Context, summary *RunSummary) error {
	for i, adapter := range r.adapters {
		if i > 0 && r.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.delay):
			}
		}

		records, err := adapter.Fetch(ctx)
		if err != nil {
			// One broken source does not abort the run; its records are
			// simply absent this time around.
			r.logger.Error().
				Err(domain.ExternalServiceError{Service: adapter.Source(), Err: err}).
				Str("source", adapter.Source()).
				Msg("source fetch failed; skipping source")
			summary.ErrorCount++
			continue
		}
		summary.RecordsFetched += len(records)

		payloads := make([]json.RawMessage, 0, len(records))
		for _, record := range records {
			encoded, err := json.Marshal(record)
			if err != nil {
				summary.ErrorCount++
				continue
			}
			payloads = append(payloads, encoded)
		}

		result, err := r.ingester.Ingest(ctx, payloads, ingest.Options{
			Scopes: []string{"venue", "artist", "organizer"},
		})
		if err != nil {
			return fmt.Errorf("ingest source %s: %w", adapter.Source(), err)
		}
		summary.Inserted += result.Inserted
		summary.Updated += result.Updated
		summary.Unchanged += result.Unchanged
		summary.ErrorCount += len(result.Errors)
	}
	return nil
}

// matchAll runs the matcher for dependencies first so freshly created venues
// and artists exist before events are scored.
func (r *Runner) matchAll(ctx context.Context, summary *RunSummary) {
	for _, entityType := range []domain.EntityType{
		domain.EntityVenue,
		domain.EntityArtist,
		domain.EntityOrganizer,
		domain.EntityEvent,
	} {
		result, err := r.matcher.Match(ctx, entityType)
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("entity_type", string(entityType)).
				Msg("matching failed; continuing with next type")
			summary.ErrorCount++
			continue
		}
		summary.Linked += result.Linked
		summary.Created += result.Created
	}
}

// backfillVenueCoordinates geocodes venues that still lack coordinates.
// Best-effort: failures leave the venue untouched.
func (r *Runner) backfillVenueCoordinates(ctx context.Context) {
	if r.geocoder == nil {
		return
	}

	const q = `
SELECT entity_id, fields
FROM agg.unified_entities
WHERE entity_type = 'venue'
  AND (fields->>'latitude' IS NULL OR fields->>'longitude' IS NULL)
ORDER BY entity_id
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error().Err(err).Msg("query venues without coordinates failed")
		return
	}
	defer rows.Close()

	type venueRow struct {
		entityID int64
		fields   map[string]any
	}
	var venues []venueRow
	for rows.Next() {
		var row venueRow
		var fieldsJSON []byte
		if err := rows.Scan(&row.entityID, &fieldsJSON); err != nil {
			r.logger.Error().Err(err).Msg("scan venue without coordinates failed")
			return
		}
		if err := json.Unmarshal(fieldsJSON, &row.fields); err != nil {
			continue
		}
		venues = append(venues, row)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("iterate venues without coordinates failed")
		return
	}

	for _, venue := range venues {
		address, _ := venue.fields["address"].(string)
		city, _ := venue.fields["city"].(string)
		country, _ := venue.fields["country"].(string)
		if address == "" && city == "" {
			continue
		}
		coords := r.geocoder.Geocode(ctx, address, city, country)
		if coords == nil {
			continue
		}
		venue.fields["latitude"] = coords.Latitude
		venue.fields["longitude"] = coords.Longitude

		fieldsJSON, err := json.Marshal(venue.fields)
		if err != nil {
			continue
		}
		const update = `
UPDATE agg.unified_entities
SET fields = $1::jsonb, updated_at = $2
WHERE entity_id = $3
`
		if _, err := r.pool.Exec(ctx, update, string(fieldsJSON), globaltime.UTC(), venue.entityID); err != nil {
			r.logger.Error().Err(err).Int64("entity_id", venue.entityID).Msg("store venue coordinates failed")
		}
	}
}

func (r *Runner) insertRun(ctx context.Context, summary *RunSummary) (int64, error) {
	const insert = `
INSERT INTO agg.scrape_runs (run_uuid, sources, started_at, status)
VALUES ($1, $2, $3, $4)
RETURNING run_id
`
	var runID int64
	err := r.pool.QueryRow(ctx, insert,
		summary.RunUUID,
		strings.Join(summary.Sources, ","),
		globaltime.UTC(),
		runStatusRunning,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert scrape run: %w", err)
	}
	return runID, nil
}

func (r *Runner) finishRun(ctx context.Context, runID int64, summary *RunSummary, runErr error) error {
	status := runStatusCompleted
	var errorMessage *string
	if runErr != nil {
		status = runStatusFailed
		message := runErr.Error()
		errorMessage = &message
	}

	const update = `
UPDATE agg.scrape_runs
SET finished_at = $1,
	status = $2,
	records_fetched = $3,
	inserted = $4,
	updated = $5,
	linked = $6,
	created = $7,
	error_count = $8,
	error_message = $9
WHERE run_id = $10
`
	if _, err := r.pool.Exec(ctx, update,
		globaltime.UTC(),
		status,
		summary.RecordsFetched,
		summary.Inserted,
		summary.Updated,
		summary.Linked,
		summary.Created,
		summary.ErrorCount,
		errorMessage,
		runID,
	); err != nil {
		return fmt.Errorf("finish scrape run: %w", err)
	}
	return nil
}
