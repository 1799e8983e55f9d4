// Package ingest implements the change-detection processor: upsert scraped
// records by natural key, diff normalized values against the stored row, and
// classify every record as insert, real update, or no-op.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/metrics"
	"nightfeed.app/nightfeed/internal/normalize"
	payloadschema "nightfeed.app/nightfeed/schema"
)

type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

// Options selects which nested sub-entities spawn their own scraped records.
type Options struct {
	Scopes []string
}

func (o Options) scoped(entityType domain.EntityType) bool {
	for _, scope := range o.Scopes {
		if strings.EqualFold(strings.TrimSpace(scope), string(entityType)) {
			return true
		}
	}
	return false
}

// RecordError ties one failed record to its natural key. A bad record never
// aborts the batch.
type RecordError struct {
	Key domain.NaturalKey
	Err error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

type Result struct {
	Inserted          int
	Updated           int
	Unchanged         int
	CreatedVenues     int
	CreatedArtists    int
	CreatedOrganizers int
	Errors            []RecordError
}

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
)

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

// Ingest processes a batch of raw scraped payloads. Each record runs in its
// own transaction; failures are collected per record and the batch continues.
func (s *Service) Ingest(ctx context.Context, payloads []json.RawMessage, opts Options) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	var result Result
	for _, payload := range payloads {
		record, err := payloadschema.ValidateScrapedRecordPayload(payload)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Key: lenientKey(payload), Err: err})
			metrics.RecordsIngested.WithLabelValues("error").Inc()
			continue
		}

		entityType, err := domain.ParseEntityType(record.EntityType)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Key: lenientKey(payload), Err: err})
			metrics.RecordsIngested.WithLabelValues("error").Inc()
			continue
		}

		key := domain.NaturalKey{
			EntityType:       entityType,
			SourceCode:       strings.ToLower(strings.TrimSpace(record.SourceCode)),
			SourceExternalID: strings.TrimSpace(record.SourceExternalID),
		}

		out, err := s.ingestOne(ctx, key, record.Fields, payload)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Key: key, Err: err})
			metrics.RecordsIngested.WithLabelValues("error").Inc()
			continue
		}
		result.count(out)
		metrics.RecordsIngested.WithLabelValues(string(out)).Inc()

		s.ingestSubRecords(ctx, record, key, opts, &result)
	}

	return result, nil
}

func (r *Result) count(out outcome) {
	switch out {
	case outcomeInserted:
		r.Inserted++
	case outcomeUpdated:
		r.Updated++
	case outcomeUnchanged:
		r.Unchanged++
	}
}

// ingestSubRecords creates scraped records for nested venue/artist/organizer
// payloads when their scope is enabled. Only first sightings count toward the
// created_* totals.
func (s *Service) ingestSubRecords(ctx context.Context, record *payloadschema.ScrapedRecord, parent domain.NaturalKey, opts Options, result *Result) {
	type subIngest struct {
		entityType domain.EntityType
		sub        payloadschema.SubRecord
	}

	subs := make([]subIngest, 0, 2+len(record.Artists))
	if record.Venue != nil && opts.scoped(domain.EntityVenue) {
		subs = append(subs, subIngest{entityType: domain.EntityVenue, sub: *record.Venue})
	}
	if record.Organizer != nil && opts.scoped(domain.EntityOrganizer) {
		subs = append(subs, subIngest{entityType: domain.EntityOrganizer, sub: *record.Organizer})
	}
	if opts.scoped(domain.EntityArtist) {
		for _, artist := range record.Artists {
			subs = append(subs, subIngest{entityType: domain.EntityArtist, sub: artist})
		}
	}

	for _, item := range subs {
		key := domain.NaturalKey{
			EntityType:       item.entityType,
			SourceCode:       parent.SourceCode,
			SourceExternalID: strings.TrimSpace(item.sub.SourceExternalID),
		}

		raw, err := json.Marshal(map[string]any{
			"payload_version":    "v1",
			"entity_type":        string(item.entityType),
			"source_code":        parent.SourceCode,
			"source_external_id": key.SourceExternalID,
			"fields":             item.sub.Fields,
		})
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Key: key, Err: fmt.Errorf("marshal sub-record: %w", err)})
			continue
		}

		out, err := s.ingestOne(ctx, key, item.sub.Fields, raw)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Key: key, Err: err})
			metrics.RecordsIngested.WithLabelValues("error").Inc()
			continue
		}
		metrics.RecordsIngested.WithLabelValues(string(out)).Inc()
		if out != outcomeInserted {
			continue
		}
		switch item.entityType {
		case domain.EntityVenue:
			result.CreatedVenues++
		case domain.EntityArtist:
			result.CreatedArtists++
		case domain.EntityOrganizer:
			result.CreatedOrganizers++
		}
	}
}

func (s *Service) ingestOne(ctx context.Context, key domain.NaturalKey, rawFields map[string]any, rawPayload json.RawMessage) (outcome, error) {
	incoming := normalize.Fields(key.EntityType, rawFields)

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin ingest tx: %w", err)
	}

	out, err := s.ingestOneTx(ctx, tx, key, incoming, rawPayload)
	if err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}

	if out == outcomeUnchanged {
		// Nothing was written; rolling back keeps the no-op truly write-free.
		if err := tx.Rollback(ctx); err != nil {
			return "", fmt.Errorf("release unchanged ingest tx: %w", err)
		}
		return out, nil
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("commit ingest tx: %w", err)
	}
	return out, nil
}

func (s *Service) ingestOneTx(ctx context.Context, tx db.Tx, key domain.NaturalKey, incoming map[string]any, rawPayload json.RawMessage) (outcome, error) {
	const claim = `
SELECT scraped_record_id, fields
FROM agg.scraped_records
WHERE entity_type = $1
  AND source_code = $2
  AND source_external_id = $3
FOR UPDATE
`

	var recordID int64
	var storedFieldsJSON []byte
	err := tx.QueryRow(ctx, claim, string(key.EntityType), key.SourceCode, key.SourceExternalID).
		Scan(&recordID, &storedFieldsJSON)
	if err != nil && !db.IsNoRows(err) {
		return "", fmt.Errorf("claim scraped record %s: %w", key, err)
	}

	now := globaltime.UTC()

	if db.IsNoRows(err) {
		incomingJSON, marshalErr := json.Marshal(incoming)
		if marshalErr != nil {
			return "", fmt.Errorf("marshal normalized fields %s: %w", key, marshalErr)
		}

		const insert = `
INSERT INTO agg.scraped_records (
	scraped_record_uuid,
	entity_type,
	source_code,
	source_external_id,
	fields,
	raw_payload,
	has_changes,
	changes,
	first_seen_at,
	last_seen_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, false, NULL, $7, $7, $7, $7)
`
		if _, execErr := tx.Exec(ctx, insert,
			uuid.NewString(),
			string(key.EntityType),
			key.SourceCode,
			key.SourceExternalID,
			string(incomingJSON),
			string(rawPayload),
			now,
		); execErr != nil {
			return "", fmt.Errorf("insert scraped record %s: %w", key, execErr)
		}
		return outcomeInserted, nil
	}

	stored, err := decodeFieldMap(storedFieldsJSON)
	if err != nil {
		return "", fmt.Errorf("decode stored fields %s: %w", key, err)
	}

	// Stored values pass through the same normalizer as the incoming ones.
	// Diffing raw against normalized manufactures phantom updates.
	storedNormalized := normalize.Fields(key.EntityType, stored)

	changes := diffFields(key.EntityType, storedNormalized, incoming)
	if len(changes) == 0 {
		return outcomeUnchanged, nil
	}

	incomingJSON, err := json.Marshal(incoming)
	if err != nil {
		return "", fmt.Errorf("marshal normalized fields %s: %w", key, err)
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("marshal change set %s: %w", key, err)
	}

	const update = `
UPDATE agg.scraped_records
SET
	fields = $2::jsonb,
	raw_payload = $3::jsonb,
	has_changes = true,
	changes = $4::jsonb,
	last_seen_at = $5,
	updated_at = $5
WHERE scraped_record_id = $1
`
	if _, err := tx.Exec(ctx, update, recordID, string(incomingJSON), string(rawPayload), string(changesJSON), now); err != nil {
		return "", fmt.Errorf("update scraped record %s: %w", key, err)
	}
	return outcomeUpdated, nil
}

func decodeFieldMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// lenientKey pulls whatever key fields an unparseable payload still exposes,
// so its batch error is attributable.
func lenientKey(payload json.RawMessage) domain.NaturalKey {
	var probe struct {
		EntityType       string `json:"entity_type"`
		SourceCode       string `json:"source_code"`
		SourceExternalID string `json:"source_external_id"`
	}
	_ = json.Unmarshal(payload, &probe)
	return domain.NaturalKey{
		EntityType:       domain.EntityType(strings.TrimSpace(probe.EntityType)),
		SourceCode:       strings.ToLower(strings.TrimSpace(probe.SourceCode)),
		SourceExternalID: strings.TrimSpace(probe.SourceExternalID),
	}
}
