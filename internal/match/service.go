// Package match links unlinked scraped records to canonical unified entities,
// creating a new entity when no candidate scores past the acceptance
// threshold. Matching is idempotent: records holding a source link are never
// re-scored.
package match

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/metrics"
	"nightfeed.app/nightfeed/internal/workflow"
)

const (
	// acceptanceThreshold is the combined score a candidate must exceed to be
	// linked instead of spawning a new entity.
	acceptanceThreshold = 85.0

	// cityBonus is added to an event candidate's score when the city names
	// agree closely enough.
	cityBonus              = 10.0
	cityBonusMinSimilarity = 80.0
)

type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

type Result struct {
	Linked  int
	Created int
	Skipped int
}

type scrapedCandidate struct {
	RecordID   int64
	SourceCode string
	Fields     map[string]any
}

type entityCandidate struct {
	EntityID  int64
	Fields    map[string]any
	LinkCount int
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

// Match scores every unlinked scraped record of the type against the current
// unified entities and persists the outcome: a confidence-scored link to the
// best candidate, or a freshly seeded entity with a primary link.
func (s *Service) Match(ctx context.Context, entityType domain.EntityType) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("match service is not initialized")
	}
	if !entityType.Valid() {
		return Result{}, fmt.Errorf("invalid entity type %q", entityType)
	}

	entities, err := s.loadEntityCandidates(ctx, entityType)
	if err != nil {
		return Result{}, err
	}
	unlinked, err := s.loadUnlinkedRecords(ctx, entityType)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, record := range unlinked {
		name := fieldString(record.Fields, domain.NameField(entityType))
		if NormalizeName(name) == "" {
			result.Skipped++
			metrics.MatchDecisions.WithLabelValues(string(entityType), "skipped").Inc()
			continue
		}

		best := pickBestCandidate(entityType, record, entities)
		if best != nil && best.score > acceptanceThreshold {
			if err := s.linkTx(ctx, best.entity.EntityID, record, best.score/100); err != nil {
				s.logger.Error().
					Err(err).
					Str("entity_type", string(entityType)).
					Int64("scraped_record_id", record.RecordID).
					Msg("link failed; continuing with next record")
				continue
			}
			best.entity.LinkCount++
			result.Linked++
			metrics.MatchDecisions.WithLabelValues(string(entityType), "linked").Inc()
			continue
		}

		entityID, err := s.createEntityTx(ctx, entityType, record)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("entity_type", string(entityType)).
				Int64("scraped_record_id", record.RecordID).
				Msg("entity creation failed; continuing with next record")
			continue
		}
		// New entities join the candidate pool immediately so later records
		// in the same run can still converge onto them.
		entities = append(entities, &entityCandidate{
			EntityID:  entityID,
			Fields:    record.Fields,
			LinkCount: 1,
		})
		result.Created++
		metrics.MatchDecisions.WithLabelValues(string(entityType), "created").Inc()
	}

	return result, nil
}

type scoredCandidate struct {
	entity *entityCandidate
	score  float64
}

// pickBestCandidate applies the per-type scoring rules and the richer-record
// tie-break: equal scores go to the entity with more linked sources.
func pickBestCandidate(entityType domain.EntityType, record scrapedCandidate, entities []*entityCandidate) *scoredCandidate {
	recordName := fieldString(record.Fields, domain.NameField(entityType))

	var best *scoredCandidate
	for _, entity := range entities {
		score, ok := scoreCandidate(entityType, recordName, record.Fields, entity.Fields)
		if !ok {
			continue
		}
		switch {
		case best == nil,
			score > best.score,
			score == best.score && entity.LinkCount > best.entity.LinkCount:
			best = &scoredCandidate{entity: entity, score: score}
		}
	}
	return best
}

func scoreCandidate(entityType domain.EntityType, recordName string, recordFields, entityFields map[string]any) (float64, bool) {
	entityName := fieldString(entityFields, domain.NameField(entityType))
	similarity := NameSimilarity(recordName, entityName)
	if similarity == 0 {
		return 0, false
	}

	switch entityType {
	case domain.EntityEvent:
		// Same name on a different date is a different event.
		recordDate := fieldString(recordFields, "date")
		entityDate := fieldString(entityFields, "date")
		if recordDate == "" || recordDate != entityDate {
			return 0, false
		}
		citySim := NameSimilarity(fieldString(recordFields, "venue_city"), fieldString(entityFields, "venue_city"))
		if citySim >= cityBonusMinSimilarity {
			similarity += cityBonus
		}
	case domain.EntityVenue:
		recordCity := NormalizeName(fieldString(recordFields, "city"))
		entityCity := NormalizeName(fieldString(entityFields, "city"))
		if recordCity == "" || recordCity != entityCity {
			return 0, false
		}
	}

	if similarity > 100 {
		similarity = 100
	}
	return similarity, true
}

func (s *Service) loadEntityCandidates(ctx context.Context, entityType domain.EntityType) ([]*entityCandidate, error) {
	const q = `
SELECT
	ue.entity_id,
	ue.fields,
	COUNT(sl.source_link_id)::INT AS link_count
FROM agg.unified_entities ue
LEFT JOIN agg.source_links sl ON sl.entity_id = ue.entity_id
WHERE ue.entity_type = $1
GROUP BY ue.entity_id, ue.fields
ORDER BY ue.entity_id
`
	rows, err := s.pool.Query(ctx, q, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("query entity candidates: %w", err)
	}
	defer rows.Close()

	var entities []*entityCandidate
	for rows.Next() {
		var candidate entityCandidate
		var fieldsJSON []byte
		if err := rows.Scan(&candidate.EntityID, &fieldsJSON, &candidate.LinkCount); err != nil {
			return nil, fmt.Errorf("scan entity candidate: %w", err)
		}
		if err := json.Unmarshal(fieldsJSON, &candidate.Fields); err != nil {
			return nil, fmt.Errorf("decode entity fields entity_id=%d: %w", candidate.EntityID, err)
		}
		entities = append(entities, &candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity candidates: %w", err)
	}
	return entities, nil
}

func (s *Service) loadUnlinkedRecords(ctx context.Context, entityType domain.EntityType) ([]scrapedCandidate, error) {
	const q = `
SELECT
	sr.scraped_record_id,
	sr.source_code,
	sr.fields
FROM agg.scraped_records sr
WHERE sr.entity_type = $1
  AND NOT EXISTS (
	SELECT 1
	FROM agg.source_links sl
	WHERE sl.scraped_record_id = sr.scraped_record_id
  )
ORDER BY sr.scraped_record_id
`
	rows, err := s.pool.Query(ctx, q, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("query unlinked scraped records: %w", err)
	}
	defer rows.Close()

	var records []scrapedCandidate
	for rows.Next() {
		var record scrapedCandidate
		var fieldsJSON []byte
		if err := rows.Scan(&record.RecordID, &record.SourceCode, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan unlinked record: %w", err)
		}
		if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
			return nil, fmt.Errorf("decode scraped fields record_id=%d: %w", record.RecordID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlinked scraped records: %w", err)
	}
	return records, nil
}

// linkTx inserts one source link. The record becomes the primary for its
// source only when the entity does not already hold one.
func (s *Service) linkTx(ctx context.Context, entityID int64, record scrapedCandidate, confidence float64) error {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin link tx: %w", err)
	}

	if err := insertLink(ctx, tx, entityID, record.RecordID, record.SourceCode, confidence); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit link tx: %w", err)
	}
	return nil
}

func insertLink(ctx context.Context, tx db.Tx, entityID, recordID int64, sourceCode string, confidence float64) error {
	const primaryCheck = `
SELECT EXISTS (
	SELECT 1
	FROM agg.source_links
	WHERE entity_id = $1
	  AND source_code = $2
	  AND is_primary
)
`
	var hasPrimary bool
	if err := tx.QueryRow(ctx, primaryCheck, entityID, sourceCode).Scan(&hasPrimary); err != nil {
		return fmt.Errorf("check primary link entity_id=%d source=%s: %w", entityID, sourceCode, err)
	}

	const insert = `
INSERT INTO agg.source_links (
	entity_id,
	scraped_record_id,
	source_code,
	confidence,
	is_primary,
	matched_at
)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (scraped_record_id) DO NOTHING
`
	if _, err := tx.Exec(ctx, insert, entityID, recordID, sourceCode, confidence, !hasPrimary, globaltime.UTC()); err != nil {
		return fmt.Errorf("insert source link entity_id=%d record_id=%d: %w", entityID, recordID, err)
	}
	return nil
}

// createEntityTx seeds a unified entity from the scraped record and links it
// with full confidence, atomically.
func (s *Service) createEntityTx(ctx context.Context, entityType domain.EntityType, record scrapedCandidate) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin create tx: %w", err)
	}

	entityID, err := createEntity(ctx, tx, entityType, record)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := insertLink(ctx, tx, entityID, record.RecordID, record.SourceCode, 1.0); err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("commit create tx: %w", err)
	}
	return entityID, nil
}

func createEntity(ctx context.Context, tx db.Tx, entityType domain.EntityType, record scrapedCandidate) (int64, error) {
	fieldSources := make(map[string]string, len(record.Fields))
	for field := range record.Fields {
		fieldSources[field] = record.SourceCode
	}

	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return 0, fmt.Errorf("marshal entity fields: %w", err)
	}
	sourcesJSON, err := json.Marshal(fieldSources)
	if err != nil {
		return 0, fmt.Errorf("marshal field sources: %w", err)
	}

	var status *string
	if entityType == domain.EntityEvent {
		initial := string(workflow.StatusScrapedDraft)
		status = &initial
	}

	now := globaltime.UTC()

	const insert = `
INSERT INTO agg.unified_entities (
	entity_uuid,
	entity_type,
	fields,
	field_sources,
	status,
	created_by,
	created_at,
	updated_at
)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $7)
RETURNING entity_id
`
	var entityID int64
	if err := tx.QueryRow(ctx, insert,
		uuid.NewString(),
		string(entityType),
		string(fieldsJSON),
		string(sourcesJSON),
		status,
		"matcher",
		now,
	).Scan(&entityID); err != nil {
		return 0, fmt.Errorf("insert unified entity: %w", err)
	}

	const audit = `
INSERT INTO agg.audit_logs (entity_type, entity_id, action, changes, performed_by, created_at)
VALUES ($1, $2, 'CREATE', $3::jsonb, $4, $5)
`
	if _, err := tx.Exec(ctx, audit, string(entityType), entityID, string(fieldsJSON), "matcher", now); err != nil {
		return 0, fmt.Errorf("insert create audit entry: %w", err)
	}

	return entityID, nil
}

func fieldString(fields map[string]any, name string) string {
	if fields == nil {
		return ""
	}
	if value, ok := fields[name].(string); ok {
		return value
	}
	return ""
}
