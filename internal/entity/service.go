// Package entity owns direct operations on unified entities: operator
// creation and edits, the merged read view, and the job folding detected
// scraped changes into the canonical record.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/merge"
	"nightfeed.app/nightfeed/internal/normalize"
	"nightfeed.app/nightfeed/internal/workflow"
)

type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

// LinkedSource describes one scraped record backing a unified entity.
type LinkedSource struct {
	SourceCode       string  `json:"source_code"`
	SourceExternalID string  `json:"source_external_id"`
	Confidence       float64 `json:"confidence"`
	IsPrimary        bool    `json:"is_primary"`
}

// View is the merged, display-ready form of a unified entity.
type View struct {
	EntityUUID string            `json:"entity_uuid"`
	EntityType string            `json:"entity_type"`
	Status     string            `json:"status,omitempty"`
	Fields     map[string]any    `json:"fields"`
	Display    map[string]string `json:"display"`
	Provenance map[string]string `json:"provenance"`
	Sources    []LinkedSource    `json:"sources"`
}

// Create inserts an operator-authored entity. It carries no scraped backing:
// every field is sourced "og" and events start in MANUAL_DRAFT.
func (s *Service) Create(ctx context.Context, entityType domain.EntityType, rawFields map[string]any, actor string) (string, error) {
	if !entityType.Valid() {
		return "", fmt.Errorf("invalid entity type %q", entityType)
	}
	fields := normalize.Fields(entityType, rawFields)
	if fieldString(fields, domain.NameField(entityType)) == "" {
		return "", domain.ValidationError{Missing: []string{domain.NameField(entityType)}}
	}

	fieldSources := make(map[string]string, len(fields))
	for field := range fields {
		fieldSources[field] = domain.SourceManual
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal entity fields: %w", err)
	}
	sourcesJSON, err := json.Marshal(fieldSources)
	if err != nil {
		return "", fmt.Errorf("marshal field sources: %w", err)
	}

	var status *string
	if entityType == domain.EntityEvent {
		initial := string(workflow.StatusManualDraft)
		status = &initial
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin create tx: %w", err)
	}

	entityUUID := uuid.NewString()
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
		entityUUID,
		string(entityType),
		string(fieldsJSON),
		string(sourcesJSON),
		status,
		actor,
		now,
	).Scan(&entityID); err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("insert unified entity: %w", err)
	}

	if err := insertAudit(ctx, tx, entityType, entityID, "CREATE", fieldsJSON, actor, now); err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return "", fmt.Errorf("commit create tx: %w", err)
	}

	s.logger.Info().
		Str("entity_type", string(entityType)).
		Str("entity_uuid", entityUUID).
		Str("actor", actor).
		Msg("entity created")
	return entityUUID, nil
}

// Update applies an operator edit. Changed fields become manually overridden:
// their provenance flips to "og" and scraper updates no longer touch them.
// Value-identical edits write nothing.
func (s *Service) Update(ctx context.Context, entityUUID string, rawFields map[string]any, actor string) (domain.ChangeSet, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}

	entityID, entityType, stored, fieldSources, err := lockEntity(ctx, tx, entityUUID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	incoming := normalize.Fields(entityType, rawFields)
	changes := make(domain.ChangeSet)
	for field, value := range incoming {
		if !domain.IsComparableField(entityType, field) {
			continue
		}
		if valuesEqual(stored[field], value) {
			continue
		}
		changes[field] = domain.FieldChange{Old: stored[field], New: value}
		stored[field] = value
		fieldSources[field] = domain.SourceManual
	}
	if len(changes) == 0 {
		_ = tx.Rollback(ctx)
		return nil, nil
	}

	if err := writeEntityFields(ctx, tx, entityID, stored, fieldSources); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("marshal update changes: %w", err)
	}
	if err := insertAudit(ctx, tx, entityType, entityID, "UPDATE", changesJSON, actor, globaltime.UTC()); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("commit update tx: %w", err)
	}
	return changes, nil
}

// View resolves the entity's merged display form from its own fields and all
// linked scraped records.
func (s *Service) View(ctx context.Context, entityUUID string) (*View, error) {
	const q = `
SELECT entity_id, entity_type, status, fields, field_sources
FROM agg.unified_entities
WHERE entity_uuid = $1
`
	var entityID int64
	var entityTypeRaw string
	var status *string
	var fieldsJSON, sourcesJSON []byte
	err := s.pool.QueryRow(ctx, q, entityUUID).Scan(&entityID, &entityTypeRaw, &status, &fieldsJSON, &sourcesJSON)
	if db.IsNoRows(err) {
		return nil, domain.NotFoundError{Kind: "entity", Ref: entityUUID}
	}
	if err != nil {
		return nil, fmt.Errorf("query entity %s: %w", entityUUID, err)
	}

	entityType, err := domain.ParseEntityType(entityTypeRaw)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return nil, fmt.Errorf("decode entity fields %s: %w", entityUUID, err)
	}
	var fieldSources map[string]string
	if err := json.Unmarshal(sourcesJSON, &fieldSources); err != nil {
		return nil, fmt.Errorf("decode field sources %s: %w", entityUUID, err)
	}

	values, err := merge.LoadValues(ctx, s.pool, entityType, entityID, fields, fieldSources)
	if err != nil {
		return nil, err
	}
	resolved, provenance := merge.ResolveAll(entityType, values)

	display := make(map[string]string, len(domain.ComparableFields(entityType)))
	for _, field := range domain.ComparableFields(entityType) {
		display[field] = merge.Format(resolved[field])
	}

	sources, err := s.loadLinkedSources(ctx, entityID)
	if err != nil {
		return nil, err
	}

	view := &View{
		EntityUUID: entityUUID,
		EntityType: entityTypeRaw,
		Fields:     resolved,
		Display:    display,
		Provenance: provenance,
		Sources:    sources,
	}
	if status != nil {
		view.Status = *status
	}
	return view, nil
}

func (s *Service) loadLinkedSources(ctx context.Context, entityID int64) ([]LinkedSource, error) {
	const q = `
SELECT sl.source_code, sr.source_external_id, sl.confidence, sl.is_primary
FROM agg.source_links sl
JOIN agg.scraped_records sr ON sr.scraped_record_id = sl.scraped_record_id
WHERE sl.entity_id = $1
ORDER BY sl.source_link_id
`
	rows, err := s.pool.Query(ctx, q, entityID)
	if err != nil {
		return nil, fmt.Errorf("query linked sources entity_id=%d: %w", entityID, err)
	}
	defer rows.Close()

	sources := make([]LinkedSource, 0, 4)
	for rows.Next() {
		var link LinkedSource
		if err := rows.Scan(&link.SourceCode, &link.SourceExternalID, &link.Confidence, &link.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan linked source: %w", err)
		}
		sources = append(sources, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked sources entity_id=%d: %w", entityID, err)
	}
	return sources, nil
}

func lockEntity(ctx context.Context, tx db.Tx, entityUUID string) (int64, domain.EntityType, map[string]any, map[string]string, error) {
	const q = `
SELECT entity_id, entity_type, fields, field_sources
FROM agg.unified_entities
WHERE entity_uuid = $1
FOR UPDATE
`
	var entityID int64
	var entityTypeRaw string
	var fieldsJSON, sourcesJSON []byte
	err := tx.QueryRow(ctx, q, entityUUID).Scan(&entityID, &entityTypeRaw, &fieldsJSON, &sourcesJSON)
	if db.IsNoRows(err) {
		return 0, "", nil, nil, domain.NotFoundError{Kind: "entity", Ref: entityUUID}
	}
	if err != nil {
		return 0, "", nil, nil, fmt.Errorf("lock entity %s: %w", entityUUID, err)
	}

	entityType, err := domain.ParseEntityType(entityTypeRaw)
	if err != nil {
		return 0, "", nil, nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return 0, "", nil, nil, fmt.Errorf("decode entity fields %s: %w", entityUUID, err)
	}
	var fieldSources map[string]string
	if err := json.Unmarshal(sourcesJSON, &fieldSources); err != nil {
		return 0, "", nil, nil, fmt.Errorf("decode field sources %s: %w", entityUUID, err)
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	if fieldSources == nil {
		fieldSources = make(map[string]string)
	}
	return entityID, entityType, fields, fieldSources, nil
}

func writeEntityFields(ctx context.Context, tx db.Tx, entityID int64, fields map[string]any, fieldSources map[string]string) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal entity fields: %w", err)
	}
	sourcesJSON, err := json.Marshal(fieldSources)
	if err != nil {
		return fmt.Errorf("marshal field sources: %w", err)
	}
	const update = `
UPDATE agg.unified_entities
SET fields = $1::jsonb, field_sources = $2::jsonb, updated_at = $3
WHERE entity_id = $4
`
	if _, err := tx.Exec(ctx, update, string(fieldsJSON), string(sourcesJSON), globaltime.UTC(), entityID); err != nil {
		return fmt.Errorf("update entity fields entity_id=%d: %w", entityID, err)
	}
	return nil
}

func insertAudit(ctx context.Context, tx db.Tx, entityType domain.EntityType, entityID int64, action string, changes []byte, actor string, at time.Time) error {
	const audit = `
INSERT INTO agg.audit_logs (entity_type, entity_id, action, changes, performed_by, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
`
	if _, err := tx.Exec(ctx, audit, string(entityType), entityID, action, string(changes), actor, at); err != nil {
		return fmt.Errorf("insert %s audit entry entity_id=%d: %w", action, entityID, err)
	}
	return nil
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

func fieldString(fields map[string]any, name string) string {
	if value, ok := fields[name].(string); ok {
		return value
	}
	return ""
}
