package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
	"nightfeed.app/nightfeed/internal/merge"
	"nightfeed.app/nightfeed/internal/metrics"
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

// BulkFailure reports one entity a bulk transition could not move.
type BulkFailure struct {
	EntityUUID string `json:"id"`
	Error      string `json:"error"`
}

// BulkResult partitions a bulk transition: one entity failing never blocks
// the others.
type BulkResult struct {
	Success []string      `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

type lockedEvent struct {
	EntityID     int64
	Status       Status
	Fields       map[string]any
	FieldSources map[string]string
}

// Transition moves the event to the requested status. Pending carries field
// values not yet persisted (an in-flight operator edit); the publish gate
// evaluates the entity as it would exist after that edit. The status write,
// the state-history row and the audit entry commit atomically.
func (s *Service) Transition(ctx context.Context, entityUUID string, to Status, actor string, pending map[string]any) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("workflow service is not initialized")
	}
	if _, ok := ParseStatus(string(to)); !ok {
		return fmt.Errorf("unknown status %q", to)
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}

	event, err := lockEvent(ctx, tx, entityUUID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if !CanTransition(event.Status, to) {
		_ = tx.Rollback(ctx)
		metrics.Transitions.WithLabelValues(string(to), "invalid").Inc()
		return domain.InvalidTransitionError{From: string(event.Status), To: string(to)}
	}
	if event.Status == to {
		_ = tx.Rollback(ctx)
		metrics.Transitions.WithLabelValues(string(to), "noop").Inc()
		return nil
	}

	if isGated(to) {
		merged, err := s.mergedView(ctx, tx, event, pending)
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if missing := missingPublishFields(merged); len(missing) > 0 {
			_ = tx.Rollback(ctx)
			metrics.Transitions.WithLabelValues(string(to), "blocked").Inc()
			return domain.ValidationError{Missing: missing}
		}
	}

	if err := writeTransition(ctx, tx, event, to, actor); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit transition tx: %w", err)
	}

	metrics.Transitions.WithLabelValues(string(to), "ok").Inc()
	s.logger.Info().
		Str("entity_uuid", entityUUID).
		Str("from", string(event.Status)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("event status transitioned")
	return nil
}

// PublishStatus applies the transition to every id independently and returns
// the success/failure partition.
func (s *Service) PublishStatus(ctx context.Context, entityUUIDs []string, to Status, actor string) BulkResult {
	result := BulkResult{
		Success: make([]string, 0, len(entityUUIDs)),
		Failed:  make([]BulkFailure, 0),
	}
	for _, id := range entityUUIDs {
		if err := s.Transition(ctx, id, to, actor, nil); err != nil {
			result.Failed = append(result.Failed, BulkFailure{EntityUUID: id, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result
}

func lockEvent(ctx context.Context, tx db.Tx, entityUUID string) (*lockedEvent, error) {
	const q = `
SELECT entity_id, status, fields, field_sources
FROM agg.unified_entities
WHERE entity_uuid = $1
  AND entity_type = 'event'
FOR UPDATE
`
	var event lockedEvent
	var status *string
	var fieldsJSON, sourcesJSON []byte
	err := tx.QueryRow(ctx, q, entityUUID).Scan(&event.EntityID, &status, &fieldsJSON, &sourcesJSON)
	if db.IsNoRows(err) {
		return nil, domain.NotFoundError{Kind: "event", Ref: entityUUID}
	}
	if err != nil {
		return nil, fmt.Errorf("lock event %s: %w", entityUUID, err)
	}

	event.Status = StatusScrapedDraft
	if status != nil && *status != "" {
		parsed, ok := ParseStatus(*status)
		if !ok {
			return nil, fmt.Errorf("event %s holds unknown status %q", entityUUID, *status)
		}
		event.Status = parsed
	}
	if err := json.Unmarshal(fieldsJSON, &event.Fields); err != nil {
		return nil, fmt.Errorf("decode event fields %s: %w", entityUUID, err)
	}
	if err := json.Unmarshal(sourcesJSON, &event.FieldSources); err != nil {
		return nil, fmt.Errorf("decode event field sources %s: %w", entityUUID, err)
	}
	return &event, nil
}

// mergedView resolves the event's display fields and overlays the pending
// edit on top.
func (s *Service) mergedView(ctx context.Context, tx db.Tx, event *lockedEvent, pending map[string]any) (map[string]any, error) {
	values, err := merge.LoadValues(ctx, tx, domain.EntityEvent, event.EntityID, event.Fields, event.FieldSources)
	if err != nil {
		return nil, err
	}
	resolved, _ := merge.ResolveAll(domain.EntityEvent, values)
	for field, value := range pending {
		if domain.IsComparableField(domain.EntityEvent, field) {
			resolved[field] = value
		}
	}
	return resolved, nil
}

func writeTransition(ctx context.Context, tx db.Tx, event *lockedEvent, to Status, actor string) error {
	now := globaltime.UTC()

	const update = `
UPDATE agg.unified_entities
SET status = $1, updated_at = $2
WHERE entity_id = $3
`
	if _, err := tx.Exec(ctx, update, string(to), now, event.EntityID); err != nil {
		return fmt.Errorf("update event status: %w", err)
	}

	const history = `
INSERT INTO agg.event_state_history (entity_id, from_status, to_status, actor, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := tx.Exec(ctx, history, event.EntityID, string(event.Status), string(to), actor, now); err != nil {
		return fmt.Errorf("insert state history: %w", err)
	}

	changes, err := json.Marshal(map[string]domain.FieldChange{
		"status": {Old: string(event.Status), New: string(to)},
	})
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	const audit = `
INSERT INTO agg.audit_logs (entity_type, entity_id, action, changes, performed_by, created_at)
VALUES ('event', $1, 'STATUS_CHANGE', $2::jsonb, $3, $4)
`
	if _, err := tx.Exec(ctx, audit, event.EntityID, string(changes), actor, now); err != nil {
		return fmt.Errorf("insert transition audit entry: %w", err)
	}
	return nil
}
