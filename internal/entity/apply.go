package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
	"nightfeed.app/nightfeed/internal/globaltime"
)

// ApplyResult summarizes one apply-changes pass.
type ApplyResult struct {
	Applied   int
	Untouched int
	Errors    []error
}

type pendingRecord struct {
	RecordID   int64
	SourceCode string
	EntityID   int64
}

// ApplyChanges folds the detected diffs of every flagged, linked scraped
// record into its unified entity. Manually overridden fields are left alone.
// Each record is applied in its own transaction; one record failing never
// blocks the rest.
func (s *Service) ApplyChanges(ctx context.Context, entityType domain.EntityType, actor string) (ApplyResult, error) {
	if s == nil || s.pool == nil {
		return ApplyResult{}, fmt.Errorf("entity service is not initialized")
	}
	if !entityType.Valid() {
		return ApplyResult{}, fmt.Errorf("invalid entity type %q", entityType)
	}

	pending, err := s.loadPendingRecords(ctx, entityType)
	if err != nil {
		return ApplyResult{}, err
	}

	var result ApplyResult
	for _, record := range pending {
		applied, err := s.applyOne(ctx, entityType, record, actor)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("entity_type", string(entityType)).
				Int64("scraped_record_id", record.RecordID).
				Msg("apply changes failed; continuing with next record")
			result.Errors = append(result.Errors, fmt.Errorf("record %d: %w", record.RecordID, err))
			continue
		}
		if applied {
			result.Applied++
		} else {
			result.Untouched++
		}
	}
	return result, nil
}

func (s *Service) loadPendingRecords(ctx context.Context, entityType domain.EntityType) ([]pendingRecord, error) {
	const q = `
SELECT sr.scraped_record_id, sr.source_code, sl.entity_id
FROM agg.scraped_records sr
JOIN agg.source_links sl ON sl.scraped_record_id = sr.scraped_record_id
WHERE sr.entity_type = $1
  AND sr.has_changes
ORDER BY sr.scraped_record_id
`
	rows, err := s.pool.Query(ctx, q, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("query flagged records: %w", err)
	}
	defer rows.Close()

	var pending []pendingRecord
	for rows.Next() {
		var record pendingRecord
		if err := rows.Scan(&record.RecordID, &record.SourceCode, &record.EntityID); err != nil {
			return nil, fmt.Errorf("scan flagged record: %w", err)
		}
		pending = append(pending, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flagged records: %w", err)
	}
	return pending, nil
}

// applyOne re-reads the record under lock so a concurrent re-ingestion cannot
// slip a newer diff underneath, then folds the diff into the entity. Reports
// whether any entity field actually moved.
func (s *Service) applyOne(ctx context.Context, entityType domain.EntityType, record pendingRecord, actor string) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin apply tx: %w", err)
	}

	applied, err := applyOneTx(ctx, tx, entityType, record, actor, globaltime.UTC())
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("commit apply tx: %w", err)
	}
	return applied, nil
}

// foldChanges folds a scraped diff into the entity's field maps in place and
// returns what actually moved. Unknown fields, operator-overridden fields and
// values the entity already holds are left alone.
func foldChanges(entityType domain.EntityType, changes domain.ChangeSet, fields map[string]any, fieldSources map[string]string, sourceCode string) domain.ChangeSet {
	folded := make(domain.ChangeSet)
	for field, change := range changes {
		if !domain.IsComparableField(entityType, field) {
			continue
		}
		// Operator overrides stay put until the operator lifts them.
		if fieldSources[field] == domain.SourceManual {
			continue
		}
		if valuesEqual(fields[field], change.New) {
			continue
		}
		folded[field] = domain.FieldChange{Old: fields[field], New: change.New}
		fields[field] = change.New
		fieldSources[field] = sourceCode
	}
	return folded
}

func applyOneTx(ctx context.Context, tx db.Tx, entityType domain.EntityType, record pendingRecord, actor string, now time.Time) (bool, error) {
	const lockRecord = `
SELECT changes, has_changes
FROM agg.scraped_records
WHERE scraped_record_id = $1
FOR UPDATE
`
	var changesJSON []byte
	var hasChanges bool
	if err := tx.QueryRow(ctx, lockRecord, record.RecordID).Scan(&changesJSON, &hasChanges); err != nil {
		return false, fmt.Errorf("lock scraped record: %w", err)
	}
	if !hasChanges || len(changesJSON) == 0 {
		return false, nil
	}
	var changes domain.ChangeSet
	if err := json.Unmarshal(changesJSON, &changes); err != nil {
		return false, fmt.Errorf("decode record changes: %w", err)
	}

	const lockEntityByID = `
SELECT fields, field_sources
FROM agg.unified_entities
WHERE entity_id = $1
FOR UPDATE
`
	var fieldsJSON, sourcesJSON []byte
	if err := tx.QueryRow(ctx, lockEntityByID, record.EntityID).Scan(&fieldsJSON, &sourcesJSON); err != nil {
		return false, fmt.Errorf("lock unified entity: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return false, fmt.Errorf("decode entity fields: %w", err)
	}
	var fieldSources map[string]string
	if err := json.Unmarshal(sourcesJSON, &fieldSources); err != nil {
		return false, fmt.Errorf("decode field sources: %w", err)
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	if fieldSources == nil {
		fieldSources = make(map[string]string)
	}

	folded := foldChanges(entityType, changes, fields, fieldSources, record.SourceCode)

	if len(folded) > 0 {
		if err := writeEntityFields(ctx, tx, record.EntityID, fields, fieldSources); err != nil {
			return false, err
		}
		foldedJSON, err := json.Marshal(folded)
		if err != nil {
			return false, fmt.Errorf("marshal folded changes: %w", err)
		}
		if err := insertAudit(ctx, tx, entityType, record.EntityID, "SCRAPER_UPDATE", foldedJSON, actor, now); err != nil {
			return false, err
		}
	}

	// The diff is consumed either way; leaving has_changes set would re-apply
	// the same diff on every pass.
	const clear = `
UPDATE agg.scraped_records
SET has_changes = FALSE, updated_at = $1
WHERE scraped_record_id = $2
`
	if _, err := tx.Exec(ctx, clear, now, record.RecordID); err != nil {
		return false, fmt.Errorf("clear has_changes: %w", err)
	}
	return len(folded) > 0, nil
}
