package merge

import (
	"context"
	"encoding/json"
	"fmt"

	"nightfeed.app/nightfeed/internal/db"
	"nightfeed.app/nightfeed/internal/domain"
)

// Querier is the read surface the loader needs; both the pool and an open
// transaction satisfy it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*db.Rows, error)
}

// LoadValues gathers the per-source values for every known field of the
// entity. Linked scraped records contribute under their source code; fields
// the operator overrode (field_sources entry "og") contribute the entity's
// own stored value under "og".
func LoadValues(ctx context.Context, q Querier, entityType domain.EntityType, entityID int64, entityFields map[string]any, fieldSources map[string]string) (map[string][]SourceValue, error) {
	values := make(map[string][]SourceValue)
	for field, source := range fieldSources {
		if source != domain.SourceManual {
			continue
		}
		if v, ok := entityFields[field]; ok && !isEmpty(v) {
			values[field] = append(values[field], SourceValue{Source: domain.SourceManual, Value: v})
		}
	}

	const query = `
SELECT sr.source_code, sr.fields
FROM agg.source_links sl
JOIN agg.scraped_records sr ON sr.scraped_record_id = sl.scraped_record_id
WHERE sl.entity_id = $1
ORDER BY sl.source_link_id
`
	rows, err := q.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query linked records entity_id=%d: %w", entityID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceCode string
		var fieldsJSON []byte
		if err := rows.Scan(&sourceCode, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan linked record: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
			return nil, fmt.Errorf("decode linked record fields entity_id=%d: %w", entityID, err)
		}
		for _, field := range domain.ComparableFields(entityType) {
			if v, ok := fields[field]; ok && !isEmpty(v) {
				values[field] = append(values[field], SourceValue{Source: sourceCode, Value: v})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked records entity_id=%d: %w", entityID, err)
	}

	// Stored values no source claims (coordinate backfill writes these) are
	// still worth showing; an empty source code loses to every real one.
	for _, field := range domain.ComparableFields(entityType) {
		if len(values[field]) > 0 {
			continue
		}
		if v, ok := entityFields[field]; ok && !isEmpty(v) {
			values[field] = append(values[field], SourceValue{Source: "", Value: v})
		}
	}
	return values, nil
}

// ResolveAll runs the resolver over every known field of the type, returning
// the winning value and its backing source per field. Fields with no value
// anywhere are absent from both maps; unattributed stored values resolve
// without a provenance entry.
func ResolveAll(entityType domain.EntityType, values map[string][]SourceValue) (map[string]any, map[string]string) {
	resolved := make(map[string]any)
	provenance := make(map[string]string)
	for _, field := range domain.ComparableFields(entityType) {
		value, source, ok := Resolve(field, values[field])
		if !ok {
			continue
		}
		resolved[field] = value
		if source != "" {
			provenance[field] = source
		}
	}
	return resolved, provenance
}
