package ingest

import (
	"encoding/json"

	"nightfeed.app/nightfeed/internal/domain"
)

// diffFields compares two normalized field maps over the comparable catalog
// of the entity type and returns the fields that genuinely differ. Volatile
// bookkeeping never appears here because the catalog does not carry it.
func diffFields(t domain.EntityType, stored, incoming map[string]any) domain.ChangeSet {
	changes := domain.ChangeSet{}
	for _, field := range domain.ComparableFields(t) {
		oldValue, hasOld := stored[field]
		newValue, hasNew := incoming[field]

		if !hasOld && !hasNew {
			continue
		}
		if hasOld && hasNew && valuesEqual(oldValue, newValue) {
			continue
		}
		changes[field] = domain.FieldChange{Old: oldValue, New: newValue}
	}
	return changes
}

// valuesEqual compares canonicalized values. After normalization both sides
// are scalars (string, float64, bool, nil); anything else falls back to a
// canonical JSON comparison.
func valuesEqual(a, b any) bool {
	switch left := a.(type) {
	case nil:
		return b == nil
	case string:
		right, ok := b.(string)
		return ok && left == right
	case float64:
		right, ok := b.(float64)
		return ok && left == right
	case bool:
		right, ok := b.(bool)
		return ok && left == right
	}

	leftJSON, errA := json.Marshal(a)
	rightJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(leftJSON) == string(rightJSON)
}
