package match

import (
	"testing"

	"nightfeed.app/nightfeed/internal/domain"
)

func TestScoreCandidateEventRequiresSameDate(t *testing.T) {
	t.Parallel()

	record := map[string]any{"title": "Warehouse Night", "date": "2026-09-12"}
	entity := map[string]any{"title": "Warehouse Night", "date": "2026-09-13"}

	if _, ok := scoreCandidate(domain.EntityEvent, "Warehouse Night", record, entity); ok {
		t.Fatalf("event candidate on a different date was scored")
	}

	record["date"] = ""
	entity["date"] = ""
	if _, ok := scoreCandidate(domain.EntityEvent, "Warehouse Night", record, entity); ok {
		t.Fatalf("event candidate without a date was scored")
	}
}

func TestScoreCandidateEventCityBonusCapped(t *testing.T) {
	t.Parallel()

	record := map[string]any{"title": "Warehouse Night", "date": "2026-09-12", "venue_city": "Berlin"}
	entity := map[string]any{"title": "Warehouse Night", "date": "2026-09-12", "venue_city": "Berlin"}

	score, ok := scoreCandidate(domain.EntityEvent, "Warehouse Night", record, entity)
	if !ok {
		t.Fatalf("matching event candidate was not scored")
	}
	// 100 name similarity plus the city bonus stays capped at 100.
	if score != 100 {
		t.Fatalf("score = %v, want 100", score)
	}
}

func TestScoreCandidateEventCityBonusLiftsNearMatch(t *testing.T) {
	t.Parallel()

	record := map[string]any{"title": "Warehouse Night Berlin", "date": "2026-09-12", "venue_city": "Berlin"}
	entity := map[string]any{"title": "Warehouse Night Berlim", "date": "2026-09-12", "venue_city": "Berlin"}

	withBonus, ok := scoreCandidate(domain.EntityEvent, "Warehouse Night Berlin", record, entity)
	if !ok {
		t.Fatalf("near-match event candidate was not scored")
	}

	entityNoCity := map[string]any{"title": "Warehouse Night Berlim", "date": "2026-09-12", "venue_city": "Hamburg"}
	withoutBonus, ok := scoreCandidate(domain.EntityEvent, "Warehouse Night Berlin", record, entityNoCity)
	if !ok {
		t.Fatalf("near-match event candidate without city was not scored")
	}
	if withBonus <= withoutBonus {
		t.Fatalf("city bonus did not lift the score: with=%v without=%v", withBonus, withoutBonus)
	}
}

func TestScoreCandidateVenueRequiresSameCity(t *testing.T) {
	t.Parallel()

	record := map[string]any{"name": "Tresor", "city": "Berlin"}
	entity := map[string]any{"name": "Tresor", "city": "Dresden"}

	if _, ok := scoreCandidate(domain.EntityVenue, "Tresor", record, entity); ok {
		t.Fatalf("venue candidate in a different city was scored")
	}

	entity["city"] = "  BERLIN "
	score, ok := scoreCandidate(domain.EntityVenue, "Tresor", record, entity)
	if !ok || score != 100 {
		t.Fatalf("same-city venue score = (%v, %t), want (100, true)", score, ok)
	}
}

func TestPickBestCandidateTieBreaksOnLinkCount(t *testing.T) {
	t.Parallel()

	record := scrapedCandidate{
		RecordID:   1,
		SourceCode: "ra",
		Fields:     map[string]any{"name": "Tresor", "city": "Berlin"},
	}
	sparse := &entityCandidate{
		EntityID:  10,
		Fields:    map[string]any{"name": "Tresor", "city": "Berlin"},
		LinkCount: 1,
	}
	rich := &entityCandidate{
		EntityID:  11,
		Fields:    map[string]any{"name": "Tresor", "city": "Berlin"},
		LinkCount: 3,
	}

	best := pickBestCandidate(domain.EntityVenue, record, []*entityCandidate{sparse, rich})
	if best == nil {
		t.Fatalf("no candidate picked")
	}
	if best.entity.EntityID != rich.EntityID {
		t.Fatalf("picked entity %d, want the richer entity %d", best.entity.EntityID, rich.EntityID)
	}
}

func TestPickBestCandidateNoMatch(t *testing.T) {
	t.Parallel()

	record := scrapedCandidate{
		RecordID:   1,
		SourceCode: "ra",
		Fields:     map[string]any{"name": "Anomalie Art Club", "city": "Berlin"},
	}
	other := &entityCandidate{
		EntityID: 10,
		Fields:   map[string]any{"name": "Sisyphos", "city": "Berlin"},
	}

	best := pickBestCandidate(domain.EntityVenue, record, []*entityCandidate{other})
	if best != nil && best.score > acceptanceThreshold {
		t.Fatalf("dissimilar names scored %v, above the acceptance threshold", best.score)
	}
}
