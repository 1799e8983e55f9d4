package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/domain"
)

func TestCreateRequiresName(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, zerolog.Nop())
	_, err := svc.Create(context.Background(), domain.EntityEvent, map[string]any{
		"date": "2026-09-12",
	}, "operator")

	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(validation.Missing) != 1 || validation.Missing[0] != "title" {
		t.Fatalf("missing = %v, want [title]", validation.Missing)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, zerolog.Nop())
	if _, err := svc.Create(context.Background(), domain.EntityType("festival"), map[string]any{"name": "x"}, "operator"); err == nil {
		t.Fatalf("unknown entity type accepted")
	}
}

func TestValuesEqual(t *testing.T) {
	t.Parallel()

	if !valuesEqual("a", "a") {
		t.Fatalf("equal strings not equal")
	}
	if valuesEqual("a", nil) {
		t.Fatalf("nil equal to string")
	}
	if !valuesEqual(map[string]any{"k": 1}, map[string]any{"k": 1}) {
		t.Fatalf("equal maps not equal")
	}
}
