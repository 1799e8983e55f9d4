package globaltime

import (
	"testing"
	"time"
)

func TestFreezeAndUnfreeze(t *testing.T) {
	frozen := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	Freeze(frozen)
	defer Unfreeze()

	if got := UTC(); !got.Equal(frozen) {
		t.Fatalf("UTC() = %v, want frozen %v", got, frozen)
	}
	if got := Now(); !got.Equal(frozen) {
		t.Fatalf("Now() = %v, want frozen %v", got, frozen)
	}

	Unfreeze()
	if got := UTC(); got.Equal(frozen) {
		t.Fatalf("UTC() still frozen after Unfreeze")
	}
}
