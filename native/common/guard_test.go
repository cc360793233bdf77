package common

import (
	"errors"
	"testing"
)

func TestGuardHonoursPauseSet(t *testing.T) {
	set := NewPauseSet(" MPA ")
	if err := Guard(set, "mpa"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused module, got %v", err)
	}
	set.Set("mpa", false)
	if err := Guard(set, "mpa"); err != nil {
		t.Fatalf("expected module to resume, got %v", err)
	}
	if err := Guard(nil, "mpa"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}
