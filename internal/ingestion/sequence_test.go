package ingestion_test

import (
	"ArtistExchange/internal/ingestion"
	"errors"
	"testing"
)

func TestSequenceValidator_FirstSeenSetsCursor(t *testing.T) {
	sv := ingestion.NewSequenceValidator(nil)

	if err := sv.ValidateSequence("svc", 41, false); err != nil {
		t.Fatalf("first command: %v", err)
	}
	if got := sv.GetExpectedSequence("svc"); got != 42 {
		t.Errorf("expected: got %d, want 42", got)
	}
	if err := sv.ValidateSequence("svc", 42, false); err != nil {
		t.Fatalf("in-order command: %v", err)
	}
	if got := sv.GetExpectedSequence("other"); got != 0 {
		t.Errorf("unknown source: got %d, want 0", got)
	}
}

func TestSequenceValidator_Gap(t *testing.T) {
	sv := ingestion.NewSequenceValidator(nil)
	sv.SetExpectedSequence("svc", 5)

	err := sv.ValidateSequence("svc", 7, false)
	if !errors.Is(err, ingestion.ErrSequenceGap) {
		t.Fatalf("got %v, want ErrSequenceGap", err)
	}
	if got := sv.GetExpectedSequence("svc"); got != 5 {
		t.Errorf("gap must not move the cursor: got %d, want 5", got)
	}
}

func TestSequenceValidator_StaleCommands(t *testing.T) {
	sv := ingestion.NewSequenceValidator(nil)
	sv.SetExpectedSequence("svc", 10)

	// redelivery of a committed command is tolerated
	if err := sv.ValidateSequence("svc", 8, true); err != nil {
		t.Errorf("duplicate redelivery: got %v, want nil", err)
	}

	err := sv.ValidateSequence("svc", 9, false)
	if !errors.Is(err, ingestion.ErrOutOfOrder) {
		t.Errorf("got %v, want ErrOutOfOrder", err)
	}
	if got := sv.GetExpectedSequence("svc"); got != 10 {
		t.Errorf("cursor: got %d, want 10", got)
	}
}
