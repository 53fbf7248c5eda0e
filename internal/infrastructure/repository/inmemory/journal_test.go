package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

func TestJournalEvictsOldestEntries(t *testing.T) {
	j := NewJournal(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := j.Record(ctx, domain.JournalEntry{RequestID: id, Status: domain.JournalSucceeded}); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	_, err := j.GetByRequestID(ctx, "a")
	var notFound *domain.DocumentNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected evicted entry to be missing, got %v", err)
	}
	for _, id := range []string{"b", "c"} {
		if _, err := j.GetByRequestID(ctx, id); err != nil {
			t.Fatalf("GetByRequestID(%s) error = %v", id, err)
		}
	}
}

func TestJournalReplacesEntryForSameRequest(t *testing.T) {
	j := NewJournal(0)
	ctx := context.Background()
	_ = j.Record(ctx, domain.JournalEntry{RequestID: "r", Status: domain.JournalFailed})
	_ = j.Record(ctx, domain.JournalEntry{RequestID: "r", Status: domain.JournalSucceeded})

	entry, err := j.GetByRequestID(ctx, "r")
	if err != nil {
		t.Fatalf("GetByRequestID() error = %v", err)
	}
	if entry.Status != domain.JournalSucceeded {
		t.Fatalf("expected latest entry, got %s", entry.Status)
	}
}
