package memory

import (
	"context"
	"testing"
	"time"

	"github.com/avask/callline/internal/core/domain"
)

func TestListForFiltersByReceiverAndTime(t *testing.T) {
	store := NewSignalStore(time.Minute)
	ctx := context.Background()

	alice, bob := domain.NewUserID(), domain.NewUserID()
	conv, session := domain.NewConversationID(), domain.NewSessionID()

	forBob, err := domain.NewEnd(alice, bob, conv, session)
	if err != nil {
		t.Fatal(err)
	}
	forAlice, err := domain.NewEnd(bob, alice, conv, session)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, forBob); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, forAlice); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListFor(ctx, bob, time.Now().Add(-time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != forBob.ID {
		t.Fatalf("expected only bob's message, got %v", got)
	}

	got, err = store.ListFor(ctx, bob, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing newer than the future, got %v", got)
	}
}

func TestRetentionSweep(t *testing.T) {
	store := NewSignalStore(10 * time.Millisecond)
	ctx := context.Background()

	receiver := domain.NewUserID()
	msg, err := domain.NewEnd(domain.NewUserID(), receiver, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, msg); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)

	got, err := store.ListFor(ctx, receiver, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected swept store, got %v", got)
	}
}
