package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avask/callline/internal/core/domain"
)

func waitFor(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d deliveries, got %d", want, counter.Load())
}

func TestRoutesByReceiver(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	alice, bob := domain.NewUserID(), domain.NewUserID()
	var aliceGot, bobGot atomic.Int32

	ta := bus.Transport()
	tb := bus.Transport()
	if err := ta.Start(ctx, alice, func(domain.SignalMessage) { aliceGot.Add(1) }); err != nil {
		t.Fatal(err)
	}
	if err := tb.Start(ctx, bob, func(domain.SignalMessage) { bobGot.Add(1) }); err != nil {
		t.Fatal(err)
	}
	defer ta.Stop()
	defer tb.Stop()

	msg, err := domain.NewEnd(alice, bob, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if err := ta.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, &bobGot, 1)
	if aliceGot.Load() != 0 {
		t.Error("message leaked to the wrong receiver")
	}
}

func TestDuplicateDroppedAndStopSafe(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	bob := domain.NewUserID()
	var got atomic.Int32

	tb := bus.Transport()
	if err := tb.Start(ctx, bob, func(domain.SignalMessage) { got.Add(1) }); err != nil {
		t.Fatal(err)
	}

	msg, err := domain.NewDecline(domain.NewUserID(), bob, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	sender := bus.Transport()
	if err := sender.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := sender.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, &got, 1)
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("duplicate processed: %d deliveries", got.Load())
	}

	tb.Stop()
	tb.Stop()
}
