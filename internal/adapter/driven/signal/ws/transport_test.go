package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gatewayws "github.com/avask/callline/internal/adapter/driven/gateway/ws"
	store "github.com/avask/callline/internal/adapter/driven/store/memory"
	relayhttp "github.com/avask/callline/internal/adapter/driving/http"
	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/service"
)

func newRelayServer(t *testing.T) (addr string, hub *gatewayws.Hub) {
	t.Helper()

	hub = gatewayws.NewHub()
	relay := service.NewRelay(store.NewSignalStore(time.Minute), hub)
	handler := relayhttp.NewHandler(relay, hub)

	go hub.Run()

	srv := httptest.NewServer(handler.NewRouter())
	t.Cleanup(srv.Close)

	return strings.TrimPrefix(srv.URL, "http://"), hub
}

func testOptions() Options {
	return Options{
		PollInterval:  25 * time.Millisecond,
		PollWindow:    time.Minute,
		DedupCapacity: 64,
	}
}

func waitFor(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d messages, got %d", want, counter.Load())
}

func TestPushDelivery(t *testing.T) {
	addr, _ := newRelayServer(t)
	ctx := context.Background()

	receiver := domain.NewUserID()
	var received atomic.Int32

	sub := NewTransport(addr, testOptions())
	if err := sub.Start(ctx, receiver, func(msg domain.SignalMessage) { received.Add(1) }); err != nil {
		t.Fatal(err)
	}
	defer sub.Stop()

	// Idempotent: a second Start must not add a listener.
	if err := sub.Start(ctx, receiver, func(msg domain.SignalMessage) { received.Add(1) }); err != nil {
		t.Fatal(err)
	}

	msg, err := domain.NewEnd(domain.NewUserID(), receiver, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, &received, 1)
}

func TestDuplicateDeliveredOnce(t *testing.T) {
	addr, _ := newRelayServer(t)
	ctx := context.Background()

	receiver := domain.NewUserID()
	var received atomic.Int32

	sub := NewTransport(addr, testOptions())
	if err := sub.Start(ctx, receiver, func(msg domain.SignalMessage) { received.Add(1) }); err != nil {
		t.Fatal(err)
	}
	defer sub.Stop()

	msg, err := domain.NewDecline(domain.NewUserID(), receiver, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	// At-least-once substrate: the same message can arrive twice.
	if err := sub.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := sub.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, &received, 1)
	time.Sleep(100 * time.Millisecond)
	if received.Load() != 1 {
		t.Fatalf("duplicate processed: %d deliveries", received.Load())
	}
}

// The push channel dies after subscribing; a decline sent afterwards
// must still arrive, exactly once, via the polling fallback.
func TestPollingFallbackAfterPushLoss(t *testing.T) {
	addr, hub := newRelayServer(t)
	ctx := context.Background()

	receiver := domain.NewUserID()
	var received atomic.Int32

	sub := NewTransport(addr, testOptions())
	if err := sub.Start(ctx, receiver, func(msg domain.SignalMessage) { received.Add(1) }); err != nil {
		t.Fatal(err)
	}
	defer sub.Stop()

	// Kill every push connection; the transport must fall back.
	hub.Stop()
	time.Sleep(50 * time.Millisecond)

	msg, err := domain.NewDecline(domain.NewUserID(), receiver, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.Send(ctx, msg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, &received, 1)

	// The poll window re-reads the same backlog every tick; dedup must
	// keep it at one.
	time.Sleep(100 * time.Millisecond)
	if received.Load() != 1 {
		t.Fatalf("polled duplicate processed: %d deliveries", received.Load())
	}
}

func TestStopIsSafeWhenNotListening(t *testing.T) {
	sub := NewTransport("localhost:0", testOptions())
	sub.Stop()
	sub.Stop()
}
