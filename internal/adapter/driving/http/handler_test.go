package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gatewayws "github.com/avask/callline/internal/adapter/driven/gateway/ws"
	store "github.com/avask/callline/internal/adapter/driven/store/memory"
	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := gatewayws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	relay := service.NewRelay(store.NewSignalStore(time.Minute), hub)
	srv := httptest.NewServer(NewHandler(relay, hub).NewRouter())
	t.Cleanup(srv.Close)
	return srv
}

func TestPostThenPoll(t *testing.T) {
	srv := newTestServer(t)

	receiver := domain.NewUserID()
	msg, err := domain.NewEnd(domain.NewUserID(), receiver, domain.NewConversationID(), domain.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := stdhttp.Post(srv.URL+"/api/signals", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("expected 201, got %s", resp.Status)
	}

	q := url.Values{}
	q.Set("receiver_id", receiver.String())
	q.Set("since", time.Now().Add(-time.Minute).Format(time.RFC3339Nano))
	resp, err = stdhttp.Get(srv.URL + "/api/signals?" + q.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %s", resp.Status)
	}

	var got []domain.SignalMessage
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != msg.ID {
		t.Fatalf("expected the posted message back, got %v", got)
	}
}

func TestPostRejectsMalformedSignal(t *testing.T) {
	srv := newTestServer(t)

	resp, err := stdhttp.Post(srv.URL+"/api/signals", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %s", resp.Status)
	}

	resp, err = stdhttp.Post(srv.URL+"/api/signals", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %s", resp.Status)
	}
}

func TestPollRejectsBadReceiver(t *testing.T) {
	srv := newTestServer(t)

	resp, err := stdhttp.Get(srv.URL + "/api/signals?receiver_id=not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %s", resp.Status)
	}
}
