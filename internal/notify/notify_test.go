package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketpilot/internal/engine"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"
)

func TestTelegramNotify(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	defer srv.Close()

	tg := &Telegram{
		http:    srv.Client(),
		baseURL: srv.URL,
		token:   "test-token",
		chatID:  "12345",
	}
	if err := tg.Notify(context.Background(), "hello operator"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.ChatID != "12345" || got.Text != "hello operator" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestTelegramNotifyRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "chat not found"})
	}))
	defer srv.Close()

	tg := &Telegram{http: srv.Client(), baseURL: srv.URL, token: "t", chatID: "1"}
	err := tg.Notify(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

type stubNotifier struct {
	texts []string
	err   error
}

func (s *stubNotifier) Notify(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return s.err
}

func TestMultiContinuesPastFailures(t *testing.T) {
	broken := &stubNotifier{err: errors.New("down")}
	working := &stubNotifier{}

	m := NewMulti(logger.New("development"), broken, nil, working)
	if err := m.Notify(context.Background(), "alert"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(working.texts) != 1 || working.texts[0] != "alert" {
		t.Fatalf("working channel skipped: %+v", working.texts)
	}
}

func TestFormatCoversAllEvents(t *testing.T) {
	data := map[string]string{"email": "a@b.c", "password": "secret"}

	cases := []struct {
		event events.Event
		wants []string
	}{
		{engine.OrderCreated{MarketOrderID: "ORDER001", ItemName: "Spotify", Price: 5, Currency: "USD", BuyerName: "buyer", FlowID: "spotify"},
			[]string{"#ORDER001", "Spotify", "buyer", "spotify"}},
		{engine.OrderCreated{MarketOrderID: "ORDER002", ItemName: "Steam"},
			[]string{"manual handling"}},
		{engine.OrderDataCollected{MarketOrderID: "ORDER003", ItemName: "Spotify", BuyerName: "buyer", Data: data},
			[]string{"#ORDER003", "email: a@b.c", "password: secret"}},
		{engine.OrderDisputed{MarketOrderID: "ORDER004", BuyerName: "buyer", ItemName: "Nitro"},
			[]string{"#ORDER004", "reopened"}},
		{engine.ReviewReceived{MarketOrderID: "ORDER005", Text: "rating changed"},
			[]string{"#ORDER005", "rating changed"}},
		{engine.UnhandledMessage{Author: "stranger", Text: "hi", ChatLink: "https://x/chat/?node=1"},
			[]string{"stranger", "https://x/chat/?node=1"}},
		{engine.OrdersEscalated{MarketOrderIDs: []string{"ORDER006", "ORDER007"}},
			[]string{"2 orders", "#ORDER006", "#ORDER007"}},
		{engine.AutomationFailure{Task: "escalation", Reason: "ticket submit rejected"},
			[]string{"escalation", "ticket submit rejected"}},
	}

	for _, tc := range cases {
		text := Format(tc.event)
		if text == "" {
			t.Fatalf("%s rendered empty", tc.event.EventName())
		}
		for _, want := range tc.wants {
			if !strings.Contains(text, want) {
				t.Errorf("%s output missing %q:\n%s", tc.event.EventName(), want, text)
			}
		}
	}
}
