package support

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketpilot/platform/logger"
)

type testConfig struct {
	marketURL  string
	supportURL string
}

func (c testConfig) GetMarketplaceBaseURL() string    { return c.marketURL }
func (c testConfig) GetSupportBaseURL() string        { return c.supportURL }
func (c testConfig) GetMarketplaceSessionKey() string { return "golden-secret" }
func (c testConfig) GetMarketplaceUserAgent() string  { return "test-agent" }
func (c testConfig) GetSellerUsername() string        { return "seller" }
func (c testConfig) GetEventPollDelay() time.Duration { return time.Second }
func (c testConfig) GetOutboundMessageRate() float64  { return 1 }

// deskState tracks the handshake steps the fake desk observed.
type deskState struct {
	ssoHits     int
	sessionHits int
	formHits    int
	submits     []map[string]string
	failSubmits int
}

func newFakeDesk(t *testing.T, state *deskState) (market, desk *httptest.Server) {
	t.Helper()

	desk = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/sso"):
			state.sessionHits++
			if r.URL.Query().Get("jwt") != "sso-jwt-token" {
				t.Errorf("desk got wrong jwt %q", r.URL.Query().Get("jwt"))
			}
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "desk-session"})
			w.WriteHeader(http.StatusOK)

		case r.URL.Path == "/tickets/new":
			state.formHits++
			if cookie, err := r.Cookie("PHPSESSID"); err != nil || cookie.Value != "desk-session" {
				t.Errorf("ticket form requested without desk session")
			}
			w.Write([]byte(`<html><body><form>
				<input type="hidden" id="ticket__token" value="csrf-abc"/>
			</form></body></html>`))

		case r.URL.Path == "/tickets" && r.Method == http.MethodPost:
			if state.failSubmits > 0 {
				state.failSubmits--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			r.ParseForm()
			state.submits = append(state.submits, map[string]string{
				"token":   r.PostFormValue("ticket[token]"),
				"subject": r.PostFormValue("ticket[subject]"),
				"message": r.PostFormValue("ticket[message]"),
			})
			w.WriteHeader(http.StatusOK)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(desk.Close)

	market = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/support/sso" {
			http.NotFound(w, r)
			return
		}
		state.ssoHits++
		if cookie, err := r.Cookie("golden_key"); err != nil || cookie.Value != "golden-secret" {
			t.Errorf("sso requested without marketplace session")
		}
		http.Redirect(w, r, desk.URL+"/sso?jwt=sso-jwt-token", http.StatusFound)
	}))
	t.Cleanup(market.Close)

	return market, desk
}

func newTestClient(t *testing.T, market, desk *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(testConfig{marketURL: market.URL, supportURL: desk.URL}, logger.New("development"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.backoff = time.Millisecond
	return client
}

func TestFileTicketCompletesHandshake(t *testing.T) {
	state := &deskState{}
	market, desk := newFakeDesk(t, state)
	client := newTestClient(t, market, desk)

	if err := client.FileTicket(context.Background(), "please check #ORDER001"); err != nil {
		t.Fatalf("file ticket: %v", err)
	}
	if state.ssoHits != 1 || state.sessionHits != 1 || state.formHits != 1 {
		t.Fatalf("handshake steps: sso=%d session=%d form=%d", state.ssoHits, state.sessionHits, state.formHits)
	}
	if len(state.submits) != 1 {
		t.Fatalf("expected 1 submit, got %d", len(state.submits))
	}
	got := state.submits[0]
	if got["token"] != "csrf-abc" {
		t.Fatalf("csrf token not forwarded: %q", got["token"])
	}
	if got["message"] != "please check #ORDER001" {
		t.Fatalf("body not forwarded: %q", got["message"])
	}
	if got["subject"] == "" {
		t.Fatalf("subject missing")
	}
}

func TestFileTicketRetriesFullHandshake(t *testing.T) {
	state := &deskState{failSubmits: 1}
	market, desk := newFakeDesk(t, state)
	client := newTestClient(t, market, desk)

	if err := client.FileTicket(context.Background(), "retry me"); err != nil {
		t.Fatalf("file ticket: %v", err)
	}
	// The failed attempt and the successful one each run the whole chain.
	if state.ssoHits != 2 {
		t.Fatalf("expected 2 sso exchanges, got %d", state.ssoHits)
	}
	if len(state.submits) != 1 {
		t.Fatalf("expected 1 successful submit, got %d", len(state.submits))
	}
}

func TestFileTicketGivesUpAfterAttempts(t *testing.T) {
	state := &deskState{failSubmits: 10}
	market, desk := newFakeDesk(t, state)
	client := newTestClient(t, market, desk)

	if err := client.FileTicket(context.Background(), "never works"); err == nil {
		t.Fatalf("expected error after exhausted attempts")
	}
	if state.ssoHits != 3 {
		t.Fatalf("expected 3 attempts, got %d", state.ssoHits)
	}
}

func TestParseFormTokenFallback(t *testing.T) {
	token, err := parseFormToken(strings.NewReader(
		`<html><body data-csrf-token="fallback-token"><form></form></body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if token != "fallback-token" {
		t.Fatalf("fallback not used: %q", token)
	}

	if _, err := parseFormToken(strings.NewReader(`<html><body></body></html>`)); err == nil {
		t.Fatalf("expected error for tokenless page")
	}
}
