package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketpilot/internal/engine"
	"marketpilot/internal/flows"
	"marketpilot/internal/settings"
	"marketpilot/internal/stats"
	"marketpilot/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type testAuthConfig struct {
	passwordHash string
}

func (c testAuthConfig) GetJWTSecret() string             { return "test-secret" }
func (c testAuthConfig) GetAccessTokenTTL() time.Duration { return time.Hour }
func (c testAuthConfig) GetAdminUsername() string         { return "admin" }
func (c testAuthConfig) GetAdminPasswordHash() string     { return c.passwordHash }

type memBindings struct {
	nextID   int64
	bindings map[int64]flows.Binding
}

func newMemBindings() *memBindings {
	return &memBindings{nextID: 1, bindings: map[int64]flows.Binding{}}
}

func (m *memBindings) ListAll(context.Context) ([]flows.Binding, error) {
	out := make([]flows.Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBindings) Get(_ context.Context, id int64) (flows.Binding, error) {
	b, ok := m.bindings[id]
	if !ok {
		return flows.Binding{}, flows.ErrBindingNotFound
	}
	return b, nil
}

func (m *memBindings) Create(_ context.Context, b flows.Binding) (int64, error) {
	b.ID = m.nextID
	m.nextID++
	m.bindings[b.ID] = b
	return b.ID, nil
}

func (m *memBindings) Update(_ context.Context, b flows.Binding) error {
	if _, ok := m.bindings[b.ID]; !ok {
		return flows.ErrBindingNotFound
	}
	m.bindings[b.ID] = b
	return nil
}

func (m *memBindings) Delete(_ context.Context, id int64) error {
	if _, ok := m.bindings[id]; !ok {
		return flows.ErrBindingNotFound
	}
	delete(m.bindings, id)
	return nil
}

type memSettings struct {
	cfg settings.AutomationSettings
}

func (m *memSettings) Get(context.Context) (settings.AutomationSettings, error) { return m.cfg, nil }
func (m *memSettings) Update(_ context.Context, s settings.AutomationSettings) error {
	m.cfg = s
	return nil
}

type memStats struct{}

func (memStats) Recent(context.Context, int) ([]stats.Snapshot, error) {
	return []stats.Snapshot{{TotalOrders: 5}}, nil
}

type fakeReconciler struct {
	runs int
}

func (f *fakeReconciler) Run(context.Context) (engine.Result, error) {
	f.runs++
	return engine.Result{Scanned: 4, Inserted: 2}, nil
}

func newTestAPI(t *testing.T) (*gin.Engine, *fakeReconciler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	log := logger.New("development")
	svc := newTestService(orderWith("data_collected"), &fakeMarketActions{})
	rec := &fakeReconciler{}
	module := NewModule(
		testAuthConfig{passwordHash: string(hash)},
		svc,
		newMemBindings(),
		&memSettings{cfg: settings.Defaults()},
		memStats{},
		rec,
		flows.DefaultRegistry(),
		log,
	)

	r := gin.New()
	module.RegisterRoutes(r)
	return r, rec
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/login", "", loginRequest{
		Username: "admin", Password: "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token")
	}
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/api/login", "", loginRequest{
		Username: "admin", Password: "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/login", "", loginRequest{
		Username: "intruder", Password: "correct-horse",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestAPI(t)

	if w := doJSON(t, r, http.MethodGet, "/api/orders", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	token := loginToken(t, r)
	if w := doJSON(t, r, http.MethodGet, "/api/orders", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", w.Code, w.Body.String())
	}
}

func TestOrderActionEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	token := loginToken(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/orders/ORDER001/action", token,
		orderActionRequest{Action: ActionStart})
	if w.Code != http.StatusOK {
		t.Fatalf("action failed: %d %s", w.Code, w.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %q", resp.Status)
	}

	// Unknown actions are rejected by validation before the service runs.
	w = doJSON(t, r, http.MethodPost, "/api/orders/ORDER001/action", token,
		orderActionRequest{Action: "detonate"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}
}

func TestBindingLifecycle(t *testing.T) {
	r, _ := newTestAPI(t)
	token := loginToken(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/bindings", token, bindingRequest{
		FlowID: "spotify", Keyword: "премиум", Enabled: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	// Routing to a flow that doesn't exist is a validation error.
	w = doJSON(t, r, http.MethodPost, "/api/bindings", token, bindingRequest{
		FlowID: "not-a-flow", Keyword: "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown flow, got %d", w.Code)
	}

	// A binding with no routing inputs can never match.
	w = doJSON(t, r, http.MethodPost, "/api/bindings", token, bindingRequest{FlowID: "spotify"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inputless binding, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/bindings/1", token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodDelete, "/api/bindings/1", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing binding, got %d", w.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r, _ := newTestAPI(t)
	token := loginToken(t, r)

	w := doJSON(t, r, http.MethodPut, "/api/automation", token, settingsRequest{
		EternalOnline:     true,
		OnlineIntervalSec: 120,
		ReviewReminder:    true,
		ReviewDelaySec:    1800,
		ReviewMessageEN:   "please review!",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/automation", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var resp settingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OnlineIntervalSec != 120 || resp.ReviewDelaySec != 1800 || resp.ReviewMessageEN != "please review!" {
		t.Fatalf("settings not persisted: %+v", resp)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	r, rec := newTestAPI(t)
	token := loginToken(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/reconcile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reconcile: %d %s", w.Code, w.Body.String())
	}
	if rec.runs != 1 {
		t.Fatalf("reconciler not invoked")
	}
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Scanned != 4 || res.Inserted != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
