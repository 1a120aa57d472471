package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/oncallhq/mattersend/internal/alert"
	"github.com/oncallhq/mattersend/internal/alias"
	"github.com/oncallhq/mattersend/internal/dispatch"
	"github.com/oncallhq/mattersend/internal/mattermost"
)

// stubDispatcher records the last dispatch and returns a fixed error.
type stubDispatcher struct {
	err    error
	events []alert.StatusEvent
}

func (s *stubDispatcher) Dispatch(_ context.Context, event alert.StatusEvent, responders, dutyOfficers []string) error {
	s.events = append(s.events, event)
	return s.err
}

func newTestRouter(t *testing.T, dispatcher EventDispatcher) (http.Handler, *alias.Store) {
	t.Helper()
	store, err := alias.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handlers := NewHandlers(dispatcher, store)
	r := chi.NewRouter()
	r.Post("/api/v1/events", handlers.PostEvent)
	r.Put("/api/v1/aliases/{user}", handlers.PutAlias)
	r.Get("/api/v1/aliases/{user}", handlers.GetAlias)
	r.Delete("/api/v1/aliases/{user}", handlers.DeleteAlias)
	return r, store
}

func TestPostEventDelivered(t *testing.T) {
	stub := &stubDispatcher{}
	router, _ := newTestRouter(t, stub)

	body := `{
		"service": "Service",
		"service_url": "http://localhost/service/1/",
		"current_status": "ERROR",
		"previous_status": "PASSING",
		"responders": ["user-1"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(stub.events) != 1 || stub.events[0].Service != "Service" {
		t.Errorf("dispatched events = %+v", stub.events)
	}
}

func TestPostEventValidation(t *testing.T) {
	stub := &stubDispatcher{}
	router, _ := newTestRouter(t, stub)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing service", `{"current_status":"ERROR","previous_status":"PASSING"}`},
		{"bad status", `{"service":"S","current_status":"BROKEN","previous_status":"PASSING"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
	if len(stub.events) != 0 {
		t.Errorf("invalid payloads reached the dispatcher: %+v", stub.events)
	}
}

func TestPostEventConfigurationError(t *testing.T) {
	stub := &stubDispatcher{err: dispatch.ErrConfiguration}
	router, _ := newTestRouter(t, stub)

	body := `{"service":"S","current_status":"ERROR","previous_status":"PASSING"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestPostEventDeliveryFailure(t *testing.T) {
	stub := &stubDispatcher{err: &mattermost.APIError{StatusCode: 500, Body: "upstream sad"}}
	router, _ := newTestRouter(t, stub)

	body := `{"service":"S","current_status":"ERROR","previous_status":"PASSING"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream sad") {
		t.Errorf("body = %s, want upstream detail", rec.Body)
	}
}

func TestAliasLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, &stubDispatcher{})

	put := httptest.NewRequest(http.MethodPut, "/api/v1/aliases/user-1", strings.NewReader(`{"alias":"alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, put)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/aliases/user-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, get)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["alias"] != "alice" {
		t.Errorf("alias = %q", resp["alias"])
	}

	del := httptest.NewRequest(http.MethodDelete, "/api/v1/aliases/user-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, del)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/aliases/user-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", rec.Code)
	}
}

func TestPutAliasValidation(t *testing.T) {
	router, _ := newTestRouter(t, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/aliases/user-1", strings.NewReader(`{"alias":"@alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "leading @") {
		t.Errorf("body = %s, want validation detail", rec.Body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	protected := AuthMiddleware(string(hash))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer secret-token", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	open := AuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}
