package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/handlers"
	"github.com/vaxassist/vax-web-ui/internal/services"
)

// fakeBackend is an httptest stand-in for the assistant backend, covering
// the endpoints the handlers touch during these tests.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "backend-token"})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_id":       "u1",
			"email":     creds.Email,
			"firstName": "Pat",
			"lastName":  "Example",
			"role":      "user",
		})
	})

	mux.HandleFunc("GET /chat/conversations", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "c1", "title": "Flu shots", "createdAt": time.Now().Format(time.RFC3339)},
		})
	})

	mux.HandleFunc("GET /chat/messages/c1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "m1", "sender": "user", "text": "Is the flu shot yearly?"},
			{"_id": "m2", "sender": "bot", "text": "Yes, annually."},
		})
	})

	mux.HandleFunc("POST /chat/message", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: delta\ndata: \"Short answer.\"\n\n")
		_, _ = io.WriteString(w, "event: done\ndata: {\"attemptsLeft\":5}\n\n")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestMain(t *testing.T, backendURL string) (*handlers.Main, services.BoltDB) {
	t.Helper()
	store, err := services.NewBoltDB(filepath.Join(t.TempDir(), "sessions.db"), time.Hour)
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m, err := handlers.NewMain(handlers.Config{
		BackendURL: backendURL,
		Greeting:   "Hello! Ask me about vaccines.",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store)
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}
	return m, store
}

func TestNewMain(t *testing.T) {
	m, _ := newTestMain(t, "http://localhost:1")

	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestRequireAuthRedirects(t *testing.T) {
	m, _ := newTestMain(t, "http://localhost:1")
	router := m.Routes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("GET / status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/sign-in" {
		t.Errorf("redirect location = %q, want /sign-in", loc)
	}
}

func signIn(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {"pat@example.org"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST /sign-in status = %d, want %d; body: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "vax_session" {
			return cookie
		}
	}
	t.Fatal("sign-in did not set a session cookie")
	return nil
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	backend := fakeBackend(t)
	m, _ := newTestMain(t, backend.URL)
	router := m.Routes()

	form := url.Values{"email": {"pat@example.org"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /sign-in status = %d, want 200 (re-rendered form)", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Errorf("body does not surface the backend error: %s", w.Body.String())
	}
}

func TestHandleHome(t *testing.T) {
	backend := fakeBackend(t)
	m, _ := newTestMain(t, backend.URL)
	router := m.Routes()
	cookie := signIn(t, router)

	tests := []struct {
		name     string
		url      string
		wantBody string
	}{
		{
			name:     "home without a conversation",
			url:      "/",
			wantBody: "Flu shots",
		},
		{
			name:     "home with a conversation",
			url:      "/?conversation_id=c1",
			wantBody: "Is the flu shot yearly?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req.AddCookie(cookie)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

func TestHandleChats(t *testing.T) {
	backend := fakeBackend(t)
	m, _ := newTestMain(t, backend.URL)
	router := m.Routes()
	cookie := signIn(t, router)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := post(url.Values{"message": {""}}); w.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w := post(url.Values{"message": {"hello"}, "conversation_id": {"c1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	// The response carries the optimistic placeholder pair.
	if !strings.Contains(w.Body.String(), "hello") {
		t.Errorf("response does not contain the user bubble: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `id="message-bot_`) {
		t.Errorf("response does not contain the bot placeholder: %s", w.Body.String())
	}
}

func TestAdminRoutesForbiddenForUsers(t *testing.T) {
	backend := fakeBackend(t)
	m, _ := newTestMain(t, backend.URL)
	router := m.Routes()
	cookie := signIn(t, router)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("GET /admin/users status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
