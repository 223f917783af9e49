package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justinas/alice"
	"github.com/uptask/uptask-client/internal/csrf"
)

const sessionCookie = "uptask_session"

// RecordedRequest is a request received by the mock API.
type RecordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// MockAPIServer is a fake UpTask backend. It issues CSRF tokens, sets a
// session cookie on login and rejects mutating requests to non-public
// routes whose "_csrf" body field does not match the current token.
type MockAPIServer struct {
	Server *httptest.Server

	mu           sync.Mutex
	token        string
	generation   int
	tokenStatus  int
	tokenDelay   time.Duration
	tokenFetches int
	requests     []RecordedRequest
	Projects     []map[string]any
}

// NewMockAPIServer creates a mock API without starting it; serve Handler to
// run it.
func NewMockAPIServer() *MockAPIServer {
	mock := &MockAPIServer{
		tokenStatus: http.StatusOK,
		Projects: []map[string]any{
			{"_id": "64b7f0c2a1e4d3b2c1a09f8e", "projectName": "Launch", "clientName": "ACME", "description": "Go live"},
		},
	}
	mock.token = mock.nextToken()

	return mock
}

// SetupMockAPIServer starts a mock API server mounted at /api. The server is
// closed when the test ends.
func SetupMockAPIServer(t *testing.T) *MockAPIServer {
	t.Helper()

	mock := NewMockAPIServer()

	mock.Server = httptest.NewServer(mock.Handler())
	t.Cleanup(mock.Server.Close)

	return mock
}

// Handler routes the mock API under /api.
func (m *MockAPIServer) Handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /api/auth/csrf-token", m.handleToken)
	router.HandleFunc("POST /api/auth/login", m.handleLogin)

	chain := alice.New(m.record, m.requireSession, m.requireCSRF)
	router.Handle("/api/", chain.Then(http.HandlerFunc(m.handleAPI)))

	return router
}

// URL is the API base URL.
func (m *MockAPIServer) URL() string {
	return m.Server.URL + "/api"
}

// Token returns the token the server currently accepts.
func (m *MockAPIServer) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// RotateToken invalidates the current token, as the backend does when a
// session ends.
func (m *MockAPIServer) RotateToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = m.nextToken()
}

// FailTokens makes the token endpoint answer with status; use 200 to restore.
func (m *MockAPIServer) FailTokens(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenStatus = status
}

// DelayTokens makes the token endpoint wait before answering.
func (m *MockAPIServer) DelayTokens(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenDelay = d
}

// TokenFetches is the number of calls made to the token endpoint.
func (m *MockAPIServer) TokenFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenFetches
}

// Requests returns the requests received outside the token and login
// endpoints.
func (m *MockAPIServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// LastRequest returns the most recent recorded request.
func (m *MockAPIServer) LastRequest() RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// must be called with m.mu held, or before the server starts
func (m *MockAPIServer) nextToken() string {
	m.generation++
	return fmt.Sprintf("csrf-token-%d", m.generation)
}

func (m *MockAPIServer) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.tokenFetches++
	status, delay, token := m.tokenStatus, m.tokenDelay, m.token
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		writeError(w, status, "csrf token unavailable")
		return
	}

	WriteJSON(w, map[string]string{"csrfToken": token})
}

func (m *MockAPIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil || form.Email == "" || form.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if form.Password != "password" {
		writeError(w, http.StatusUnauthorized, "incorrect password")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: form.Email, Path: "/"})
	WriteJSON(w, "Autenticado")
}

func (m *MockAPIServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/")

	switch {
	case r.Method == http.MethodGet && path == "projects":
		m.mu.Lock()
		projects := m.Projects
		m.mu.Unlock()
		WriteJSON(w, projects)
	case r.Method == http.MethodGet && path == "auth/user":
		cookie, _ := r.Cookie(sessionCookie)
		WriteJSON(w, map[string]string{"_id": "u1", "name": "Test User", "email": cookie.Value})
	case r.Method == http.MethodPost && path == "auth/logout":
		m.RotateToken()
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		WriteJSON(w, "Sesión cerrada")
	case r.Method == http.MethodGet && strings.HasPrefix(path, "projects/") && strings.Count(path, "/") == 1:
		id := strings.TrimPrefix(path, "projects/")
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, p := range m.Projects {
			if p["_id"] == id {
				WriteJSON(w, p)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Proyecto no encontrado")
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/team/find"):
		email, _ := m.LastRequest().Body["email"].(string)
		WriteJSON(w, map[string]string{"_id": "u-" + email, "name": "Member", "email": email})
	case r.Method == http.MethodGet:
		writeError(w, http.StatusNotFound, "not found")
	default:
		WriteJSON(w, fmt.Sprintf("%s %s ok", r.Method, path))
	}
}

// record captures the method, path and decoded JSON body.
func (m *MockAPIServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		var decoded map[string]any
		if len(body) > 0 {
			_ = json.Unmarshal(body, &decoded)
		}

		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   decoded,
		})
		m.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (m *MockAPIServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if csrf.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if c, err := r.Cookie(sessionCookie); err != nil || c.Value == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *MockAPIServer) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !csrf.RequiresToken(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		sent, _ := body[csrf.DefaultFieldName].(string)
		if sent == "" || sent != m.Token() {
			writeError(w, http.StatusForbidden, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
