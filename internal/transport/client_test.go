package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"mediport.org/internal/session"
	"mediport.org/internal/storage"
)

// recordingNav captures navigation side effects.
type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNav) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

type capturedRequest struct {
	path       string
	authHeader string
	hospitalID string
	requestID  string
}

func newEnv(t *testing.T, status int) (*Client, *session.Context, *recordingNav, *capturedRequest, *httptest.Server) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.authHeader = r.Header.Get("Authorization")
		captured.hospitalID = r.Header.Get("X-Hospital-Id")
		captured.requestID = r.Header.Get("X-Request-Id")
		w.WriteHeader(status)
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	sess := session.NewContext(storage.NewMemory(), storage.NewMemory(), srv.URL)
	nav := &recordingNav{}
	client, err := NewClient(srv.URL, sess, nav)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, sess, nav, captured, srv
}

func TestAuthorizationHeaderAttachment(t *testing.T) {
	t.Run("token attached to api calls", func(t *testing.T) {
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetToken("tok.en.x", false)

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.authHeader != "Bearer tok.en.x" {
			t.Fatalf("expected bearer header, got %q", captured.authHeader)
		}
		if captured.path != "/api/patients" {
			t.Fatalf("unexpected final path %q", captured.path)
		}
		if captured.requestID == "" {
			t.Fatalf("expected correlation id")
		}
	})

	t.Run("never attached to the login endpoint", func(t *testing.T) {
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetToken("stale.token.x", false)

		req, _ := client.NewRequest(context.Background(), http.MethodPost, "/auth/login", map[string]string{"username": "u"})
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.path != "/api/auth/login" {
			t.Fatalf("unexpected login path %q", captured.path)
		}
		if captured.authHeader != "" {
			t.Fatalf("stale token forged onto login call: %q", captured.authHeader)
		}
	})

	t.Run("caller-supplied header is never overwritten", func(t *testing.T) {
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetToken("session.token.x", false)

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		req.Header.Set("Authorization", "Bearer caller-token")
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.authHeader != "Bearer caller-token" {
			t.Fatalf("caller header overwritten: %q", captured.authHeader)
		}
	})

	t.Run("no token means no header", func(t *testing.T) {
		client, _, _, captured, _ := newEnv(t, http.StatusOK)
		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.authHeader != "" {
			t.Fatalf("unexpected header %q", captured.authHeader)
		}
	})
}

func TestHospitalScopeHeader(t *testing.T) {
	t.Run("attached to ordinary calls", func(t *testing.T) {
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetHospitalID("h-7")
		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.hospitalID != "h-7" {
			t.Fatalf("missing hospital scope header")
		}
	})

	t.Run("attached to the login call too", func(t *testing.T) {
		// Deliberate asymmetry: scope travels with unauthenticated login.
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetHospitalID("h-7")
		req, _ := client.NewRequest(context.Background(), http.MethodPost, "/auth/login", map[string]string{"username": "u"})
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.hospitalID != "h-7" {
			t.Fatalf("scope header missing on login")
		}
		if captured.authHeader != "" {
			t.Fatalf("authorization forged onto login")
		}
	})

	t.Run("absent scope adds no header", func(t *testing.T) {
		client, _, _, captured, _ := newEnv(t, http.StatusOK)
		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		if err := client.DoJSON(req, nil); err != nil {
			t.Fatalf("DoJSON: %v", err)
		}
		if captured.hospitalID != "" {
			t.Fatalf("unexpected scope header %q", captured.hospitalID)
		}
	})
}

func TestPassThroughRequests(t *testing.T) {
	t.Run("foreign host gets no session headers", func(t *testing.T) {
		foreign := &capturedRequest{}
		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			foreign.authHeader = r.Header.Get("Authorization")
			foreign.hospitalID = r.Header.Get("X-Hospital-Id")
			foreign.requestID = r.Header.Get("X-Request-Id")
			w.Write([]byte("{}"))
		}))
		t.Cleanup(other.Close)

		client, sess, _, _, _ := newEnv(t, http.StatusOK)
		sess.SetToken("secret.bearer.token", true)
		sess.SetHospitalID("h-7")

		req, _ := client.NewRequest(context.Background(), http.MethodGet, other.URL+"/x", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()

		if foreign.authHeader != "" {
			t.Fatalf("bearer token leaked cross-origin: %q", foreign.authHeader)
		}
		if foreign.hospitalID != "" {
			t.Fatalf("hospital scope leaked cross-origin: %q", foreign.hospitalID)
		}
		if foreign.requestID != "" {
			t.Fatalf("request id stamped onto foreign call: %q", foreign.requestID)
		}
	})

	t.Run("localization assets get no session headers", func(t *testing.T) {
		client, sess, _, captured, _ := newEnv(t, http.StatusOK)
		sess.SetToken("secret.bearer.token", true)
		sess.SetHospitalID("h-7")

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/assets/i18n/en.json", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()

		if captured.path != "/assets/i18n/en.json" {
			t.Fatalf("asset path rewritten: %q", captured.path)
		}
		if captured.authHeader != "" || captured.hospitalID != "" || captured.requestID != "" {
			t.Fatalf("asset request decorated: %+v", captured)
		}
	})
}

func TestFaultHandler(t *testing.T) {
	t.Run("401 clears the session and redirects to login", func(t *testing.T) {
		client, sess, nav, _, _ := newEnv(t, http.StatusUnauthorized)
		sess.SetToken("tok.en.x", true)
		sess.SetProfile(session.Profile{Username: "superadmin"})

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		err := client.DoJSON(req, nil)
		if err == nil {
			t.Fatalf("expected status error")
		}
		if sess.Token() != "" {
			t.Fatalf("token survived 401")
		}
		if _, ok := sess.Profile(); ok {
			t.Fatalf("profile survived 401")
		}
		if nav.last() != session.LoginPath {
			t.Fatalf("expected redirect to login, got %q", nav.last())
		}
	})

	t.Run("403 redirects and leaves the session intact", func(t *testing.T) {
		client, sess, nav, _, _ := newEnv(t, http.StatusForbidden)
		sess.SetToken("tok.en.x", true)
		sess.SetProfile(session.Profile{Username: "superadmin"})

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/billing", nil)
		if err := client.DoJSON(req, nil); err == nil {
			t.Fatalf("expected status error")
		}
		if sess.Token() == "" {
			t.Fatalf("403 must not clear the token")
		}
		if _, ok := sess.Profile(); !ok {
			t.Fatalf("403 must not clear the profile")
		}
		if nav.last() != session.ForbiddenPath {
			t.Fatalf("expected redirect to 403 page, got %q", nav.last())
		}
	})

	t.Run("other failures pass through without side effects", func(t *testing.T) {
		client, sess, nav, _, _ := newEnv(t, http.StatusInternalServerError)
		sess.SetToken("tok.en.x", true)

		req, _ := client.NewRequest(context.Background(), http.MethodGet, "/patients", nil)
		err := client.DoJSON(req, nil)
		se, ok := err.(*StatusError)
		if !ok || se.Status != http.StatusInternalServerError {
			t.Fatalf("expected StatusError 500, got %v", err)
		}
		if sess.Token() == "" {
			t.Fatalf("500 must not clear the session")
		}
		if nav.last() != "" {
			t.Fatalf("500 must not navigate")
		}
	})
}

func TestResolveURL(t *testing.T) {
	client, _, _, _, srv := newEnv(t, http.StatusOK)

	if got := client.ResolveURL("/patients"); got != srv.URL+"/api/patients" {
		t.Fatalf("unexpected resolved URL %q", got)
	}
	if got := client.ResolveURL("/api/patients"); got != srv.URL+"/api/patients" {
		t.Fatalf("double prefix: %q", got)
	}
	if got := client.ResolveURL("/assets/i18n/en.json"); got != srv.URL+"/assets/i18n/en.json" {
		t.Fatalf("localization asset rewritten: %q", got)
	}
	if got := client.ResolveURL("https://elsewhere.example.org/x"); got != "https://elsewhere.example.org/x" {
		t.Fatalf("absolute URL rewritten: %q", got)
	}
}

func TestNewClientRejectsBadBase(t *testing.T) {
	sess := session.NewContext(storage.NewMemory(), storage.NewMemory(), "")
	if _, err := NewClient("not-a-url", sess, nil); err == nil {
		t.Fatalf("expected error for invalid base URL")
	}
}
