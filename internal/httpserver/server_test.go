package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/audionorm"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/backend"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/dispatcher"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/operator"
)

func newTestServer(t *testing.T) (*Server, *credential.Store) {
	t.Helper()
	store, err := credential.Open(filepath.Join(t.TempDir(), "credentials.sqlite"))
	if err != nil {
		t.Fatalf("credential.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := backend.NewRegistry([]config.BackendConfig{{Name: "a", URL: "http://a", Weight: 1}})
	selector := backend.NewSelector(registry, backend.RoundRobin)
	prober := backend.NewProber(registry, time.Hour, 3)
	op := operator.New(store, registry, selector, prober)
	dispatch := dispatcher.New(registry, selector, 0, "translate", 200, 0)
	normalizer := audionorm.New(audionorm.Config{
		FFmpegPath:        "ffmpeg",
		TempDir:           t.TempDir(),
		Slots:             1,
		Workers:           1,
		AllowedExtensions: []string{"wav"},
	})
	t.Cleanup(normalizer.Close)

	cfg := config.Config{
		AuthEnabled:       true,
		AllowedExtensions: []string{"wav"},
		TempDir:           t.TempDir(),
	}
	return New(cfg, store, store, normalizer, dispatch, op, nil), store
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Status != "success" {
		t.Fatalf("envelope status = %q, want success", env.Status)
	}
}

func TestSupportedFormatsIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/supported_formats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAdminRouteRejectsMissingCredential(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/backends", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminRouteRejectsNonAdminCredential(t *testing.T) {
	srv, store := newTestServer(t)
	cred, err := store.Create(context.Background(), credential.CreateParams{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/backends", nil)
	req.Header.Set("Authorization", "Bearer "+cred.Secret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminRouteAcceptsAdminCredential(t *testing.T) {
	srv, store := newTestServer(t)
	cred, err := store.Create(context.Background(), credential.CreateParams{IsAdmin: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/backends", nil)
	req.Header.Set("X-API-Key", cred.Secret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Status != "success" {
		t.Fatalf("envelope status = %q, want success", env.Status)
	}
}

func TestTranslateAudioRejectsMissingCredentialWhenAuthEnabled(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/translate_audio", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
