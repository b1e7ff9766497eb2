package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/backend"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.op.ListBackends())
}

func (s *Server) handleAddBackend(w http.ResponseWriter, r *http.Request) {
	var cfg config.BackendConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidUpload, "invalid backend payload", err))
		return
	}
	if err := s.op.AddBackend(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, cfg)
}

func (s *Server) handleRemoveBackend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.op.RemoveBackend(name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"name": name})
}

func (s *Server) handleEnableBackend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.op.EnableBackend(name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"name": name, "status": string(backend.StatusHealthy)})
}

func (s *Server) handleDisableBackend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.op.DisableBackend(name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"name": name, "status": string(backend.StatusDisabled)})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"strategy": string(s.op.Strategy())})
}

func (s *Server) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidUpload, "invalid strategy payload", err))
		return
	}
	if err := s.op.SetStrategy(backend.Strategy(body.Strategy)); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"strategy": body.Strategy})
}

func (s *Server) handleRunHealthCheckNow(w http.ResponseWriter, r *http.Request) {
	s.op.RunHealthCheckNow(r.Context())
	writeOK(w, s.op.ListBackends())
}

func (s *Server) handleStartHealthChecks(w http.ResponseWriter, r *http.Request) {
	s.op.StartHealthChecks(r.Context())
	writeOK(w, map[string]bool{"running": true})
}

func (s *Server) handleStopHealthChecks(w http.ResponseWriter, _ *http.Request) {
	s.op.StopHealthChecks()
	writeOK(w, map[string]bool{"running": false})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.op.Status())
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.op.ListCredentials(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, redactAll(creds))
}

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Creator     string     `json:"creator"`
		IsAdmin     bool       `json:"is_admin"`
		TTLDays     *int       `json:"ttl_days"`
		ExpiresAt   *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidUpload, "invalid credential payload", err))
		return
	}

	expiresAt := body.ExpiresAt
	if expiresAt == nil && body.TTLDays != nil {
		t := time.Now().UTC().AddDate(0, 0, *body.TTLDays)
		expiresAt = &t
	}

	creator := body.Creator
	if creator == "" {
		if principal, ok := principalFrom(r.Context()); ok {
			creator = principal.Name
			if creator == "" {
				creator = principal.Secret[:minInt(12, len(principal.Secret))]
			}
		}
	}

	cred, err := s.op.CreateCredential(r.Context(), credential.CreateParams{
		Name:        body.Name,
		Description: body.Description,
		Creator:     creator,
		IsAdmin:     body.IsAdmin,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	// The secret is shown once, on creation; every subsequent listing
	// redacts it.
	writeCreated(w, cred)
}

func (s *Server) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if err := s.op.RevokeCredential(r.Context(), secret); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"revoked": secret[:minInt(8, len(secret))] + "..."})
}

func (s *Server) handleCleanupExpiredCredentials(w http.ResponseWriter, r *http.Request) {
	n, err := s.op.CleanupExpiredCredentials(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]int64{"deactivated": n})
}

// redactedCredential is what the listing endpoint returns: everything about
// a credential except the secret itself, which only the creation response
// ever carries in full.
type redactedCredential struct {
	ID          int64      `json:"id"`
	SecretHint  string     `json:"secret_hint"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   string     `json:"created_by"`
	IsAdmin     bool       `json:"is_admin"`
	IsActive    bool       `json:"is_active"`
	UsageCount  int64      `json:"usage_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

func redactAll(creds []credential.Credential) []redactedCredential {
	out := make([]redactedCredential, 0, len(creds))
	for _, c := range creds {
		out = append(out, redactedCredential{
			ID:          c.ID,
			SecretHint:  c.Secret[:minInt(12, len(c.Secret))] + "...",
			Name:        c.Name,
			Description: c.Description,
			CreatedBy:   c.CreatedBy,
			IsAdmin:     c.IsAdmin,
			IsActive:    c.IsActive,
			UsageCount:  c.UsageCount,
			CreatedAt:   c.CreatedAt,
			ExpiresAt:   c.ExpiresAt,
			LastUsedAt:  c.LastUsedAt,
		})
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
