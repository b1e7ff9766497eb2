package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

type ctxKey int

const principalKey ctxKey = iota

// verifier is the subset of credential.Store (or credcache.Cache wrapping
// it) the auth middleware needs.
type verifier interface {
	Verify(ctx context.Context, secret string) (credential.Credential, error)
}

// extractSecret reads the bearer token from either Authorization: Bearer ...
// or the X-API-Key header, so either convention authenticates a request.
func extractSecret(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// requireAuth resolves the presented secret to a verified credential and
// stores it on the request context; handlers downstream read it with
// principalFrom. A missing or invalid secret never reaches the handler.
func requireAuth(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := extractSecret(r)
			if secret == "" {
				writeError(w, apierr.New(apierr.Unauthorized, "missing credential"))
				return
			}
			cred, err := v.Verify(r.Context(), secret)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin stacks on top of requireAuth and rejects any verified
// credential that isn't flagged is_admin.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := principalFrom(r.Context())
		if !ok || !cred.IsAdmin {
			writeError(w, apierr.New(apierr.Forbidden, "admin credential required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFrom(ctx context.Context) (credential.Credential, bool) {
	cred, ok := ctx.Value(principalKey).(credential.Credential)
	return cred, ok
}
