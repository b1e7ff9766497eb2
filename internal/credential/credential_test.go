package credential

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "credentials.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndVerify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, CreateParams{Description: "test key"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Secret == "" {
		t.Fatal("expected a generated secret")
	}

	verified, err := s.Verify(ctx, created.Secret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.UsageCount != 1 {
		t.Fatalf("UsageCount = %d, want 1", verified.UsageCount)
	}

	verifiedAgain, err := s.Verify(ctx, created.Secret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verifiedAgain.UsageCount != 2 {
		t.Fatalf("UsageCount = %d, want 2", verifiedAgain.UsageCount)
	}
}

func TestVerifyRejectsUnknownSecret(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Verify(context.Background(), "lls_not-a-real-secret")
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.Unauthorized {
		t.Fatalf("expected Unauthorized error, got %v", err)
	}
}

func TestRevokedCredentialFailsVerification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, CreateParams{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Revoke(ctx, created.Secret); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := s.Verify(ctx, created.Secret); err == nil {
		t.Fatal("expected verification of a revoked credential to fail")
	}
}

func TestExpiredCredentialFailsVerification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	created, err := s.Create(ctx, CreateParams{ExpiresAt: &past})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Verify(ctx, created.Secret); err == nil {
		t.Fatal("expected verification of an expired credential to fail")
	}
}

func TestCleanupExpiredDeactivatesOnlyPastExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	if _, err := s.Create(ctx, CreateParams{ExpiresAt: &past}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stillGood, err := s.Create(ctx, CreateParams{ExpiresAt: &future})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := s.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("CleanupExpired deactivated %d rows, want 1", n)
	}

	refetched, err := s.GetByID(ctx, stillGood.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !refetched.IsActive {
		t.Fatal("expected the not-yet-expired credential to remain active")
	}
}

func TestSetAdminAndUpdateDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, CreateParams{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetAdmin(ctx, created.Secret, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := s.UpdateDescription(ctx, created.Secret, "rotated key"); err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}

	refetched, err := s.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !refetched.IsAdmin {
		t.Fatal("expected credential to be admin")
	}
	if refetched.Description != "rotated key" {
		t.Fatalf("Description = %q, want %q", refetched.Description, "rotated key")
	}
}
