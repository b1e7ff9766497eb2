package credcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

type fakeVerifier struct {
	calls int
	cred  credential.Credential
	err   error
}

func (f *fakeVerifier) Verify(ctx context.Context, secret string) (credential.Credential, error) {
	f.calls++
	if f.err != nil {
		return credential.Credential{}, f.err
	}
	return f.cred, nil
}

func TestCacheKeyTruncatesToConfiguredLength(t *testing.T) {
	key := cacheKey("lls_0123456789abcdefghijklmnop")
	want := keyPrefix + "lls_0123456789ab"
	if key != want {
		t.Fatalf("cacheKey = %q, want %q", key, want)
	}
}

func TestCacheKeyHandlesShortSecrets(t *testing.T) {
	key := cacheKey("short")
	if key != keyPrefix+"short" {
		t.Fatalf("cacheKey = %q, want %q", key, keyPrefix+"short")
	}
}

func TestNewDegradesToDirectStoreWhenRedisUnreachable(t *testing.T) {
	store := &fakeVerifier{cred: credential.Credential{ID: 1, Secret: "lls_abc"}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := New(ctx, "redis://127.0.0.1:1/0", time.Minute, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected cache to be disabled when Redis is unreachable")
	}

	cred, err := c.Verify(context.Background(), "lls_abc")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cred.ID != 1 {
		t.Fatalf("Verify returned %+v, want the store's credential", cred)
	}
	if store.calls != 1 {
		t.Fatalf("store.calls = %d, want 1 (degraded cache must always fall through)", store.calls)
	}
}

func TestDisabledCacheInvalidateIsNoop(t *testing.T) {
	store := &fakeVerifier{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := New(ctx, "redis://127.0.0.1:1/0", time.Minute, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Invalidate(context.Background(), "lls_abc"); err != nil {
		t.Fatalf("Invalidate on a disabled cache should be a no-op, got %v", err)
	}
}

func TestVerifyPropagatesStoreError(t *testing.T) {
	store := &fakeVerifier{err: errors.New("unauthorized")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := New(ctx, "redis://127.0.0.1:1/0", time.Minute, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Verify(context.Background(), "lls_abc"); err == nil {
		t.Fatal("expected Verify to propagate the store's error")
	}
}
