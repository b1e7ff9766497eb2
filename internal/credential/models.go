package credential

import "time"

// Credential is one API key record. Secret is the full bearer token the
// caller presents; it is stored as issued since the value itself, not a
// derived hash, is what callers round-trip in the Authorization header.
type Credential struct {
	ID          int64
	Secret      string
	Name        string
	Description string
	CreatedBy   string
	IsAdmin     bool
	IsActive    bool
	UsageCount  int64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
}

// Expired reports whether the credential's expiry, if any, is in the past.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Usable reports whether the credential can authenticate a request right now:
// active and not expired. Usage accounting happens separately.
func (c Credential) Usable(now time.Time) bool {
	return c.IsActive && !c.Expired(now)
}
