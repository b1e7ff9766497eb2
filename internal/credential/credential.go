package credential

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
)

const secretPrefix = "lls_"

// GenerateSecret mints a new bearer token: a fixed prefix over 32 bytes of
// crypto/rand output, base64-urlencoded without padding.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("credential: generating secret: %w", err)
	}
	return secretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateParams describes a new credential. Secret is optional; when empty,
// Create mints one with GenerateSecret. Creator records who requested the
// credential (an operator identity or CLI caller), for audit purposes.
type CreateParams struct {
	Secret      string
	Name        string
	Description string
	Creator     string
	IsAdmin     bool
	ExpiresAt   *time.Time
}

func (s *Store) Create(ctx context.Context, p CreateParams) (Credential, error) {
	secret := p.Secret
	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return Credential{}, err
		}
		secret = generated
	}

	now := time.Now().UTC()
	var expiresAt sql.NullString
	if p.ExpiresAt != nil {
		expiresAt = sql.NullString{String: p.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (secret, name, description, created_by, is_admin, is_active, usage_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?)
	`, secret, p.Name, p.Description, p.Creator, boolToInt(p.IsAdmin), now.Format(time.RFC3339), expiresAt)
	if err != nil {
		return Credential{}, apierr.Wrap(apierr.Internal, "creating credential", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Credential{}, apierr.Wrap(apierr.Internal, "reading new credential id", err)
	}
	return s.GetByID(ctx, id)
}

// Verify looks up a credential by its presented secret and, if usable,
// atomically increments its usage counter and stamps last_used_at in a
// single UPDATE, so concurrent verifications never race on the counter.
func (s *Store) Verify(ctx context.Context, secret string) (Credential, error) {
	cred, err := s.getBySecret(ctx, secret)
	if err != nil {
		if err == sql.ErrNoRows {
			return Credential{}, apierr.New(apierr.Unauthorized, "invalid credential")
		}
		return Credential{}, apierr.Wrap(apierr.Internal, "looking up credential", err)
	}
	now := time.Now().UTC()
	if !cred.Usable(now) {
		return Credential{}, apierr.New(apierr.Unauthorized, "credential is inactive or expired")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?
	`, now.Format(time.RFC3339), cred.ID)
	if err != nil {
		return Credential{}, apierr.Wrap(apierr.Internal, "recording credential usage", err)
	}
	cred.UsageCount++
	cred.LastUsedAt = &now
	return cred, nil
}

func (s *Store) Revoke(ctx context.Context, secret string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_active = 0 WHERE secret = ?`, secret)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "revoking credential", err)
	}
	return requireRowAffected(res)
}

func (s *Store) SetAdmin(ctx context.Context, secret string, isAdmin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET is_admin = ? WHERE secret = ?`, boolToInt(isAdmin), secret)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "updating credential admin flag", err)
	}
	return requireRowAffected(res)
}

func (s *Store) UpdateDescription(ctx context.Context, secret, description string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET description = ? WHERE secret = ?`, description, secret)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "updating credential description", err)
	}
	return requireRowAffected(res)
}

func (s *Store) List(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, secret, name, description, created_by, is_admin, is_active, usage_count, created_at, expires_at, last_used_at
		FROM api_keys ORDER BY id
	`)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing credentials", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, apierr.Wrap(apierr.Internal, "scanning credential row", err)
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// CleanupExpired deactivates every credential past its expiry and returns how
// many rows it touched, for both the admin API and a periodic background
// sweep.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET is_active = 0
		WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "cleaning up expired credentials", err)
	}
	return res.RowsAffected()
}

func (s *Store) GetByID(ctx context.Context, id int64) (Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, secret, name, description, created_by, is_admin, is_active, usage_count, created_at, expires_at, last_used_at
		FROM api_keys WHERE id = ?
	`, id)
	return scanCredential(row)
}

func (s *Store) getBySecret(ctx context.Context, secret string) (Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, secret, name, description, created_by, is_admin, is_active, usage_count, created_at, expires_at, last_used_at
		FROM api_keys WHERE secret = ?
	`, secret)
	return scanCredential(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (Credential, error) {
	var c Credential
	var isAdmin, isActive int
	var createdAt string
	var expiresAt, lastUsedAt sql.NullString

	if err := row.Scan(&c.ID, &c.Secret, &c.Name, &c.Description, &c.CreatedBy, &isAdmin, &isActive, &c.UsageCount, &createdAt, &expiresAt, &lastUsedAt); err != nil {
		return Credential{}, err
	}
	c.IsAdmin = isAdmin != 0
	c.IsActive = isActive != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err == nil {
			c.ExpiresAt = &t
		}
	}
	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err == nil {
			c.LastUsedAt = &t
		}
	}
	return c, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "checking rows affected", err)
	}
	if n == 0 {
		return apierr.New(apierr.Unauthorized, "credential not found")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
