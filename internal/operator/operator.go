// Package operator is the in-process control surface over credentials and
// the backend pool, sitting between internal/httpserver and the lower-level
// credential/backend packages.
package operator

import (
	"context"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/backend"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

type Operator struct {
	credentials *credential.Store
	registry    *backend.Registry
	selector    *backend.Selector
	prober      *backend.Prober
}

func New(credentials *credential.Store, registry *backend.Registry, selector *backend.Selector, prober *backend.Prober) *Operator {
	return &Operator{credentials: credentials, registry: registry, selector: selector, prober: prober}
}

// --- credential operations -------------------------------------------------

func (o *Operator) CreateCredential(ctx context.Context, p credential.CreateParams) (credential.Credential, error) {
	return o.credentials.Create(ctx, p)
}

func (o *Operator) RevokeCredential(ctx context.Context, secret string) error {
	return o.credentials.Revoke(ctx, secret)
}

func (o *Operator) SetCredentialAdmin(ctx context.Context, secret string, isAdmin bool) error {
	return o.credentials.SetAdmin(ctx, secret, isAdmin)
}

func (o *Operator) UpdateCredentialDescription(ctx context.Context, secret, description string) error {
	return o.credentials.UpdateDescription(ctx, secret, description)
}

func (o *Operator) ListCredentials(ctx context.Context) ([]credential.Credential, error) {
	return o.credentials.List(ctx)
}

func (o *Operator) CleanupExpiredCredentials(ctx context.Context) (int64, error) {
	return o.credentials.CleanupExpired(ctx)
}

// --- backend operations ------------------------------------------------

func (o *Operator) ListBackends() []backend.Snapshot {
	return o.registry.Snapshot()
}

func (o *Operator) AddBackend(cfg config.BackendConfig) error {
	return o.registry.Add(cfg)
}

func (o *Operator) RemoveBackend(name string) error {
	return o.registry.Remove(name)
}

func (o *Operator) EnableBackend(name string) error {
	return o.registry.Enable(name)
}

func (o *Operator) DisableBackend(name string) error {
	return o.registry.Disable(name)
}

// --- selection strategy -----------------------------------------------

func (o *Operator) Strategy() backend.Strategy {
	return o.selector.Strategy()
}

func (o *Operator) SetStrategy(strategy backend.Strategy) error {
	return o.selector.SetStrategy(strategy)
}

// --- health checking -----------------------------------------------------

func (o *Operator) StartHealthChecks(ctx context.Context) {
	o.prober.Start(ctx)
}

func (o *Operator) StopHealthChecks() {
	o.prober.Stop()
}

func (o *Operator) HealthChecksRunning() bool {
	return o.prober.Running()
}

func (o *Operator) RunHealthCheckNow(ctx context.Context) {
	o.prober.ProbeNow(ctx)
}

// Status is the aggregate view the /status endpoint reports: overall
// strategy and prober state alongside the per-backend snapshot.
type Status struct {
	Strategy            backend.Strategy  `json:"strategy"`
	HealthChecksRunning bool              `json:"health_checks_running"`
	Backends            []backend.Snapshot `json:"backends"`
}

func (o *Operator) Status() Status {
	return Status{
		Strategy:            o.Strategy(),
		HealthChecksRunning: o.HealthChecksRunning(),
		Backends:            o.ListBackends(),
	}
}
