// Package storage implements the strategy router over the Provider
// contract: local-only, network-only, p2p-only select a single backend;
// hybrid writes through a primary synchronously and fires the rest in the
// background, reporting failures on the event bus instead of blocking the
// caller. Grounded on KelvinWu602-immutable-storage's ApplicationServer dispatch in
// server/app.go, generalised from a single immutable-storage backend to an
// ordered list of Providers.
package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/hashicorp/go-multierror"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Strategy names the provider selection policy.
type Strategy string

const (
	LocalOnly   Strategy = "local-only"
	NetworkOnly Strategy = "network-only"
	P2POnly     Strategy = "p2p-only"
	Hybrid      Strategy = "hybrid"
)

// Manager routes Store/Retrieve/Delete calls across one or more
// blueprint.Provider backends according to Strategy.
type Manager struct {
	strategy Strategy
	local    blueprint.Provider
	network  blueprint.Provider
	p2p      blueprint.Provider
	bus      blueprint.EventBus
}

// New constructs a Manager. Any of local/network/p2p may be nil; Strategy
// selection will error at call time if the provider it needs is absent.
func New(strategy Strategy, local, network, p2p blueprint.Provider, bus blueprint.EventBus) *Manager {
	return &Manager{strategy: strategy, local: local, network: network, p2p: p2p, bus: bus}
}

// primary returns the provider the configured Strategy writes through
// synchronously, and secondary lists the remaining non-nil providers that
// a hybrid Store additionally replicates to in the background.
func (m *Manager) primary() (blueprint.Provider, []blueprint.Provider, error) {
	switch m.strategy {
	case LocalOnly:
		if m.local == nil {
			return nil, nil, fmt.Errorf("storage: local-only strategy requires a local provider")
		}
		return m.local, nil, nil
	case NetworkOnly:
		if m.network == nil {
			return nil, nil, fmt.Errorf("storage: network-only strategy requires a network provider")
		}
		return m.network, nil, nil
	case P2POnly:
		if m.p2p == nil {
			return nil, nil, fmt.Errorf("storage: p2p-only strategy requires a p2p provider")
		}
		return m.p2p, nil, nil
	case Hybrid:
		var primary blueprint.Provider
		var rest []blueprint.Provider
		for _, p := range []blueprint.Provider{m.local, m.network, m.p2p} {
			if p == nil {
				continue
			}
			if primary == nil {
				primary = p
				continue
			}
			rest = append(rest, p)
		}
		if primary == nil {
			return nil, nil, fmt.Errorf("storage: hybrid strategy requires at least one provider")
		}
		return primary, rest, nil
	default:
		return nil, nil, fmt.Errorf("storage: unknown strategy %q", m.strategy)
	}
}

// Store writes to the primary provider synchronously; under Hybrid, the
// remaining configured providers are replicated to in the background and
// failures are reported via EventReplicationFailed rather than returned.
func (m *Manager) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	primary, secondary, err := m.primary()
	if err != nil {
		return blueprint.ArtifactMetadata{}, err
	}
	meta, err := primary.Store(ctx, data, opts)
	if err != nil {
		return blueprint.ArtifactMetadata{}, err
	}
	for _, p := range secondary {
		go m.replicate(p, data, opts, meta)
	}
	return meta, nil
}

func (m *Manager) replicate(p blueprint.Provider, data []byte, opts blueprint.StoreOptions, meta blueprint.ArtifactMetadata) {
	if _, err := p.Store(context.Background(), data, opts); err != nil {
		log.Println("[storage]: replication to", p.Name(), "failed for", meta.ID, ":", err)
		if m.bus != nil {
			m.bus.Emit(blueprint.EventReplicationFailed, map[string]string{
				"artifact_id": meta.ID,
				"provider":    p.Name(),
				"error":       err.Error(),
			})
		}
	}
}

// Retrieve tries the primary provider, falling through to the remaining
// configured providers under Hybrid before giving up.
func (m *Manager) Retrieve(ctx context.Context, id string) ([]byte, error) {
	primary, secondary, err := m.primary()
	if err != nil {
		return nil, err
	}
	data, err := primary.Retrieve(ctx, id)
	if err == nil {
		return data, nil
	}
	for _, p := range secondary {
		if data, fallbackErr := p.Retrieve(ctx, id); fallbackErr == nil {
			return data, nil
		}
	}
	return nil, err
}

// Delete removes the artifact from every configured provider on a
// best-effort basis; it returns true if any backend acknowledged the
// deletion.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	var any bool
	var errs *multierror.Error
	for _, p := range []blueprint.Provider{m.local, m.network, m.p2p} {
		if p == nil {
			continue
		}
		ok, err := p.Delete(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
		any = any || ok
	}
	return any, errs.ErrorOrNil()
}

// GetMetadata consults the primary provider, falling back under Hybrid.
func (m *Manager) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	primary, secondary, err := m.primary()
	if err != nil {
		return blueprint.ArtifactMetadata{}, err
	}
	meta, err := primary.GetMetadata(ctx, id)
	if err == nil {
		return meta, nil
	}
	for _, p := range secondary {
		if meta, fallbackErr := p.GetMetadata(ctx, id); fallbackErr == nil {
			return meta, nil
		}
	}
	return blueprint.ArtifactMetadata{}, err
}

// ValidateChecksum checks the primary provider's copy.
func (m *Manager) ValidateChecksum(ctx context.Context, id string) (bool, error) {
	primary, _, err := m.primary()
	if err != nil {
		return false, err
	}
	return primary.ValidateChecksum(ctx, id)
}

// Cleanup runs on every configured provider, collecting all errors.
func (m *Manager) Cleanup(ctx context.Context) error {
	var errs *multierror.Error
	for _, p := range []blueprint.Provider{m.local, m.network, m.p2p} {
		if p == nil {
			continue
		}
		if err := p.Cleanup(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errs.ErrorOrNil()
}
