package memory

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/vikingbridge/internal/bridge"
	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/retrieve"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// VikingBackend couples the write bridge and read pipeline into one
// host-facing backend over a single store endpoint.
type VikingBackend struct {
	agentID  string
	cfg      *config.Config
	bridge   *bridge.Bridge
	client   *viking.Client
	pipeline *retrieve.Pipeline
	registry *bridge.Registry
}

// NewVikingBackend builds (or reuses, via the registry) the bridge for
// (agentID, endpoint) and wires the read pipeline on top of it.
func NewVikingBackend(ctx context.Context, agentID string, cfg *config.Config, reg *bridge.Registry, diag *retrieve.Diagnostics) (*VikingBackend, error) {
	br, err := reg.Ensure(ctx, agentID, cfg)
	if err != nil {
		return nil, err
	}
	pipe := retrieve.NewPipeline(agentID, &cfg.Memory, br.Client(), br.Links(), diag)
	return &VikingBackend{
		agentID:  agentID,
		cfg:      cfg,
		bridge:   br,
		client:   br.Client(),
		pipeline: pipe,
		registry: reg,
	}, nil
}

// Bridge exposes the write path for host event capture.
func (b *VikingBackend) Bridge() *bridge.Bridge { return b.bridge }

// Pipeline exposes the read path.
func (b *VikingBackend) Pipeline() *retrieve.Pipeline { return b.pipeline }

// Search implements Backend.
func (b *VikingBackend) Search(ctx context.Context, query string, opts retrieve.SearchOptions) ([]retrieve.Result, error) {
	if !b.cfg.Memory.Enabled {
		return nil, nil
	}
	return b.pipeline.Search(ctx, query, opts)
}

// ReadFile implements Backend.
func (b *VikingBackend) ReadFile(ctx context.Context, path string, from, lines int) (FileContent, error) {
	text, err := b.pipeline.ReadFile(ctx, path, from, lines)
	if err != nil {
		return FileContent{}, err
	}
	return FileContent{Text: text, Path: retrieve.ResolveURI(path)}, nil
}

// Status implements Backend.
func (b *VikingBackend) Status(ctx context.Context) StatusSnapshot {
	snap := StatusSnapshot{
		Backend:  "openviking",
		Endpoint: b.client.Endpoint(),
		Bridge:   b.bridge.Stats(),
	}
	if err := b.client.Health(ctx); err != nil {
		snap.Error = err.Error()
	} else {
		snap.Healthy = true
	}
	if ob := b.bridge.Outbox(); ob != nil {
		stats := ob.GetStats()
		snap.Outbox = &stats
	}
	if last, ok := b.pipeline.LastSnapshot(); ok {
		snap.LastSearch = &last
	}
	return snap
}

// Sync implements Backend: flush the outbox, then wait for the store's
// observer pipeline to settle.
func (b *VikingBackend) Sync(ctx context.Context) error {
	if ob := b.bridge.Outbox(); ob != nil {
		if err := ob.Flush(ctx); err != nil {
			return fmt.Errorf("memory sync: flush outbox: %w", err)
		}
		if depth := ob.Depth(); depth > 0 {
			return fmt.Errorf("memory sync: %d items still pending", depth)
		}
	}
	timeoutSec := b.cfg.Memory.TimeoutMs / 1000
	if timeoutSec < 1 {
		timeoutSec = 1
	}
	return b.client.WaitProcessed(ctx, timeoutSec)
}

// ProbeEmbeddingAvailability implements Backend via the store's VLM observer.
func (b *VikingBackend) ProbeEmbeddingAvailability(ctx context.Context) error {
	status, err := b.client.ObserverVLM(ctx)
	if err != nil {
		return err
	}
	if !status.IsHealthy {
		return fmt.Errorf("embedding model unavailable")
	}
	return nil
}

// ProbeVectorAvailability implements Backend via the store's vector-index
// observer.
func (b *VikingBackend) ProbeVectorAvailability(ctx context.Context) error {
	status, err := b.client.ObserverVikingDB(ctx)
	if err != nil {
		return err
	}
	if !status.IsHealthy {
		return fmt.Errorf("vector index unavailable")
	}
	return nil
}

// Close implements Backend. The shared bridge registry owns outbox lifecycle,
// so Close is a no-op beyond releasing references.
func (b *VikingBackend) Close() error { return nil }

var _ Backend = (*VikingBackend)(nil)
