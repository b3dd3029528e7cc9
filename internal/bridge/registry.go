package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/outbox"
	"github.com/nextlevelbuilder/vikingbridge/internal/sessionlink"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Registry memoises Bridge instances per (agentID, endpoint) so each agent
// owns exactly one durable queue. The mapping is injectable to keep tests
// isolated from process-wide state.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// Ensure returns the bridge for (agentID, endpoint), constructing and
// starting it on first use. The second Ensure returns the same instance.
func (r *Registry) Ensure(ctx context.Context, agentID string, cfg *config.Config) (*Bridge, error) {
	key := agentID + "|" + cfg.Memory.Endpoint

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bridges[key]; ok {
		return b, nil
	}

	mem := &cfg.Memory
	client := viking.New(viking.Options{
		Endpoint:          mem.Endpoint,
		APIKey:            mem.APIKey,
		Headers:           mem.Headers,
		Timeout:           time.Duration(mem.TimeoutMs) * time.Millisecond,
		RequestsPerSecond: mem.RequestsPerSecond,
	})
	links := sessionlink.NewRegistry(cfg.SessionStorePath())

	var ob *outbox.Outbox
	if mem.Outbox.Enabled {
		ob = outbox.New(outbox.Config{
			Path:          cfg.OutboxPath(),
			FlushInterval: time.Duration(mem.Outbox.FlushIntervalMs) * time.Millisecond,
			MaxBatchSize:  mem.Outbox.MaxBatchSize,
			RetryBase:     time.Duration(mem.Outbox.RetryBaseMs) * time.Millisecond,
			RetryMax:      time.Duration(mem.Outbox.RetryMaxMs) * time.Millisecond,
		}, func(ctx context.Context, item *outbox.Item) error {
			return client.AddEventsBatch(ctx, item.SessionID, item.Events)
		})
		if err := ob.Start(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
	}

	b := New(agentID, mem, client, links, ob)
	r.bridges[key] = b
	return b, nil
}

// StopAll stops every bridge's outbox. Intended for process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	bridges := make([]*Bridge, 0, len(r.bridges))
	for _, b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.mu.Unlock()

	for _, b := range bridges {
		if b.ob != nil {
			b.ob.Stop()
		}
	}
}
