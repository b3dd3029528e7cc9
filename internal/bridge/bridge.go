// Package bridge translates host events into store events, queues them
// durably, and fires commit triggers.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/config"
	"github.com/nextlevelbuilder/vikingbridge/internal/outbox"
	"github.com/nextlevelbuilder/vikingbridge/internal/sessionlink"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Commit causes.
const (
	CauseSessionEnd = "session_end"
	CauseReset      = "reset"
	CausePeriodic   = "periodic"
	CauseManual     = "manual"
)

// Trigger sources.
const (
	SourceMessageThreshold = "message-threshold"
	SourceTimeThreshold    = "time-threshold"
)

// EnqueueOptions tunes one enqueue call.
type EnqueueOptions struct {
	// SkipCommitTriggers prevents trigger re-evaluation. Set on the enqueue
	// path of a trigger's own commit event so it cannot re-trigger itself.
	SkipCommitTriggers bool
}

// Bridge is the write path for one (agentID, endpoint) pair.
type Bridge struct {
	agentID string
	cfg     *config.MemoryConfig
	client  *viking.Client
	links   *sessionlink.Registry
	ob      *outbox.Outbox // nil when the outbox is disabled

	stats statsCell
}

// New wires a Bridge. The outbox may be nil (synchronous delivery).
func New(agentID string, cfg *config.MemoryConfig, client *viking.Client, links *sessionlink.Registry, ob *outbox.Outbox) *Bridge {
	return &Bridge{agentID: agentID, cfg: cfg, client: client, links: links, ob: ob}
}

// AgentID returns the host agent this bridge serves.
func (b *Bridge) AgentID() string { return b.agentID }

// Endpoint returns the store endpoint this bridge writes to.
func (b *Bridge) Endpoint() string { return b.client.Endpoint() }

// Outbox returns the underlying outbox, or nil when disabled.
func (b *Bridge) Outbox() *outbox.Outbox { return b.ob }

// Links returns the session link registry.
func (b *Bridge) Links() *sessionlink.Registry { return b.links }

// Client returns the underlying store client.
func (b *Bridge) Client() *viking.Client { return b.client }

// EnqueueEvents queues a batch of events for a sessionKey. Returns false
// (not queued) when the backend is disabled, dual-write is off, the batch is
// empty, or session linkage cannot be established.
func (b *Bridge) EnqueueEvents(ctx context.Context, sessionKey string, events []viking.SessionEvent, opts EnqueueOptions) (bool, error) {
	if !b.cfg.Enabled || !b.cfg.DualWrite {
		return false, nil
	}
	if len(events) == 0 {
		return false, nil
	}

	sessionID, err := b.links.EnsureLink(ctx, sessionKey, b.client.CreateSession)
	if err != nil {
		// Soft no-op: the session stays unlinked and the write drops. The
		// host observes this via stats.
		slog.Warn("session link unavailable, dropping events",
			"agent", b.agentID, "sessionKey", sessionKey, "error", err)
		b.stats.recordError(err)
		return false, nil
	}

	if b.ob != nil {
		if _, err := b.ob.Enqueue(sessionKey, sessionID, events); err != nil {
			b.stats.recordError(err)
			return false, fmt.Errorf("enqueue outbox: %w", err)
		}
	} else {
		if err := b.client.AddEventsBatch(ctx, sessionID, events); err != nil {
			b.stats.recordError(err)
			return false, err
		}
	}

	hasCommit := false
	for _, ev := range events {
		b.stats.recordQueued(ev.EventType)
		if ev.EventType == viking.EventCommit {
			hasCommit = true
		}
	}

	if hasCommit || opts.SkipCommitTriggers {
		return true, nil
	}

	seq, err := b.links.BumpSeq(sessionKey, len(events))
	if err != nil {
		b.stats.recordError(err)
		return true, nil
	}
	b.evaluateCommitTriggers(ctx, sessionKey, seq)
	return true, nil
}

// evaluateCommitTriggers fires at most one periodic commit per enqueue:
// message threshold first, then time threshold.
func (b *Bridge) evaluateCommitTriggers(ctx context.Context, sessionKey string, seq int64) {
	t := b.cfg.Commit.Triggers

	if n := t.EveryNMessages; n > 0 && seq%int64(n) == 0 {
		if err := b.queueCommit(ctx, sessionKey, CausePeriodic, SourceMessageThreshold); err != nil {
			slog.Warn("periodic commit enqueue failed", "agent", b.agentID, "source", SourceMessageThreshold, "error", err)
			return
		}
		b.stats.recordPeriodic(SourceMessageThreshold)
		return
	}

	if m := t.EveryNMinutes; m > 0 {
		last, err := b.links.LastCommitAt(sessionKey)
		if err != nil || last.IsZero() {
			return
		}
		if time.Since(last) >= time.Duration(m)*time.Minute {
			if err := b.queueCommit(ctx, sessionKey, CausePeriodic, SourceTimeThreshold); err != nil {
				slog.Warn("periodic commit enqueue failed", "agent", b.agentID, "source", SourceTimeThreshold, "error", err)
				return
			}
			b.stats.recordPeriodic(SourceTimeThreshold)
		}
	}
}

// EnqueueCommit issues an explicit commit. In sync mode it calls the store
// directly; otherwise a single commit event is queued, bypassing trigger
// re-evaluation and the sequence bump.
func (b *Bridge) EnqueueCommit(ctx context.Context, sessionKey, cause, source string) error {
	t := b.cfg.Commit.Triggers
	if cause == CauseSessionEnd && !t.SessionEnd {
		return fmt.Errorf("commit rejected: session_end trigger disabled")
	}
	if cause == CauseReset && !t.Reset {
		return fmt.Errorf("commit rejected: reset trigger disabled")
	}

	if b.cfg.Commit.Mode == "sync" {
		sessionID, err := b.links.EnsureLink(ctx, sessionKey, b.client.CreateSession)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := b.client.CommitSession(ctx, sessionID, cause); err != nil {
			b.stats.recordError(err)
			return err
		}
		// The counter means "commits observed by the bridge", so the sync
		// path bumps it even though nothing was enqueued.
		b.stats.recordCommit(cause, source, "sync")
		if err := b.links.MarkCommitQueued(sessionKey); err != nil {
			b.stats.recordError(err)
		}
		return nil
	}

	if err := b.queueCommit(ctx, sessionKey, cause, source); err != nil {
		return err
	}
	return nil
}

// queueCommit enqueues one commit event with triggers suppressed and records
// commit stats and link metadata.
func (b *Bridge) queueCommit(ctx context.Context, sessionKey, cause, source string) error {
	ev := NewCommitEvent(cause)
	queued, err := b.EnqueueEvents(ctx, sessionKey, []viking.SessionEvent{ev}, EnqueueOptions{SkipCommitTriggers: true})
	if err != nil {
		return err
	}
	if !queued {
		return fmt.Errorf("commit not queued (cause=%s)", cause)
	}
	b.stats.recordCommit(cause, source, "async")
	if err := b.links.MarkCommitQueued(sessionKey); err != nil {
		b.stats.recordError(err)
	}
	return nil
}

// EnqueueMessage queues one message event. Empty content after trimming is a
// silent no-op.
func (b *Bridge) EnqueueMessage(ctx context.Context, sessionKey, role, content string) (bool, error) {
	ev, ok := NewMessageEvent(role, content)
	if !ok {
		return false, nil
	}
	return b.EnqueueEvents(ctx, sessionKey, []viking.SessionEvent{ev}, EnqueueOptions{})
}

// EnqueueToolResult queues one tool_result event describing a tool call.
func (b *Bridge) EnqueueToolResult(ctx context.Context, sessionKey, toolName string, payload any) (bool, error) {
	ev, err := NewToolResultEvent(toolName, payload)
	if err != nil {
		return false, err
	}
	return b.EnqueueEvents(ctx, sessionKey, []viking.SessionEvent{ev}, EnqueueOptions{})
}

// Stats returns a snapshot of bridge counters.
func (b *Bridge) Stats() Stats {
	return b.stats.snapshot()
}
