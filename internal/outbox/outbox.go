// Package outbox provides a durable, ordered, at-least-once queue of event
// batches persisted as one JSON record per line.
package outbox

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Item is one queued batch of session events.
type Item struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	Attempts      int                   `json:"attempts"`
	NextAttemptAt time.Time             `json:"nextAttemptAt"`
	SessionKey    string                `json:"sessionKey"`
	SessionID     string                `json:"sessionId"`
	Events        []viking.SessionEvent `json:"events"`
}

// Sender delivers one item to the store. It must return nil only when the
// batch was durably accepted.
type Sender func(ctx context.Context, item *Item) error

// Config tunes persistence and retry behavior.
type Config struct {
	Path          string
	FlushInterval time.Duration
	MaxBatchSize  int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// Outbox owns its file exclusively; no other component may mutate it.
// Safe for concurrent use.
type Outbox struct {
	cfg  Config
	send Sender

	mu    sync.Mutex // guards items and the file
	items []*Item

	flushMu sync.Mutex // single-flight flush guard

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	sm    sync.Mutex // guards stats
	stats Stats
}

// New creates an Outbox. Call Start before enqueuing.
func New(cfg Config, send Sender) *Outbox {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 16
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = 60 * time.Second
	}
	return &Outbox{
		cfg:  cfg,
		send: send,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start loads the file (skipping malformed lines) and begins the periodic
// flush loop.
func (o *Outbox) Start(ctx context.Context) error {
	if err := o.load(); err != nil {
		return err
	}
	go o.loop(ctx)
	return nil
}

// Stop cancels the flush timer. An in-flight flush completes.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		close(o.stop)
		<-o.done
	})
}

func (o *Outbox) loop(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Flush(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("outbox flush failed", "path", o.cfg.Path, "error", err)
			}
		}
	}
}

// Enqueue appends one item and persists the file. Returns the new depth.
func (o *Outbox) Enqueue(sessionKey, sessionID string, events []viking.SessionEvent) (int, error) {
	now := time.Now()
	item := &Item{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Attempts:      0,
		NextAttemptAt: now,
		SessionKey:    sessionKey,
		SessionID:     sessionID,
		Events:        events,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, item)
	if err := o.persistLocked(); err != nil {
		o.items = o.items[:len(o.items)-1]
		return len(o.items), err
	}

	o.sm.Lock()
	o.stats.TotalEnqueued++
	o.sm.Unlock()

	return len(o.items), nil
}

// Flush drains ready items in enqueue order under a single-flight guard.
// One item's failure delays only that item; delivery stops after
// MaxBatchSize successful sends per cycle.
func (o *Outbox) Flush(ctx context.Context) error {
	if !o.flushMu.TryLock() {
		return nil // a flush is already in progress
	}
	defer o.flushMu.Unlock()

	ctx, span := otel.Tracer("vikingbridge/outbox").Start(ctx, "outbox.flush")
	defer span.End()

	start := time.Now()
	now := start

	o.mu.Lock()
	snapshot := make([]*Item, len(o.items))
	copy(snapshot, o.items)
	o.mu.Unlock()

	sent := 0
	failed := 0
	var lastErr error
	delivered := make(map[string]bool)
	retry := make(map[string]bool)

	for _, item := range snapshot {
		if sent >= o.cfg.MaxBatchSize {
			break
		}
		if item.NextAttemptAt.After(now) {
			continue
		}
		if err := o.send(ctx, item); err != nil {
			retry[item.ID] = true
			failed++
			lastErr = err
			continue
		}
		delivered[item.ID] = true
		sent++
	}

	// Successful items are physically removed so they never reappear after
	// a restart. Retry state is applied under o.mu: a concurrent Enqueue
	// serializes these same items to disk, so the mutation and the write
	// must share the lock.
	o.mu.Lock()
	if len(delivered) > 0 || len(retry) > 0 {
		if len(delivered) > 0 {
			kept := o.items[:0]
			for _, item := range o.items {
				if !delivered[item.ID] {
					kept = append(kept, item)
				}
			}
			o.items = kept
		}
		retryAt := time.Now()
		for _, item := range o.items {
			if retry[item.ID] {
				item.Attempts++
				item.UpdatedAt = retryAt
				item.NextAttemptAt = retryAt.Add(o.retryDelay(item.Attempts))
			}
		}
		if err := o.persistLocked(); err != nil && lastErr == nil {
			lastErr = err
		}
	}
	depth := len(o.items)
	o.mu.Unlock()

	o.sm.Lock()
	o.stats.TotalSent += int64(sent)
	o.stats.TotalFailed += int64(failed)
	o.stats.LastFlushAt = start
	o.stats.LastFlushDuration = time.Since(start)
	o.stats.LastFlushSent = sent
	o.stats.LastFlushErrors = failed
	if lastErr != nil {
		o.stats.LastError = lastErr.Error()
	}
	o.sm.Unlock()

	span.SetAttributes(
		attribute.Int("outbox.sent", sent),
		attribute.Int("outbox.failed", failed),
		attribute.Int("outbox.depth", depth),
	)
	return lastErr
}

// retryDelay is min(RetryMax, RetryBase * 2^(attempts-1)).
func (o *Outbox) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 20 {
		shift = 20
	}
	delay := o.cfg.RetryBase << shift
	if delay > o.cfg.RetryMax || delay <= 0 {
		delay = o.cfg.RetryMax
	}
	return delay
}

// Depth returns the number of queued items.
func (o *Outbox) Depth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// load reads the file into memory. Blank and unparseable lines (including a
// partial last line from a crashed write) are skipped.
func (o *Outbox) load() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.Open(o.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	dropped := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item Item
		if err := json.Unmarshal(line, &item); err != nil || item.ID == "" || len(item.Events) == 0 {
			dropped++
			continue
		}
		o.items = append(o.items, &item)
	}
	if dropped > 0 {
		slog.Warn("outbox dropped malformed lines on load", "path", o.cfg.Path, "dropped", dropped)
	}
	return scanner.Err()
}

// persistLocked rewrites the file atomically (temp file, rename). Callers
// hold o.mu.
func (o *Outbox) persistLocked() error {
	dir := filepath.Dir(o.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "outbox-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, item := range o.items {
		if err := enc.Encode(item); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, o.cfg.Path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
