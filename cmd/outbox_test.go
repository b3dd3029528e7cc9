package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/outbox"
	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

func seedOutboxFile(t *testing.T, path string, items []outbox.Item) {
	t.Helper()
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFlushUntilDrained_WaitsOutRetryWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	now := time.Now()
	events := []viking.SessionEvent{{EventID: "ev-1", EventType: viking.EventMessage, Role: "user", Content: "hi"}}
	seedOutboxFile(t, path, []outbox.Item{
		{ID: "ready", CreatedAt: now, NextAttemptAt: now, SessionID: "s", Events: events},
		{ID: "deferred", CreatedAt: now, NextAttemptAt: now.Add(30 * time.Millisecond), SessionID: "s", Events: events},
	})

	delivered := 0
	ob := outbox.New(outbox.Config{
		Path:          path,
		FlushInterval: time.Hour,
	}, func(ctx context.Context, item *outbox.Item) error {
		delivered++
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := flushUntilDrained(ctx, ob); err != nil {
		t.Fatal(err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if depth := ob.Depth(); depth != 0 {
		t.Errorf("depth = %d, want 0", depth)
	}
}

func TestFlushUntilDrained_TimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	now := time.Now()
	events := []viking.SessionEvent{{EventID: "ev-1", EventType: viking.EventMessage, Role: "user", Content: "hi"}}
	seedOutboxFile(t, path, []outbox.Item{
		{ID: "far-future", CreatedAt: now, NextAttemptAt: now.Add(time.Hour), SessionID: "s", Events: events},
	})

	ob := outbox.New(outbox.Config{
		Path:          path,
		FlushInterval: time.Hour,
	}, func(ctx context.Context, item *outbox.Item) error {
		t.Error("sender called for an item inside its retry window")
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := flushUntilDrained(ctx, ob)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
}
