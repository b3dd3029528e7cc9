package outbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

func testEvents(content string) []viking.SessionEvent {
	return []viking.SessionEvent{{
		EventID:   "ev-" + content,
		EventType: viking.EventMessage,
		Role:      "user",
		Content:   content,
	}}
}

func newTestOutbox(t *testing.T, path string, send Sender) *Outbox {
	t.Helper()
	return New(Config{
		Path:          path,
		FlushInterval: time.Hour, // flushed manually in tests
		MaxBatchSize:  16,
		RetryBase:     time.Millisecond,
		RetryMax:      10 * time.Millisecond,
	}, send)
}

func TestOutbox_OutageAndRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")

	var mu sync.Mutex
	storeUp := false
	delivered := 0
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		mu.Lock()
		defer mu.Unlock()
		if !storeUp {
			return errors.New("connection refused")
		}
		delivered++
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	// Store down: enqueue 200 messages plus a session_end commit.
	for i := 0; i < 200; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		events := []viking.SessionEvent{{
			EventID:   fmt.Sprintf("ev-%d", i),
			EventType: viking.EventMessage,
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
		}}
		if _, err := ob.Enqueue("sess", "store-sess", events); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ob.Enqueue("sess", "store-sess", []viking.SessionEvent{{
		EventID:   "ev-commit",
		EventType: viking.EventCommit,
		Cause:     "session_end",
	}}); err != nil {
		t.Fatal(err)
	}

	if err := ob.Flush(context.Background()); err == nil {
		t.Error("flush against a down store should report an error")
	}
	if depth := ob.Depth(); depth < 201 {
		t.Fatalf("depth = %d, want >= 201", depth)
	}

	// Store back up: drain completely.
	mu.Lock()
	storeUp = true
	mu.Unlock()

	deadline := time.Now().Add(5 * time.Second)
	for ob.Depth() > 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond) // wait out retry backoff
		if err := ob.Flush(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if depth := ob.Depth(); depth != 0 {
		t.Fatalf("depth = %d after recovery, want 0", depth)
	}
	mu.Lock()
	defer mu.Unlock()
	if delivered != 201 {
		t.Errorf("delivered = %d, want 201", delivered)
	}
}

func TestOutbox_ColdRestartDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")

	first := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		return errors.New("always down")
	})
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Enqueue("sess", "store-sess", testEvents("survives restart")); err != nil {
		t.Fatal(err)
	}
	_ = first.Flush(context.Background())
	first.Stop()

	delivered := 0
	second := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		delivered++
		if item.Events[0].Content != "survives restart" {
			t.Errorf("content = %q", item.Events[0].Content)
		}
		return nil
	})
	if err := second.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer second.Stop()

	if depth := second.Depth(); depth != 1 {
		t.Fatalf("depth after restart = %d, want 1", depth)
	}
	time.Sleep(15 * time.Millisecond) // past the retry window
	if err := second.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if delivered != 1 || second.Depth() != 0 {
		t.Errorf("delivered = %d depth = %d, want 1/0", delivered, second.Depth())
	}
}

func TestOutbox_DeliveryOrderMatchesEnqueueOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	var order []string
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		order = append(order, item.Events[0].Content)
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	for _, s := range []string{"a", "b", "c", "d"} {
		if _, err := ob.Enqueue("sess", "id", testEvents(s)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ob.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(order) != len(want) {
		t.Fatalf("delivered %d items, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestOutbox_CorruptLastLineDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error { return nil })
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ob.Enqueue("sess", "id", testEvents("one"))
	ob.Enqueue("sess", "id", testEvents("two"))
	ob.Stop()

	// Simulate a crash mid-write: append a truncated record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"id":"half-written","createdAt":`)
	f.Close()

	restarted := newTestOutbox(t, path, func(ctx context.Context, item *Item) error { return nil })
	if err := restarted.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer restarted.Stop()
	if depth := restarted.Depth(); depth != 2 {
		t.Errorf("depth = %d, want 2 (corrupt line dropped, earlier items kept)", depth)
	}
}

func TestOutbox_MaxBatchSizePerFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	sent := 0
	ob := New(Config{
		Path:          path,
		FlushInterval: time.Hour,
		MaxBatchSize:  3,
		RetryBase:     time.Millisecond,
		RetryMax:      time.Millisecond,
	}, func(ctx context.Context, item *Item) error {
		sent++
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	for i := 0; i < 10; i++ {
		ob.Enqueue("sess", "id", testEvents(fmt.Sprintf("%d", i)))
	}
	if err := ob.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sent != 3 {
		t.Errorf("sent = %d in one cycle, want 3", sent)
	}
	if depth := ob.Depth(); depth != 7 {
		t.Errorf("depth = %d, want 7", depth)
	}
}

func TestOutbox_BackoffGatesRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	attempts := 0
	ob := New(Config{
		Path:          path,
		FlushInterval: time.Hour,
		MaxBatchSize:  16,
		RetryBase:     time.Hour, // first failure pushes NextAttemptAt far out
		RetryMax:      time.Hour,
	}, func(ctx context.Context, item *Item) error {
		attempts++
		return errors.New("down")
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	ob.Enqueue("sess", "id", testEvents("x"))
	_ = ob.Flush(context.Background())
	if err := ob.Flush(context.Background()); err != nil {
		t.Errorf("second flush should skip the backed-off item, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (item not ready again yet)", attempts)
	}

	stats := ob.GetStats()
	if stats.MaxAttempts != 1 || stats.ReadyNow != 0 || stats.NextReadyIn <= 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOutbox_FailedItemDoesNotBlockLaterItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	var delivered []string
	ob := New(Config{
		Path:          path,
		FlushInterval: time.Hour,
		MaxBatchSize:  16,
		RetryBase:     time.Hour,
		RetryMax:      time.Hour,
	}, func(ctx context.Context, item *Item) error {
		if item.Events[0].Content == "poison" {
			return errors.New("rejected")
		}
		delivered = append(delivered, item.Events[0].Content)
		return nil
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	ob.Enqueue("sess", "id", testEvents("poison"))
	ob.Enqueue("sess", "id", testEvents("good"))
	_ = ob.Flush(context.Background())

	if len(delivered) != 1 || delivered[0] != "good" {
		t.Errorf("delivered = %v, want [good]", delivered)
	}
	if depth := ob.Depth(); depth != 1 {
		t.Errorf("depth = %d, want 1 (poison retained)", depth)
	}
}

func TestOutbox_StatsTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error { return nil })
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	ob.Enqueue("sess", "id", testEvents("a"))
	ob.Enqueue("sess", "id", testEvents("b"))
	if err := ob.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := ob.GetStats()
	if s.TotalEnqueued != 2 || s.TotalSent != 2 || s.Depth != 0 {
		t.Errorf("stats = %+v", s)
	}
	if s.LastFlushSent != 2 || s.LastFlushAt.IsZero() {
		t.Errorf("flush stats = %+v", s)
	}
}

func TestOutbox_PersistedFileIsOneRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		return errors.New("down")
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ob.Enqueue("k1", "s1", testEvents("a"))
	ob.Enqueue("k2", "s2", testEvents("b"))
	ob.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var item Item
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		ids = append(ids, item.ID)
	}
	if len(ids) != 2 {
		t.Fatalf("file holds %d records, want 2", len(ids))
	}
	if ids[0] == ids[1] {
		t.Error("item ids must be unique")
	}
}

func TestInspect_ReadOnlySummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		return errors.New("down")
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ob.Enqueue("sess", "id", testEvents("a"))
	ob.Stop()

	s, err := Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Depth != 1 || s.ReadyNow != 1 {
		t.Errorf("inspect = %+v", s)
	}

	if s, err := Inspect(filepath.Join(t.TempDir(), "missing.jsonl")); err != nil || s.Depth != 0 {
		t.Errorf("missing file: stats=%+v err=%v", s, err)
	}
}

func TestOutbox_ConcurrentEnqueueAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	ob := newTestOutbox(t, path, func(ctx context.Context, item *Item) error {
		return errors.New("store down")
	})
	if err := ob.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer ob.Stop()

	// Flush in one goroutine while enqueuing in another: retry-state
	// updates and file rewrites touch the same items and must not tear.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = ob.Flush(context.Background())
		}
	}()

	const n = 50
	for i := 0; i < n; i++ {
		if _, err := ob.Enqueue("sess", "store-sess", testEvents(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	<-done

	if depth := ob.Depth(); depth != n {
		t.Errorf("depth = %d, want %d", depth, n)
	}

	// The persisted file must be a consistent snapshot: every line parses
	// and no item appears twice.
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var item Item
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			t.Fatalf("torn record: %v", err)
		}
		if seen[item.ID] {
			t.Errorf("duplicate item %s", item.ID)
		}
		seen[item.ID] = true
	}
	if len(seen) != n {
		t.Errorf("persisted items = %d, want %d", len(seen), n)
	}
}
