package outbox

import (
	"bufio"
	"encoding/json"
	"os"
	"time"
)

// Stats is a point-in-time snapshot of queue health.
type Stats struct {
	Depth         int           `json:"depth"`
	OldestAge     time.Duration `json:"oldestAge"`
	ReadyNow      int           `json:"readyNow"`
	NextReadyIn   time.Duration `json:"nextReadyIn"`
	MaxAttempts   int           `json:"maxAttempts"`
	TotalEnqueued int64         `json:"totalEnqueued"`
	TotalSent     int64         `json:"totalSent"`
	TotalFailed   int64         `json:"totalFailed"`

	LastFlushAt       time.Time     `json:"lastFlushAt"`
	LastFlushDuration time.Duration `json:"lastFlushDuration"`
	LastFlushSent     int           `json:"lastFlushSent"`
	LastFlushErrors   int           `json:"lastFlushErrors"`
	LastError         string        `json:"lastError,omitempty"`
}

// GetStats returns a snapshot of queue depth, readiness, and totals.
func (o *Outbox) GetStats() Stats {
	now := time.Now()

	o.mu.Lock()
	depth := len(o.items)
	var oldest time.Time
	ready := 0
	var nextReady time.Time
	maxAttempts := 0
	for _, item := range o.items {
		if oldest.IsZero() || item.CreatedAt.Before(oldest) {
			oldest = item.CreatedAt
		}
		if !item.NextAttemptAt.After(now) {
			ready++
		} else if nextReady.IsZero() || item.NextAttemptAt.Before(nextReady) {
			nextReady = item.NextAttemptAt
		}
		if item.Attempts > maxAttempts {
			maxAttempts = item.Attempts
		}
	}
	o.mu.Unlock()

	o.sm.Lock()
	s := o.stats
	o.sm.Unlock()

	s.Depth = depth
	s.ReadyNow = ready
	s.MaxAttempts = maxAttempts
	if !oldest.IsZero() {
		s.OldestAge = now.Sub(oldest)
	}
	if !nextReady.IsZero() {
		s.NextReadyIn = nextReady.Sub(now)
	}
	return s
}

// Inspect summarizes an outbox file without taking ownership of it. Intended
// for CLI inspection of a queue owned by another process. Flush-cycle fields
// stay zero.
func Inspect(path string) (Stats, error) {
	var s Stats
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	defer f.Close()

	now := time.Now()
	var oldest, nextReady time.Time
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item Item
		if err := json.Unmarshal(line, &item); err != nil || item.ID == "" || len(item.Events) == 0 {
			continue
		}
		s.Depth++
		if oldest.IsZero() || item.CreatedAt.Before(oldest) {
			oldest = item.CreatedAt
		}
		if !item.NextAttemptAt.After(now) {
			s.ReadyNow++
		} else if nextReady.IsZero() || item.NextAttemptAt.Before(nextReady) {
			nextReady = item.NextAttemptAt
		}
		if item.Attempts > s.MaxAttempts {
			s.MaxAttempts = item.Attempts
		}
	}
	if !oldest.IsZero() {
		s.OldestAge = now.Sub(oldest)
	}
	if !nextReady.IsZero() {
		s.NextReadyIn = nextReady.Sub(now)
	}
	return s, scanner.Err()
}
