package bridge

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// Stats is a snapshot of write-path counters for one (agentID, endpoint).
type Stats struct {
	EventsQueued        int64 `json:"eventsQueued"`
	MessageEventsQueued int64 `json:"messageEventsQueued"`
	ToolEventsQueued    int64 `json:"toolEventsQueued"`
	CommitEventsQueued  int64 `json:"commitEventsQueued"`

	SyncCommits              int64 `json:"syncCommits"`
	AsyncCommits             int64 `json:"asyncCommits"`
	PeriodicCommitsByMessage int64 `json:"periodicCommitsByMessage"`
	PeriodicCommitsByTime    int64 `json:"periodicCommitsByTime"`
	SessionEndCommits        int64 `json:"sessionEndCommits"`
	ResetCommits             int64 `json:"resetCommits"`
	ManualCommits            int64 `json:"manualCommits"`

	LastCommitCause  string `json:"lastCommitCause,omitempty"`
	LastCommitSource string `json:"lastCommitSource,omitempty"`
	LastCommitMode   string `json:"lastCommitMode,omitempty"`
	// LastCommitLagMs is commit-queued-time minus last-event-queued-time.
	LastCommitLagMs int64 `json:"lastCommitLagMs"`

	LastEventQueuedAt     time.Time `json:"lastEventQueuedAt,omitzero"`
	LastPeriodicTrigger   string    `json:"lastPeriodicTrigger,omitempty"`
	LastPeriodicTriggerAt time.Time `json:"lastPeriodicTriggerAt,omitzero"`

	LastError string `json:"lastError,omitempty"`
}

type statsCell struct {
	mu sync.Mutex
	s  Stats
}

func (c *statsCell) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

func (c *statsCell) recordQueued(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.EventsQueued++
	switch eventType {
	case viking.EventMessage:
		c.s.MessageEventsQueued++
	case viking.EventToolResult:
		c.s.ToolEventsQueued++
	case viking.EventCommit:
		c.s.CommitEventsQueued++
	}
	c.s.LastEventQueuedAt = time.Now()
}

func (c *statsCell) recordCommit(cause, source, mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	switch mode {
	case "sync":
		c.s.SyncCommits++
		// Commits observed by the bridge, queued or not.
		c.s.CommitEventsQueued++
	default:
		c.s.AsyncCommits++
	}
	switch cause {
	case CauseSessionEnd:
		c.s.SessionEndCommits++
	case CauseReset:
		c.s.ResetCommits++
	case CauseManual:
		c.s.ManualCommits++
	}
	c.s.LastCommitCause = cause
	c.s.LastCommitSource = source
	c.s.LastCommitMode = mode
	if !c.s.LastEventQueuedAt.IsZero() {
		c.s.LastCommitLagMs = now.Sub(c.s.LastEventQueuedAt).Milliseconds()
	}
}

func (c *statsCell) recordPeriodic(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch source {
	case SourceMessageThreshold:
		c.s.PeriodicCommitsByMessage++
	case SourceTimeThreshold:
		c.s.PeriodicCommitsByTime++
	}
	c.s.LastPeriodicTrigger = source
	c.s.LastPeriodicTriggerAt = time.Now()
}

func (c *statsCell) recordError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.LastError = err.Error()
}
