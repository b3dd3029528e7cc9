package retrieve

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/vikingbridge/internal/viking"
)

// ExplainSnapshot describes how the last search was answered.
type ExplainSnapshot struct {
	Query        string              `json:"query"`
	TypedQueries []viking.TypedQuery `json:"typedQueries,omitempty"`
	ResultCount  int                 `json:"resultCount"`
	TopQueries   []string            `json:"topQueries,omitempty"` // top 5 planner queries
	FallbackKind string              `json:"fallbackKind,omitempty"`
	FallbackHits int                 `json:"fallbackHits,omitempty"`
}

// LayeringSnapshot describes snippet assembly of the last search.
type LayeringSnapshot struct {
	RequestedLayer    string `json:"requestedLayer"`
	Entries           int    `json:"entries"`
	SnippetChars      int    `json:"snippetChars"`
	InjectedChars     int    `json:"injectedChars"`
	L0Count           int    `json:"l0Count"`
	L1Count           int    `json:"l1Count"`
	L2Count           int    `json:"l2Count"`
	TruncatedByBudget bool   `json:"truncatedByBudget"`
}

// RelationSnapshot describes relation expansion of the last search.
type RelationSnapshot struct {
	Enabled            bool `json:"enabled"`
	BoostApplied       bool `json:"boostApplied"`
	MaxDepth           int  `json:"maxDepth"`
	MaxAnchors         int  `json:"maxAnchors"`
	MaxExpandedEntries int  `json:"maxExpandedEntries"`
	Anchors            int  `json:"anchors"`
	SeedAnchors        int  `json:"seedAnchors"`
	RelationQueries    int  `json:"relationQueries"`
	Discovered         int  `json:"discovered"`
}

// RankingSnapshot describes candidate flow through filter, sort, and budget.
type RankingSnapshot struct {
	TotalCandidates     int `json:"totalCandidates"`
	DirectCandidates    int `json:"directCandidates"`
	RelationCandidates  int `json:"relationCandidates"`
	FilteredCandidates  int `json:"filteredCandidates"`
	SelectedCandidates  int `json:"selectedCandidates"`
	EmittedCandidates   int `json:"emittedCandidates"`
	DroppedByMaxEntries int `json:"droppedByMaxEntries"`
	DroppedByBudget     int `json:"droppedByBudget"`
	SkippedEmptySnippet int `json:"skippedEmptySnippet"`
}

// Snapshot is the full diagnostic record of the last search for one
// (agentID, endpoint).
type Snapshot struct {
	At       time.Time        `json:"at"`
	Explain  ExplainSnapshot  `json:"explain"`
	Strategy Decision         `json:"strategy"`
	Layering LayeringSnapshot `json:"layering"`
	Relation RelationSnapshot `json:"relation"`
	Ranking  RankingSnapshot  `json:"ranking"`
}

// Diagnostics retains the last snapshot per (agentID, endpoint).
// Single-writer per key; last-writer-wins.
type Diagnostics struct {
	mu   sync.RWMutex
	last map[string]Snapshot
}

// NewDiagnostics creates an empty diagnostics store.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{last: make(map[string]Snapshot)}
}

func diagKey(agentID, endpoint string) string { return agentID + "|" + endpoint }

func (d *Diagnostics) record(agentID, endpoint string, snap Snapshot) {
	if d == nil {
		return
	}
	snap.At = time.Now()
	d.mu.Lock()
	d.last[diagKey(agentID, endpoint)] = snap
	d.mu.Unlock()
}

// Last returns the most recent snapshot for (agentID, endpoint).
func (d *Diagnostics) Last(agentID, endpoint string) (Snapshot, bool) {
	if d == nil {
		return Snapshot{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, ok := d.last[diagKey(agentID, endpoint)]
	return snap, ok
}
