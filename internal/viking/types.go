package viking

import "encoding/json"

// envelope is the store's uniform response wrapper.
type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// SessionEvent is one event appended to a store session. Tagged by EventType:
// "message" carries Role+Content, "tool_result" carries JSON content, and
// "commit" carries Cause.
type SessionEvent struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Role      string            `json:"role,omitempty"`
	Content   string            `json:"content,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Event types.
const (
	EventMessage    = "message"
	EventToolResult = "tool_result"
	EventCommit     = "commit"
)

// Context types returned by search.
const (
	ContextMemory   = "memory"
	ContextResource = "resource"
	ContextSkill    = "skill"
)

// ContextRef is one store-returned context record.
type ContextRef struct {
	URI         string   `json:"uri"`
	ContextType string   `json:"context_type,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	MatchReason string   `json:"match_reason,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

// TypedQuery is one planner-generated query.
type TypedQuery struct {
	Query             string   `json:"query"`
	ContextType       string   `json:"context_type"`
	Intent            string   `json:"intent,omitempty"`
	Priority          int      `json:"priority,omitempty"`
	TargetDirectories []string `json:"target_directories,omitempty"`
}

// QueryPlan is the store planner's typed query breakdown.
type QueryPlan struct {
	Queries        []TypedQuery `json:"queries"`
	SessionContext string       `json:"session_context,omitempty"`
	Reasoning      string       `json:"reasoning,omitempty"`
}

// QueryResultStat summarizes one executed planner query.
type QueryResultStat struct {
	ID              string  `json:"id,omitempty"`
	ContextType     string  `json:"context_type,omitempty"`
	Score           float64 `json:"score,omitempty"`
	MatchedContexts int     `json:"matched_contexts,omitempty"`
}

// SearchRequest is the body for search and find.
type SearchRequest struct {
	Query          string   `json:"query"`
	TargetURI      string   `json:"target_uri,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
	Filter         string   `json:"filter,omitempty"` // find only
}

// SearchResult is the store's search/find response.
type SearchResult struct {
	Memories     []ContextRef      `json:"memories"`
	Resources    []ContextRef      `json:"resources"`
	Skills       []ContextRef      `json:"skills"`
	QueryPlan    *QueryPlan        `json:"query_plan,omitempty"`
	QueryResults []QueryResultStat `json:"query_results,omitempty"`
	Total        int               `json:"total,omitempty"`
}

// RelationEntry is one neighbor of a uri in the relation graph.
type RelationEntry struct {
	URI         string `json:"uri"`
	ContextType string `json:"context_type,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// SessionInfo describes one store session.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Events    int    `json:"events,omitempty"`
}

// FSEntry is one row of fs ls/tree output.
type FSEntry struct {
	URI      string    `json:"uri"`
	Name     string    `json:"name,omitempty"`
	IsDir    bool      `json:"is_dir,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Children []FSEntry `json:"children,omitempty"`
}

// FSStat is the fs stat response.
type FSStat struct {
	URI      string `json:"uri"`
	IsDir    bool   `json:"is_dir,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// GrepMatch is one grep hit.
type GrepMatch struct {
	URI  string `json:"uri"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

// ObserverStatus is the per-component observer response.
type ObserverStatus struct {
	Name      string `json:"name,omitempty"`
	IsHealthy bool   `json:"is_healthy"`
	HasErrors bool   `json:"has_errors,omitempty"`
}

// SystemStatus is the aggregate observer/system response.
type SystemStatus struct {
	IsHealthy  bool                      `json:"is_healthy"`
	Errors     []string                  `json:"errors,omitempty"`
	Components map[string]ObserverStatus `json:"components,omitempty"`
}

// AddResourceRequest ingests a local file or directory into the store.
type AddResourceRequest struct {
	Path        string `json:"path"`
	Target      string `json:"target,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Wait        bool   `json:"wait,omitempty"`
	Timeout     int    `json:"timeout,omitempty"`
}

// AddSkillRequest ingests a skill document.
type AddSkillRequest struct {
	Data    string `json:"data"`
	Wait    bool   `json:"wait,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// IngestResult reports an accepted resource/skill ingest.
type IngestResult struct {
	URI      string `json:"uri,omitempty"`
	Enqueued bool   `json:"enqueued,omitempty"`
	Waited   bool   `json:"waited,omitempty"`
}
