package config

import (
	"os"
	"path/filepath"
)

// Config is the full bridge configuration.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Sessions  SessionsConfig  `json:"sessions"`
	Memory    MemoryConfig    `json:"memory"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// AgentConfig identifies the host agent this bridge serves.
type AgentConfig struct {
	ID string `json:"id,omitempty"`
}

// SessionsConfig locates the host's session store file.
type SessionsConfig struct {
	// StorePath is the JSON file keyed by sessionKey that holds link metadata.
	StorePath string `json:"storePath,omitempty"`
}

// TelemetryConfig configures optional OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // OTLP endpoint (e.g. "localhost:4318")
	Protocol    string `json:"protocol,omitempty"` // "http" (default) or "grpc"
	ServiceName string `json:"serviceName,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// MemoryConfig is the resolved memory backend configuration.
type MemoryConfig struct {
	Enabled   bool              `json:"enabled,omitempty"`
	DualWrite bool              `json:"dualWrite,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"`
	APIKey    string            `json:"apiKey,omitempty"`
	TimeoutMs int               `json:"timeoutMs,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	// RequestsPerSecond optionally paces outbound store requests. 0 = unlimited.
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty"`

	Commit  CommitConfig  `json:"commit"`
	Outbox  OutboxConfig  `json:"outbox"`
	Search  SearchConfig  `json:"search"`
	FSWrite FSWriteConfig `json:"fsWrite"`
}

// CommitConfig controls commit delivery mode and triggers.
type CommitConfig struct {
	Mode     string         `json:"mode,omitempty"` // "sync" or "async"
	Triggers CommitTriggers `json:"triggers"`
}

// CommitTriggers enables the individual commit causes.
type CommitTriggers struct {
	SessionEnd     bool `json:"sessionEnd,omitempty"`
	Reset          bool `json:"reset,omitempty"`
	EveryNMessages int  `json:"everyNMessages,omitempty"`
	EveryNMinutes  int  `json:"everyNMinutes,omitempty"`
}

// OutboxConfig controls the durable write-ahead outbox.
type OutboxConfig struct {
	Enabled         bool   `json:"enabled,omitempty"`
	Path            string `json:"path,omitempty"`
	FlushIntervalMs int    `json:"flushIntervalMs,omitempty"`
	MaxBatchSize    int    `json:"maxBatchSize,omitempty"`
	RetryBaseMs     int    `json:"retryBaseMs,omitempty"`
	RetryMaxMs      int    `json:"retryMaxMs,omitempty"`
}

// SearchConfig controls the read pipeline.
type SearchConfig struct {
	Limit            int      `json:"limit,omitempty"`
	ScoreThreshold   *float64 `json:"scoreThreshold,omitempty"`
	TargetURI        string   `json:"targetUri,omitempty"`
	IncludeResources bool     `json:"includeResources,omitempty"`
	IncludeSkills    bool     `json:"includeSkills,omitempty"`
	Strategy         string   `json:"strategy,omitempty"`  // auto | memory_first | resource_first | skill_first
	ReadLayer        string   `json:"readLayer,omitempty"` // l0 | l1 | l2 | progressive
	MaxEntries       int      `json:"maxEntries,omitempty"`
	MaxSnippetChars  int      `json:"maxSnippetChars,omitempty"`
	MaxInjectedChars int      `json:"maxInjectedChars,omitempty"`

	RelationExpansion             bool    `json:"relationExpansion,omitempty"`
	RelationMaxDepth              int     `json:"relationMaxDepth,omitempty"`
	RelationMaxAnchors            int     `json:"relationMaxAnchors,omitempty"`
	RelationMaxExpandedEntries    int     `json:"relationMaxExpandedEntries,omitempty"`
	RelationSeedAnchorScore       float64 `json:"relationSeedAnchorScore,omitempty"`
	RelationPriorityBudgetBoost   bool    `json:"relationPriorityBudgetBoost,omitempty"`
	RelationPriorityDepthBonus    int     `json:"relationPriorityDepthBonus,omitempty"`
	RelationPriorityAnchorsBonus  int     `json:"relationPriorityAnchorsBonus,omitempty"`
	RelationPriorityExpandedBonus int     `json:"relationPriorityExpandedBonus,omitempty"`
}

// FSWriteConfig gates mutating fs operations against the store.
type FSWriteConfig struct {
	Enabled          bool     `json:"enabled,omitempty"`
	AllowURIPrefixes []string `json:"allowUriPrefixes,omitempty"`
	DenyURIPrefixes  []string `json:"denyUriPrefixes,omitempty"`
	ProtectedURIs    []string `json:"protectedUris,omitempty"`
	AllowRecursiveRm bool     `json:"allowRecursiveRm,omitempty"`
}

// Documented defaults. Zero or negative configured values fall back to these.
const (
	DefaultTimeoutMs        = 10000
	DefaultLimit            = 10
	DefaultMaxEntries       = 6
	DefaultMaxSnippetChars  = 560
	DefaultMaxInjectedChars = 3200
	DefaultFlushIntervalMs  = 2000
	DefaultMaxBatchSize     = 16
	DefaultRetryBaseMs      = 1000
	DefaultRetryMaxMs       = 60000
	DefaultEveryNMessages   = 24
	DefaultEveryNMinutes    = 12
	DefaultTargetURI        = "viking://"
	DefaultStrategy         = "auto"
	DefaultReadLayer        = "l1"

	DefaultRelationMaxDepth           = 2
	DefaultRelationMaxAnchors         = 3
	DefaultRelationMaxExpandedEntries = 8
	DefaultRelationSeedAnchorScore    = 0.55
	DefaultRelationDepthBonus         = 1
	DefaultRelationAnchorsBonus       = 2
	DefaultRelationExpandedBonus      = 4

	DefaultAgentID = "main"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	cfg := &Config{
		Agent: AgentConfig{ID: DefaultAgentID},
		Sessions: SessionsConfig{
			StorePath: "~/.vikingbridge/sessions.json",
		},
		Memory: MemoryConfig{
			Endpoint:  "http://127.0.0.1:18791",
			TimeoutMs: DefaultTimeoutMs,
			Commit: CommitConfig{
				Mode: "async",
				Triggers: CommitTriggers{
					SessionEnd:     true,
					Reset:          true,
					EveryNMessages: DefaultEveryNMessages,
					EveryNMinutes:  DefaultEveryNMinutes,
				},
			},
			Outbox: OutboxConfig{
				Enabled:         true,
				Path:            "~/.vikingbridge/outbox.jsonl",
				FlushIntervalMs: DefaultFlushIntervalMs,
				MaxBatchSize:    DefaultMaxBatchSize,
				RetryBaseMs:     DefaultRetryBaseMs,
				RetryMaxMs:      DefaultRetryMaxMs,
			},
			Search: SearchConfig{
				Limit:            DefaultLimit,
				TargetURI:        DefaultTargetURI,
				Strategy:         DefaultStrategy,
				ReadLayer:        DefaultReadLayer,
				MaxEntries:       DefaultMaxEntries,
				MaxSnippetChars:  DefaultMaxSnippetChars,
				MaxInjectedChars: DefaultMaxInjectedChars,
			},
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "vikingbridge",
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize applies documented defaults to zero or out-of-range values.
// Safe to call repeatedly.
func (c *Config) Normalize() {
	if c.Agent.ID == "" {
		c.Agent.ID = DefaultAgentID
	}
	m := &c.Memory
	if m.TimeoutMs <= 0 {
		m.TimeoutMs = DefaultTimeoutMs
	}
	if m.Commit.Mode != "sync" {
		m.Commit.Mode = "async"
	}
	if m.Commit.Triggers.EveryNMessages < 0 {
		m.Commit.Triggers.EveryNMessages = DefaultEveryNMessages
	}
	if m.Commit.Triggers.EveryNMinutes < 0 {
		m.Commit.Triggers.EveryNMinutes = DefaultEveryNMinutes
	}

	o := &m.Outbox
	if o.FlushIntervalMs <= 0 {
		o.FlushIntervalMs = DefaultFlushIntervalMs
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultMaxBatchSize
	}
	if o.RetryBaseMs <= 0 {
		o.RetryBaseMs = DefaultRetryBaseMs
	}
	if o.RetryMaxMs <= 0 {
		o.RetryMaxMs = DefaultRetryMaxMs
	}
	if o.RetryMaxMs < o.RetryBaseMs {
		o.RetryMaxMs = o.RetryBaseMs
	}

	s := &m.Search
	if s.Limit <= 0 {
		s.Limit = DefaultLimit
	}
	if s.TargetURI == "" {
		s.TargetURI = DefaultTargetURI
	}
	switch s.Strategy {
	case "auto", "memory_first", "resource_first", "skill_first":
	default:
		s.Strategy = DefaultStrategy
	}
	switch s.ReadLayer {
	case "l0", "l1", "l2", "progressive":
	default:
		s.ReadLayer = DefaultReadLayer
	}
	if s.MaxEntries <= 0 {
		s.MaxEntries = DefaultMaxEntries
	}
	if s.MaxSnippetChars <= 0 {
		s.MaxSnippetChars = DefaultMaxSnippetChars
	}
	if s.MaxInjectedChars <= 0 {
		s.MaxInjectedChars = DefaultMaxInjectedChars
	}
	if s.RelationMaxDepth <= 0 {
		s.RelationMaxDepth = DefaultRelationMaxDepth
	}
	if s.RelationMaxAnchors <= 0 {
		s.RelationMaxAnchors = DefaultRelationMaxAnchors
	}
	if s.RelationMaxExpandedEntries <= 0 {
		s.RelationMaxExpandedEntries = DefaultRelationMaxExpandedEntries
	}
	if s.RelationSeedAnchorScore <= 0 {
		s.RelationSeedAnchorScore = DefaultRelationSeedAnchorScore
	}
	if s.RelationPriorityDepthBonus <= 0 {
		s.RelationPriorityDepthBonus = DefaultRelationDepthBonus
	}
	if s.RelationPriorityAnchorsBonus <= 0 {
		s.RelationPriorityAnchorsBonus = DefaultRelationAnchorsBonus
	}
	if s.RelationPriorityExpandedBonus <= 0 {
		s.RelationPriorityExpandedBonus = DefaultRelationExpandedBonus
	}

	if c.Telemetry.Protocol != "grpc" {
		c.Telemetry.Protocol = "http"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "vikingbridge"
	}
}

// SessionStorePath returns the expanded session store file path.
func (c *Config) SessionStorePath() string {
	return ExpandHome(c.Sessions.StorePath)
}

// OutboxPath returns the expanded outbox file path.
func (c *Config) OutboxPath() string {
	return ExpandHome(c.Memory.Outbox.Path)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
		return home + path[1:]
	}
	return home
}
