package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()

	s := cfg.Memory.Search
	if s.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", s.Limit, DefaultLimit)
	}
	if s.MaxEntries != DefaultMaxEntries {
		t.Errorf("MaxEntries = %d, want %d", s.MaxEntries, DefaultMaxEntries)
	}
	if s.MaxSnippetChars != DefaultMaxSnippetChars {
		t.Errorf("MaxSnippetChars = %d, want %d", s.MaxSnippetChars, DefaultMaxSnippetChars)
	}
	if s.MaxInjectedChars != DefaultMaxInjectedChars {
		t.Errorf("MaxInjectedChars = %d, want %d", s.MaxInjectedChars, DefaultMaxInjectedChars)
	}
	if s.Strategy != "auto" {
		t.Errorf("Strategy = %q, want auto", s.Strategy)
	}
	if s.ReadLayer != "l1" {
		t.Errorf("ReadLayer = %q, want l1", s.ReadLayer)
	}
	if s.TargetURI != "viking://" {
		t.Errorf("TargetURI = %q, want viking://", s.TargetURI)
	}
	if s.RelationMaxDepth != DefaultRelationMaxDepth {
		t.Errorf("RelationMaxDepth = %d, want %d", s.RelationMaxDepth, DefaultRelationMaxDepth)
	}

	o := cfg.Memory.Outbox
	if o.FlushIntervalMs != DefaultFlushIntervalMs || o.MaxBatchSize != DefaultMaxBatchSize {
		t.Errorf("outbox defaults = %d/%d, want %d/%d",
			o.FlushIntervalMs, o.MaxBatchSize, DefaultFlushIntervalMs, DefaultMaxBatchSize)
	}
	if o.RetryBaseMs != DefaultRetryBaseMs || o.RetryMaxMs != DefaultRetryMaxMs {
		t.Errorf("retry defaults = %d/%d, want %d/%d",
			o.RetryBaseMs, o.RetryMaxMs, DefaultRetryBaseMs, DefaultRetryMaxMs)
	}

	if cfg.Memory.Commit.Mode != "async" {
		t.Errorf("Commit.Mode = %q, want async", cfg.Memory.Commit.Mode)
	}
	if cfg.Agent.ID != DefaultAgentID {
		t.Errorf("Agent.ID = %q, want %q", cfg.Agent.ID, DefaultAgentID)
	}
}

func TestNormalize_RejectsBadEnums(t *testing.T) {
	cfg := &Config{}
	cfg.Memory.Search.Strategy = "hybrid"
	cfg.Memory.Search.ReadLayer = "l9"
	cfg.Memory.Commit.Mode = "eventually"
	cfg.Normalize()

	if cfg.Memory.Search.Strategy != "auto" {
		t.Errorf("Strategy = %q, want auto", cfg.Memory.Search.Strategy)
	}
	if cfg.Memory.Search.ReadLayer != "l1" {
		t.Errorf("ReadLayer = %q, want l1", cfg.Memory.Search.ReadLayer)
	}
	if cfg.Memory.Commit.Mode != "async" {
		t.Errorf("Commit.Mode = %q, want async", cfg.Memory.Commit.Mode)
	}
}

func TestNormalize_RetryMaxClampedToBase(t *testing.T) {
	cfg := &Config{}
	cfg.Memory.Outbox.RetryBaseMs = 5000
	cfg.Memory.Outbox.RetryMaxMs = 100
	cfg.Normalize()
	if cfg.Memory.Outbox.RetryMaxMs != 5000 {
		t.Errorf("RetryMaxMs = %d, want 5000", cfg.Memory.Outbox.RetryMaxMs)
	}
}

func TestLoad_JSON5File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		// bridge settings
		agent: { id: "research" },
		memory: {
			enabled: true,
			dualWrite: true,
			endpoint: "http://localhost:9999",
			commit: { mode: "sync", triggers: { everyNMessages: 8 } },
			search: { limit: 3, readLayer: "l2" },
		},
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.ID != "research" {
		t.Errorf("Agent.ID = %q, want research", cfg.Agent.ID)
	}
	if !cfg.Memory.Enabled || !cfg.Memory.DualWrite {
		t.Error("enabled/dualWrite not set from file")
	}
	if cfg.Memory.Endpoint != "http://localhost:9999" {
		t.Errorf("Endpoint = %q", cfg.Memory.Endpoint)
	}
	if cfg.Memory.Commit.Mode != "sync" {
		t.Errorf("Commit.Mode = %q, want sync", cfg.Memory.Commit.Mode)
	}
	if cfg.Memory.Commit.Triggers.EveryNMessages != 8 {
		t.Errorf("EveryNMessages = %d, want 8", cfg.Memory.Commit.Triggers.EveryNMessages)
	}
	if cfg.Memory.Search.Limit != 3 || cfg.Memory.Search.ReadLayer != "l2" {
		t.Errorf("search = %d/%q", cfg.Memory.Search.Limit, cfg.Memory.Search.ReadLayer)
	}
	// Untouched sections keep defaults.
	if cfg.Memory.Search.MaxEntries != DefaultMaxEntries {
		t.Errorf("MaxEntries = %d, want default", cfg.Memory.Search.MaxEntries)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Memory.TimeoutMs != DefaultTimeoutMs {
		t.Errorf("TimeoutMs = %d, want %d", cfg.Memory.TimeoutMs, DefaultTimeoutMs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIKINGBRIDGE_ENDPOINT", "http://override:1234")
	t.Setenv("VIKINGBRIDGE_ENABLED", "true")
	t.Setenv("VIKINGBRIDGE_HEADERS", "X-Team=research, X-Env=staging")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Memory.Endpoint != "http://override:1234" {
		t.Errorf("Endpoint = %q", cfg.Memory.Endpoint)
	}
	if !cfg.Memory.Enabled {
		t.Error("Enabled not overridden")
	}
	if cfg.Memory.Headers["X-Team"] != "research" || cfg.Memory.Headers["X-Env"] != "staging" {
		t.Errorf("Headers = %v", cfg.Memory.Headers)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in   string
		want string
	}{
		{"~/x/y.json", home + "/x/y.json"},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
