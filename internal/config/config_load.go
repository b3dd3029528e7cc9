package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.Normalize()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	envStr("VIKINGBRIDGE_AGENT_ID", &c.Agent.ID)
	envStr("VIKINGBRIDGE_SESSIONS_PATH", &c.Sessions.StorePath)

	envStr("VIKINGBRIDGE_ENDPOINT", &c.Memory.Endpoint)
	envStr("VIKINGBRIDGE_API_KEY", &c.Memory.APIKey)
	envBool("VIKINGBRIDGE_ENABLED", &c.Memory.Enabled)
	envBool("VIKINGBRIDGE_DUAL_WRITE", &c.Memory.DualWrite)
	if v := os.Getenv("VIKINGBRIDGE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Memory.TimeoutMs = ms
		}
	}

	envStr("VIKINGBRIDGE_OUTBOX_PATH", &c.Memory.Outbox.Path)
	envBool("VIKINGBRIDGE_OUTBOX_ENABLED", &c.Memory.Outbox.Enabled)

	// Extra headers: comma-separated "Name=Value" pairs.
	if v := os.Getenv("VIKINGBRIDGE_HEADERS"); v != "" {
		if c.Memory.Headers == nil {
			c.Memory.Headers = make(map[string]string)
		}
		for _, pair := range strings.Split(v, ",") {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			c.Memory.Headers[name] = strings.TrimSpace(value)
		}
	}

	envBool("VIKINGBRIDGE_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("VIKINGBRIDGE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("VIKINGBRIDGE_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("VIKINGBRIDGE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("VIKINGBRIDGE_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}
