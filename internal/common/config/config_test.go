package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.NATS.URL, "default bus is in-memory")
	assert.Equal(t, SandboxWorkspaceWrite, cfg.Agent.SandboxPolicy)
	assert.Equal(t, ApprovalNever, cfg.Agent.ApprovalPolicy)
	assert.Equal(t, EngineModeAppServer, cfg.Engine.Mode)
	assert.Equal(t, "codex", cfg.Engine.Command)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTCORE_SERVER_PORT", "9191")
	t.Setenv("AGENTCORE_AGENT_SANDBOX_POLICY", SandboxReadOnly)
	t.Setenv("AGENTCORE_ENGINE_MODE", EngineModeScript)

	cfg := defaults(t)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, SandboxReadOnly, cfg.Agent.SandboxPolicy)
	assert.Equal(t, EngineModeScript, cfg.Engine.Mode)
}

func TestAPIKeyResolvedFromEnv(t *testing.T) {
	t.Setenv("AGENTCORE_AGENT_API_KEY_ENV", "TEST_MODEL_KEY")
	t.Setenv("TEST_MODEL_KEY", "sk-test")

	cfg := defaults(t)
	assert.Equal(t, "sk-test", cfg.Agent.APIKey())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad sandbox policy", func(c *Config) { c.Agent.SandboxPolicy = "yolo" }},
		{"bad approval policy", func(c *Config) { c.Agent.ApprovalPolicy = "sometimes" }},
		{"negative max turns", func(c *Config) { c.Agent.MaxTurns = -1 }},
		{"bad engine mode", func(c *Config) { c.Engine.Mode = "telepathy" }},
		{"appserver without command", func(c *Config) { c.Engine.Command = "" }},
		{"mcp server without name", func(c *Config) {
			c.Agent.MCPServers = []MCPServerConfig{{Command: "mcp"}}
		}},
		{"mcp server with command and url", func(c *Config) {
			c.Agent.MCPServers = []MCPServerConfig{{Name: "x", Command: "mcp", URL: "http://x"}}
		}},
		{"duplicate mcp server", func(c *Config) {
			c.Agent.MCPServers = []MCPServerConfig{
				{Name: "x", Command: "mcp"},
				{Name: "x", URL: "http://x"},
			}
		}},
		{"tool without name", func(c *Config) {
			c.Agent.Tools = []ToolConfig{{Enabled: true}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}

func TestMCPServerKinds(t *testing.T) {
	cmd := MCPServerConfig{Name: "local", Command: "mcp-fs"}
	http := MCPServerConfig{Name: "remote", URL: "https://mcp.example.com"}

	assert.True(t, cmd.IsCommand())
	assert.False(t, cmd.IsHTTP())
	assert.True(t, http.IsHTTP())
	assert.False(t, http.IsCommand())
}
