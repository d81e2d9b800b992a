// Package config provides configuration management for agentcore.
// It supports loading configuration from environment variables, config
// files, and defaults, and validates the result before anything starts.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sandbox policies.
const (
	SandboxReadOnly       = "read-only"
	SandboxWorkspaceWrite = "workspace-write"
	SandboxFullAccess     = "danger-full-access"
)

// Approval policies.
const (
	ApprovalNever     = "never"
	ApprovalOnRequest = "on-request"
	ApprovalOnFailure = "on-failure"
	ApprovalUntrusted = "untrusted"
)

// Engine modes.
const (
	EngineModeAppServer = "appserver"
	EngineModeScript    = "script"
)

// Config holds all configuration sections for agentcore.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// AgentConfig holds the agent session configuration handed to the engine.
type AgentConfig struct {
	// Model is the model identifier requested from the engine.
	Model string `mapstructure:"model"`

	// APIKeyEnv names the environment variable holding the API key. The
	// key itself never appears in config files.
	APIKeyEnv string `mapstructure:"apiKeyEnv"`

	// SystemPrompt optionally overrides the engine's base instructions.
	SystemPrompt string `mapstructure:"systemPrompt"`

	// SandboxPolicy is one of the Sandbox* constants.
	SandboxPolicy string `mapstructure:"sandboxPolicy"`

	// ApprovalPolicy is one of the Approval* constants.
	ApprovalPolicy string `mapstructure:"approvalPolicy"`

	// MaxTurns caps accepted inputs per session; 0 means unlimited.
	MaxTurns int `mapstructure:"maxTurns"`

	// WorkingDirectory is the engine's working directory; empty means the
	// process working directory.
	WorkingDirectory string `mapstructure:"workingDirectory"`

	// Environment is passed through to tool executions.
	Environment map[string]string `mapstructure:"environment"`

	Tools      []ToolConfig      `mapstructure:"tools"`
	MCPServers []MCPServerConfig `mapstructure:"mcpServers"`
}

// APIKey resolves the API key from the configured environment variable.
func (a *AgentConfig) APIKey() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.APIKeyEnv)
}

// ToolConfig enables one engine tool.
type ToolConfig struct {
	// Name identifies the tool: shell, web_search, file_read, file_write,
	// apply_patch, or an engine-specific custom name.
	Name string `mapstructure:"name"`

	// Enabled defaults true when the entry is present.
	Enabled bool `mapstructure:"enabled"`

	// NetworkAccess grants shell network access.
	NetworkAccess bool `mapstructure:"networkAccess"`

	// TimeoutSeconds caps a single invocation; 0 means engine default.
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

// MCPServerConfig describes one MCP server the engine may talk to. Exactly
// one of Command or URL must be set. Process management belongs to the
// engine; this is configuration only.
type MCPServerConfig struct {
	Name string `mapstructure:"name"`

	// Command-based servers.
	Command          string            `mapstructure:"command"`
	Args             []string          `mapstructure:"args"`
	Env              map[string]string `mapstructure:"env"`
	WorkingDirectory string            `mapstructure:"workingDirectory"`
	StartupTimeout   int               `mapstructure:"startupTimeout"` // in seconds

	// HTTP-based servers.
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
	TimeoutSeconds int               `mapstructure:"timeoutSeconds"`
}

// IsCommand reports whether the server is launched as a subprocess.
func (m *MCPServerConfig) IsCommand() bool { return m.Command != "" }

// IsHTTP reports whether the server is reached over HTTP.
func (m *MCPServerConfig) IsHTTP() bool { return m.URL != "" }

// EngineConfig selects and configures the engine backend.
type EngineConfig struct {
	// Mode is appserver (subprocess JSON-RPC) or script (canned events,
	// for development and tests).
	Mode string `mapstructure:"mode"`

	// Command and Args launch the app-server subprocess.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	// StartupTimeout bounds the initialize handshake, in seconds.
	StartupTimeout int `mapstructure:"startupTimeout"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// StartupTimeoutDuration returns the engine startup timeout as a Duration.
func (e *EngineConfig) StartupTimeoutDuration() time.Duration {
	return time.Duration(e.StartupTimeout) * time.Second
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AGENTCORE_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Empty URL means use the in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "agentcore")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("agent.model", "gpt-5")
	v.SetDefault("agent.apiKeyEnv", "OPENAI_API_KEY")
	v.SetDefault("agent.sandboxPolicy", SandboxWorkspaceWrite)
	v.SetDefault("agent.approvalPolicy", ApprovalNever)
	v.SetDefault("agent.maxTurns", 0)

	v.SetDefault("engine.mode", EngineModeAppServer)
	v.SetDefault("engine.command", "codex")
	v.SetDefault("engine.args", []string{"app-server"})
	v.SetDefault("engine.startupTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGENTCORE_ with snake_case naming.
// Config file should be named config.yaml, in the current directory or /etc/agentcore/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AGENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion, so
	// camelCase keys need explicit bindings.
	_ = v.BindEnv("agent.apiKeyEnv", "AGENTCORE_AGENT_API_KEY_ENV")
	_ = v.BindEnv("agent.systemPrompt", "AGENTCORE_AGENT_SYSTEM_PROMPT")
	_ = v.BindEnv("agent.sandboxPolicy", "AGENTCORE_AGENT_SANDBOX_POLICY")
	_ = v.BindEnv("agent.approvalPolicy", "AGENTCORE_AGENT_APPROVAL_POLICY")
	_ = v.BindEnv("agent.maxTurns", "AGENTCORE_AGENT_MAX_TURNS")
	_ = v.BindEnv("agent.workingDirectory", "AGENTCORE_AGENT_WORKING_DIRECTORY")
	_ = v.BindEnv("engine.startupTimeout", "AGENTCORE_ENGINE_STARTUP_TIMEOUT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agentcore/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Agent.SandboxPolicy {
	case SandboxReadOnly, SandboxWorkspaceWrite, SandboxFullAccess:
	default:
		return fmt.Errorf("agent.sandboxPolicy %q is not a valid policy", cfg.Agent.SandboxPolicy)
	}

	switch cfg.Agent.ApprovalPolicy {
	case ApprovalNever, ApprovalOnRequest, ApprovalOnFailure, ApprovalUntrusted:
	default:
		return fmt.Errorf("agent.approvalPolicy %q is not a valid policy", cfg.Agent.ApprovalPolicy)
	}

	if cfg.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent.maxTurns must not be negative, got %d", cfg.Agent.MaxTurns)
	}

	switch cfg.Engine.Mode {
	case EngineModeAppServer, EngineModeScript:
	default:
		return fmt.Errorf("engine.mode %q is not a valid mode", cfg.Engine.Mode)
	}
	if cfg.Engine.Mode == EngineModeAppServer && cfg.Engine.Command == "" {
		return fmt.Errorf("engine.command is required in appserver mode")
	}

	seen := make(map[string]bool)
	for i, srv := range cfg.Agent.MCPServers {
		if srv.Name == "" {
			return fmt.Errorf("agent.mcpServers[%d]: name is required", i)
		}
		if seen[srv.Name] {
			return fmt.Errorf("agent.mcpServers: duplicate name %q", srv.Name)
		}
		seen[srv.Name] = true

		if srv.IsCommand() == srv.IsHTTP() {
			return fmt.Errorf("agent.mcpServers[%q]: exactly one of command or url must be set", srv.Name)
		}
	}

	for i, tool := range cfg.Agent.Tools {
		if tool.Name == "" {
			return fmt.Errorf("agent.tools[%d]: name is required", i)
		}
		if tool.TimeoutSeconds < 0 {
			return fmt.Errorf("agent.tools[%q]: timeoutSeconds must not be negative", tool.Name)
		}
	}

	return nil
}
