package config

// Config represents the main runtime configuration (mnemo.yaml)
type Config struct {
	LLM     LLMConfig     `yaml:"llm" json:"llm"`
	Agent   AgentConfig   `yaml:"agent" json:"agent"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	History HistoryConfig `yaml:"history" json:"history"`
	Hooks   HooksConfig   `yaml:"hooks" json:"hooks"`
}

// LLMConfig configures the chat-completion endpoint
type LLMConfig struct {
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	Model       string  `yaml:"model" json:"model"`
	Token       string  `yaml:"token,omitempty" json:"token,omitempty"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopP        float64 `yaml:"top_p" json:"top_p"`
	TopK        int     `yaml:"top_k" json:"top_k"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"` // -1 = model default
	MaxRetries  int     `yaml:"max_retries" json:"max_retries"`
}

// AgentConfig configures the agent's role, limits, memory and prompts
type AgentConfig struct {
	Role    RoleConfig        `yaml:"role" json:"role"`
	Limits  LimitsConfig      `yaml:"limits" json:"limits"`
	Memory  MemoryConfig      `yaml:"memory" json:"memory"`
	Prompts map[string]string `yaml:"prompts" json:"prompts"` // per-state guidance text
}

// RoleConfig is the agent's fixed identity
type RoleConfig struct {
	Identity         string   `yaml:"identity" json:"identity"`
	Purpose          string   `yaml:"purpose" json:"purpose"`
	KnowledgeDomains []string `yaml:"knowledge_domains" json:"knowledge_domains"`
}

// LimitsConfig bounds the working set and the run length
type LimitsConfig struct {
	SoftTokens    uint64 `yaml:"soft_tokens" json:"soft_tokens"`
	HardTokens    uint64 `yaml:"hard_tokens" json:"hard_tokens"`
	MaxIterations uint64 `yaml:"max_iterations" json:"max_iterations"`
}

// MemoryConfig locates the persistence file
type MemoryConfig struct {
	PersistencePath string `yaml:"persistence_path" json:"persistence_path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`

	// MetricsFile, when set, receives one JSON line of run counters per
	// finished run.
	MetricsFile string `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
}

// HistoryConfig configures the run journal
type HistoryConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite, none
	Path   string `yaml:"path" json:"path"`
}

// HooksConfig configures lifecycle event hooks.
type HooksConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Hooks   []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig defines a single hook.
type HookConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`     // shell, webhook, log
	Events   []string `yaml:"events" json:"events"` // event types to match
	Blocking bool     `yaml:"blocking" json:"blocking"`
	Command  string   `yaml:"command,omitempty" json:"command,omitempty"` // for shell hooks
	URL      string   `yaml:"url,omitempty" json:"url,omitempty"`         // for webhook hooks
	Level    string   `yaml:"level,omitempty" json:"level,omitempty"`     // for log hooks (debug, info, warn)
}
