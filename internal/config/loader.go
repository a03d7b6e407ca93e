package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// Load loads the runtime configuration from dir/mnemo.yaml. A missing
// file yields the default config; an unparseable file or one containing
// unrecognized keys is a fatal config error.
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, "mnemo.yaml")

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeConfigInvalid, "failed to read config file", err)
	}

	return Parse(content)
}

// Parse decodes raw YAML into a validated Config. Decoding is strict:
// unknown keys are rejected so a typo fails at startup instead of being
// silently ignored.
func Parse(content []byte) (*Config, error) {
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, mnemoErrors.Wrap(mnemoErrors.CodeConfigInvalid, "failed to parse config", err).
			WithSuggestion("check mnemo.yaml for typos; unrecognized options are rejected")
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	// Match ${env.VAR} pattern
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	// Match ${VAR} pattern
	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if strings.Contains(varName, ".") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Endpoint: "http://localhost:1234/v1/chat/completions",
			Model:    "local-model",
		},
		Agent: AgentConfig{
			Role: RoleConfig{
				Identity: "an autonomous assistant",
				Purpose:  "work through the task recorded in working memory",
			},
			Memory: MemoryConfig{
				PersistencePath: filepath.Join(".mnemo", "memory.json"),
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = "http://localhost:1234/v1/chat/completions"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "local-model"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.TopP == 0 {
		cfg.LLM.TopP = 0.9
	}
	if cfg.LLM.TopK == 0 {
		cfg.LLM.TopK = 40
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = -1
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.Agent.Limits.SoftTokens == 0 {
		cfg.Agent.Limits.SoftTokens = 4096
	}
	if cfg.Agent.Limits.HardTokens == 0 {
		cfg.Agent.Limits.HardTokens = 8192
	}
	if cfg.Agent.Limits.MaxIterations == 0 {
		cfg.Agent.Limits.MaxIterations = 50
	}
	if cfg.Agent.Memory.PersistencePath == "" {
		cfg.Agent.Memory.PersistencePath = filepath.Join(".mnemo", "memory.json")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = "sqlite"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(".mnemo", "history.db")
	}

	// Token from environment if not set in the file.
	if cfg.LLM.Token == "" {
		cfg.LLM.Token = os.Getenv("MNEMO_LLM_TOKEN")
	}
}

// DefaultYAML is the mnemo.yaml scaffold written by `mnemo init`.
const DefaultYAML = `llm:
  endpoint: http://localhost:1234/v1/chat/completions
  model: local-model
  temperature: 0.7
  top_p: 0.9
  top_k: 40
  max_tokens: -1

agent:
  role:
    identity: an autonomous assistant
    purpose: work through the task recorded in working memory
    knowledge_domains:
      - general reasoning
  limits:
    soft_tokens: 4096
    hard_tokens: 8192
    max_iterations: 50
  memory:
    persistence_path: .mnemo/memory.json
  prompts:
    thinking: Reflect on the task and decide the next step.
    executing: Emit exactly one action.
    evaluating: Judge whether the last action moved the task forward.
    paging: Reduce working memory; move stale entries to storage.

logging:
  level: info
  format: text
  # metrics_file: .mnemo/metrics.jsonl

history:
  driver: sqlite
  path: .mnemo/history.db
`
