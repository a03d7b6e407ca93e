package config

import (
	"fmt"
	"net/url"
	"strings"

	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

var validStates = map[string]bool{
	"thinking":   true,
	"executing":  true,
	"evaluating": true,
	"paging":     true,
}

// Validate checks a fully-defaulted config. All problems are collected so
// the operator sees everything wrong at once.
func Validate(cfg *Config) error {
	var errors []string

	if cfg.LLM.Endpoint == "" {
		errors = append(errors, "llm.endpoint is required")
	} else if u, err := url.Parse(cfg.LLM.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("llm.endpoint is not a valid URL: %s", cfg.LLM.Endpoint))
	}
	if cfg.LLM.Model == "" {
		errors = append(errors, "llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errors = append(errors, fmt.Sprintf("llm.temperature must be in [0, 2], got %v", cfg.LLM.Temperature))
	}
	if cfg.LLM.TopP < 0 || cfg.LLM.TopP > 1 {
		errors = append(errors, fmt.Sprintf("llm.top_p must be in [0, 1], got %v", cfg.LLM.TopP))
	}
	if cfg.LLM.MaxTokens < -1 || cfg.LLM.MaxTokens == 0 {
		errors = append(errors, fmt.Sprintf("llm.max_tokens must be -1 or positive, got %d", cfg.LLM.MaxTokens))
	}

	if cfg.Agent.Role.Identity == "" {
		errors = append(errors, "agent.role.identity is required")
	}
	if cfg.Agent.Role.Purpose == "" {
		errors = append(errors, "agent.role.purpose is required")
	}

	if cfg.Agent.Limits.HardTokens <= cfg.Agent.Limits.SoftTokens {
		errors = append(errors, fmt.Sprintf("agent.limits.hard_tokens (%d) must exceed soft_tokens (%d)",
			cfg.Agent.Limits.HardTokens, cfg.Agent.Limits.SoftTokens))
	}
	if cfg.Agent.Limits.MaxIterations == 0 {
		errors = append(errors, "agent.limits.max_iterations must be positive")
	}
	if cfg.Agent.Memory.PersistencePath == "" {
		errors = append(errors, "agent.memory.persistence_path is required")
	}

	for state := range cfg.Agent.Prompts {
		if !validStates[state] {
			errors = append(errors, fmt.Sprintf("agent.prompts: unknown state %q", state))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errors = append(errors, fmt.Sprintf("logging.level must be debug|info|warn|error, got %q", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		errors = append(errors, fmt.Sprintf("logging.format must be text|json, got %q", cfg.Logging.Format))
	}

	validDrivers := map[string]bool{"sqlite": true, "none": true}
	if !validDrivers[cfg.History.Driver] {
		errors = append(errors, fmt.Sprintf("history.driver must be sqlite|none, got %q", cfg.History.Driver))
	}
	if cfg.History.Driver == "sqlite" && cfg.History.Path == "" {
		errors = append(errors, "history.path is required when history.driver is sqlite")
	}

	for i, hook := range cfg.Hooks.Hooks {
		switch hook.Type {
		case "shell":
			if hook.Command == "" {
				errors = append(errors, fmt.Sprintf("hooks[%d]: shell hook requires command", i))
			}
		case "webhook":
			if hook.URL == "" {
				errors = append(errors, fmt.Sprintf("hooks[%d]: webhook hook requires url", i))
			}
		case "log":
		default:
			errors = append(errors, fmt.Sprintf("hooks[%d]: unknown hook type %q", i, hook.Type))
		}
	}

	if len(errors) > 0 {
		return mnemoErrors.New(mnemoErrors.CodeConfigInvalid,
			fmt.Sprintf("config validation failed: %s", strings.Join(errors, "; ")))
	}
	return nil
}
