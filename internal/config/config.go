package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"healthbridge/internal/domain"
)

// Config models healthbridge.yml.
type Config struct {
	Workflows map[domain.WorkflowID]WorkflowConfig `yaml:"workflows"`
	History   struct {
		Enabled     bool `yaml:"enabled"`
		StoreInputs bool `yaml:"store_inputs"`
	} `yaml:"history"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WorkflowConfig struct {
	Enabled *bool `yaml:"enabled"`
	// Model is the model handle: an artifact path relative to the workspace
	// or an http(s) URL. Empty means the built-in default.
	Model string `yaml:"model"`
}

// On reports whether the workflow is enabled; unset means enabled.
func (w WorkflowConfig) On() bool {
	return w.Enabled == nil || *w.Enabled
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

func (w WebhookConfig) On() bool {
	return w.Enabled == nil || *w.Enabled
}

// Wants reports whether the hook subscribes to an event type. No filter
// means every event; a trailing ".*" matches a prefix.
func (w WebhookConfig) Wants(evtType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == evtType || e == "*" {
			return true
		}
		if strings.HasSuffix(e, ".*") && strings.HasPrefix(evtType, strings.TrimSuffix(e, "*")) {
			return true
		}
	}
	return false
}

// Workflow returns the settings for id, or the zero value.
func (c *Config) Workflow(id domain.WorkflowID) WorkflowConfig {
	if c == nil || c.Workflows == nil {
		return WorkflowConfig{}
	}
	return c.Workflows[id]
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with hb config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for id, wf := range c.Workflows {
		if parsed, err := domain.ParseWorkflowID(string(id)); err != nil || parsed != id {
			return fmt.Errorf("config.workflows has unknown workflow %q", id)
		}
		if strings.TrimSpace(wf.Model) != wf.Model {
			return fmt.Errorf("config.workflows.%s.model has surrounding whitespace", id)
		}
	}
	if c.History.StoreInputs && !c.History.Enabled {
		return fmt.Errorf("config.history.store_inputs requires history.enabled")
	}
	if bp := c.Server.BasePath; bp != "" && (!strings.HasPrefix(bp, "/") || strings.HasSuffix(bp, "/")) {
		return fmt.Errorf("config.server.base_path must start with / and not end with /")
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
		for _, e := range hook.Events {
			if e == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "healthbridge.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to YAML.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const defaultTemplate = `workflows:
  obesity:
    enabled: true
    model: models/obesity_model.yml
  depression:
    enabled: true
    model: models/depression_model.yml
  stroke:
    enabled: true
    model: models/brain_stroke.yml
  stroke-legacy:
    enabled: false
    model: models/stacking_model.yml
  depression-legacy:
    enabled: false
    model: models/depression_legacy_model.yml

history:
  enabled: true
  store_inputs: false

server:
  addr: ":8080"
  base_path: ""

webhooks: []
`
