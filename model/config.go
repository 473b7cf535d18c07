package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegistryConfig is the serialized form of the model registry. It appears under
// the "models" key of cinegraph.yaml or as a standalone YAML/JSON file.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// IsEmpty reports whether the config declares nothing.
func (c *RegistryConfig) IsEmpty() bool {
	return c == nil || (len(c.Capabilities) == 0 && len(c.Endpoints) == 0 && c.Defaults == nil)
}

// Validate checks that every capability references a declared endpoint and that
// every capability name is known.
func (c *RegistryConfig) Validate() error {
	for name, capCfg := range c.Capabilities {
		if ParseCapability(name) == "" {
			return fmt.Errorf("unknown capability %q", name)
		}
		if capCfg == nil {
			return fmt.Errorf("capability %q has no configuration", name)
		}
		for _, m := range append(append([]string{}, capCfg.Preferred...), capCfg.Fallback...) {
			if _, ok := c.Endpoints[m]; !ok {
				return fmt.Errorf("capability %q references unknown endpoint %q", name, m)
			}
		}
	}
	for name, ep := range c.Endpoints {
		if ep == nil || ep.Provider == "" || ep.Model == "" {
			return fmt.Errorf("endpoint %q requires provider and model", name)
		}
	}
	return nil
}

// LoadFromFile loads a registry from a YAML or JSON file, chosen by extension.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadFromJSON(data)
	default:
		return LoadFromYAML(data)
	}
}

// LoadFromJSON loads a registry from JSON data.
// Accepts either a document with a "models" key or the registry config itself.
func LoadFromJSON(data []byte) (*Registry, error) {
	var wrapped struct {
		Models *RegistryConfig `json:"models"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && !wrapped.Models.IsEmpty() {
		return FromConfig(wrapped.Models)
	}

	var cfg RegistryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return FromConfig(&cfg)
}

// LoadFromYAML loads a registry from YAML data.
// Accepts either a document with a "models" key or the registry config itself.
func LoadFromYAML(data []byte) (*Registry, error) {
	var wrapped struct {
		Models *RegistryConfig `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && !wrapped.Models.IsEmpty() {
		return FromConfig(wrapped.Models)
	}

	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return FromConfig(&cfg)
}

// FromConfig validates cfg and builds a Registry from it.
func FromConfig(cfg *RegistryConfig) (*Registry, error) {
	if cfg.IsEmpty() {
		return nil, fmt.Errorf("registry config is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		caps[Capability(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}

	r := NewRegistry(caps, endpoints)
	if cfg.Defaults != nil {
		r.SetDefault(cfg.Defaults.Model)
	}
	return r, nil
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		endpoints[k] = v
	}

	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    endpoints,
		Defaults:     r.defaults,
	}
}

// MergeFromConfig merges configuration into an existing registry.
// Existing entries are overwritten by the new config.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) {
	if cfg.IsEmpty() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range cfg.Capabilities {
		r.capabilities[Capability(k)] = v
	}
	for k, v := range cfg.Endpoints {
		r.endpoints[k] = v
	}
	if cfg.Defaults != nil {
		r.defaults = cfg.Defaults
	}
}
