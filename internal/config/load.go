package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the configuration document at path. A missing file is not an
// error: it yields a disabled gateway with no channels. Files ending in
// .yaml or .yml are decoded as YAML; everything else is decoded as JSON.
//
// Load applies defaults but does not validate; call Validate before use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Disabled(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Disabled returns the configuration used when no config file exists:
// gateway off, no channels, defaults applied.
func Disabled() *Config {
	cfg := &Config{Gateway: seedGateway()}
	cfg.Gateway.Enabled = false
	cfg.applyDefaults()
	return cfg
}

func decode(data []byte) (*Config, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, fmt.Errorf("top-level value must be an object")
	}

	// Pre-seed the booleans that default to true; json.Unmarshal leaves
	// fields untouched when their key is absent.
	cfg := &Config{Gateway: seedGateway()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func seedGateway() Gateway {
	return Gateway{
		Enabled: true,
		Maintenance: Maintenance{
			LogRetentionDays: defaultLogRetentionDays,
			HealthRecheck:    true,
		},
	}
}

// UnmarshalJSON decodes a descriptor with enabled defaulting to true; a
// listed channel runs unless it explicitly opts out.
func (d *ChannelDescriptor) UnmarshalJSON(b []byte) error {
	type alias ChannelDescriptor
	a := alias{Enabled: true}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = ChannelDescriptor(a)
	return nil
}

// yamlToJSON re-encodes a YAML document as JSON so both formats flow
// through the same decoding and defaulting path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return out, nil
}
