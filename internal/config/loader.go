package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is shared across Load calls; validator.Validate is safe for
// concurrent use.
var validate = validator.New()

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyEnv(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays secrets from the environment. Environment values
// win over file values so deployments never need keys on disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RASPBOT_STT_API_KEY"); v != "" {
		cfg.STT.CloudAPIKey = v
	}
	if v := os.Getenv("RASPBOT_STT_ENDPOINT"); v != "" {
		cfg.STT.CloudEndpoint = v
	}
	if v := os.Getenv("RASPBOT_DIALOG_API_KEY"); v != "" {
		cfg.Dialog.APIKey = v
	}
	if v := os.Getenv("RASPBOT_TTS_API_KEY"); v != "" {
		cfg.TTS.APIKey = v
	}
	if v := os.Getenv("RASPBOT_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("RASPBOT_SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("RASPBOT_ROBOT_ENDPOINT"); v != "" {
		cfg.Robot.Endpoint = v
	}
}
