package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the bridge command that wraps the charm runtime.
type Config struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Dir         string            `yaml:"dir" json:"dir"`
	// Timeout bounds a single call; zero means no limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// LoadConfig reads a runner configuration file (YAML or JSON).
// A missing file yields a nil config and no error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runner config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if cfg.Command == "" {
		return nil, fmt.Errorf("%s: command is required", filepath.Base(path))
	}
	if cfg.Dir != "" && !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(filepath.Dir(path), cfg.Dir)
	}
	return &cfg, nil
}

// Template is written by `theatre init`.
const Template = `# Bridge command wrapping the charm runtime.
# It receives one JSON request on stdin:
#   {"kind": "event"|"action", "state": {...}, "event": {...}, "action": {...}, "env": {...}}
# and must print one JSON response on stdout:
#   {"state": {...}, "results": {...}, "logs": [{"level": "INFO", "message": "..."}], "failure": ""}
# Anything written to stderr is captured as the side channel.
command: python3
args: ["-m", "theatre_bridge"]
env: {}
`
