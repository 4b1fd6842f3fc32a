// Package config loads the YAML configuration that names the repository's
// branches and their Release metadata, mirroring the teacher's own
// YAML-config main.go while folding in the original project's
// conf_common.copy(); conf.update(...) per-branch default merge.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Branch is one branch's Release-stanza metadata. Whether a branch is
// scanned at all is decided by Config.Branches.
type Branch struct {
	Origin   string `yaml:"origin"`
	Label    string `yaml:"label"`
	Codename string `yaml:"codename"`
	Desc     string `yaml:"desc"`
	TTLDays  int    `yaml:"ttl"`
}

// Config is the top-level repository configuration: the base directory, the
// branch allowlist the orchestrator walks, per-branch metadata, and a common
// map of defaults applied to every branch before its own fields override
// them.
type Config struct {
	Base      string            `yaml:"base"`
	DBPath    string            `yaml:"db_path"`
	Branches  []string          `yaml:"branches"`
	Common    Branch            `yaml:"common"`
	PerBranch map[string]Branch `yaml:"branch_meta"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// BranchMeta returns the effective metadata for branch: the common defaults
// with any per-branch overrides applied field by field, exactly as the
// original scan/release glue merges its common config map into each branch's
// own.
func (c *Config) BranchMeta(branch string) Branch {
	m := c.Common
	override, ok := c.PerBranch[branch]
	if !ok {
		return m
	}
	if override.Origin != "" {
		m.Origin = override.Origin
	}
	if override.Label != "" {
		m.Label = override.Label
	}
	if override.Codename != "" {
		m.Codename = override.Codename
	}
	if override.Desc != "" {
		m.Desc = override.Desc
	}
	if override.TTLDays != 0 {
		m.TTLDays = override.TTLDays
	}
	return m
}
