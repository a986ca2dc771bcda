package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// RewardRegistry is the static, non-secret YAML registry of known channel
// point rewards: human-readable names and each reward's default
// target_rewards/anti-spam tuning. main loads it at startup and logs its
// entry count; no code reads the entries to seed or label anything. It is
// not a source of truth for any tenant's live settings — once a tenant has a
// settings row, only MergeSettings' partial-update semantics change it.
type RewardRegistry struct {
	Rewards map[string]RewardDefaults `yaml:"rewards"`
}

// RewardDefaults is one reward's entry in the static registry.
type RewardDefaults struct {
	DisplayName     string `yaml:"display_name"`
	DefaultTarget   bool   `yaml:"default_target"`
	AntiSpamSeconds int    `yaml:"anti_spam_seconds"`
}

// LoadRewardRegistry reads and parses a YAML registry file. A missing file
// is not an error — it yields an empty registry, since this config is purely
// additive (labels and seed defaults), never required for the pipeline to
// run.
func LoadRewardRegistry(path string) (RewardRegistry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return RewardRegistry{Rewards: map[string]RewardDefaults{}}, nil
	}
	if err != nil {
		return RewardRegistry{}, fmt.Errorf("config: read reward registry: %w", err)
	}

	var reg RewardRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return RewardRegistry{}, fmt.Errorf("config: parse reward registry: %w", err)
	}
	if reg.Rewards == nil {
		reg.Rewards = map[string]RewardDefaults{}
	}
	return reg, nil
}

// MergeOverride field-wise merges override on top of base using the same
// partial-update discipline as domain.MergeSettings, but generically via
// mergo — used to layer an environment-specific registry file (the path in
// REWARD_REGISTRY_OVERRIDE) over the base rewards.yaml without repeating
// every entry in the override file.
func MergeOverride(base, override RewardRegistry) (RewardRegistry, error) {
	out := base
	if out.Rewards == nil {
		out.Rewards = map[string]RewardDefaults{}
	}
	for id, entry := range override.Rewards {
		existing := out.Rewards[id]
		if err := mergo.Merge(&existing, entry, mergo.WithOverride); err != nil {
			return RewardRegistry{}, fmt.Errorf("config: merge reward %q: %w", id, err)
		}
		out.Rewards[id] = existing
	}
	return out, nil
}
