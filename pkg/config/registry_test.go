package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/broadcastqueue/eventsubd/pkg/config"
)

func TestLoadRewardRegistry_MissingFileYieldsEmpty(t *testing.T) {
	reg, err := config.LoadRewardRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, reg.Rewards)
}

func TestLoadRewardRegistry_ParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rewards:
  reward-1:
    display_name: "Highlight Clip"
    default_target: true
    anti_spam_seconds: 30
`), 0o644))

	reg, err := config.LoadRewardRegistry(path)
	require.NoError(t, err)

	require.Contains(t, reg.Rewards, "reward-1")
	assert.Equal(t, "Highlight Clip", reg.Rewards["reward-1"].DisplayName)
	assert.True(t, reg.Rewards["reward-1"].DefaultTarget)
	assert.Equal(t, 30, reg.Rewards["reward-1"].AntiSpamSeconds)
}

func TestMergeOverride_OverridesFieldsPerReward(t *testing.T) {
	base := config.RewardRegistry{Rewards: map[string]config.RewardDefaults{
		"reward-1": {DisplayName: "Base Name", DefaultTarget: false, AntiSpamSeconds: 10},
	}}
	override := config.RewardRegistry{Rewards: map[string]config.RewardDefaults{
		"reward-1": {DisplayName: "Prod Name", DefaultTarget: true, AntiSpamSeconds: 20},
		"reward-2": {DisplayName: "New Reward"},
	}}

	merged, err := config.MergeOverride(base, override)
	require.NoError(t, err)

	assert.Equal(t, "Prod Name", merged.Rewards["reward-1"].DisplayName)
	assert.True(t, merged.Rewards["reward-1"].DefaultTarget)
	assert.Equal(t, 20, merged.Rewards["reward-1"].AntiSpamSeconds)
	assert.Equal(t, "New Reward", merged.Rewards["reward-2"].DisplayName)
}
