package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fishpond/internal/pond"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_TiersAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Food.Tiers[0].GrowPct = 0.5
	assert.Equal(t, 0.004, pond.DefaultTiers[0].GrowPct)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
world:
  width: 1024
  height: 576
food:
  sink: true
  ttl: 30
sync:
  localThrottle: 500ms
  remoteThrottle: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, 1024.0, cfg.World.Width)
	assert.Equal(t, 576.0, cfg.World.Height)
	assert.True(t, cfg.Food.Sink)
	assert.Equal(t, 30.0, cfg.Food.TTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.LocalThrottle)
	assert.Equal(t, 2*time.Second, cfg.Sync.RemoteThrottle)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Fish, cfg.Fish)
	assert.Len(t, cfg.Food.Tiers, 3)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative width", "world:\n  width: -1\n"},
		{"size band inverted", "fish:\n  sizeMin: 2\n  sizeMax: 1\n"},
		{"smoothing above one", "fish:\n  turnSmooth: 1.5\n"},
		{"unknown tier kind", "food:\n  tiers:\n    - {kind: legendary, prob: 1, growPct: 0.1, radius: 5}\n"},
		{"empty tier table", "food:\n  tiers: []\n"},
		{"zero throttle", "sync:\n  localThrottle: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
		})
	}
}

func TestValidate_TierProbabilityTotal(t *testing.T) {
	cfg := Default()
	cfg.Food.Tiers = []pond.Tier{
		{Kind: pond.KindCommon, Prob: 0.8, GrowPct: 0.004, Radius: 5},
		{Kind: pond.KindRare, Prob: 0.5, GrowPct: 0.04, Radius: 7},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probabilities")
}

func TestValidate_WorldTooSmallForMargin(t *testing.T) {
	cfg := Default()
	cfg.World.Width = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "margin")
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("world: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pond.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fish:\n  maxCount: 10\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Fish.MaxCount)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("POND_TEST_DOTENV=koi\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("POND_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "koi", EnvOr("POND_TEST_DOTENV", "carp"))
	assert.Equal(t, "carp", EnvOr("POND_TEST_DOTENV_UNSET", "carp"))
}
