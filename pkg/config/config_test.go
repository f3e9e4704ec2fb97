package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/config"
)

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
checked: true
max_depth: 64
step_budget: 1000
cache_size: 32
allow_reflection: true
aliases:
  real: float64
`))
	require.NoError(t, err)
	assert.Equal(t, config.Config{
		Checked:         true,
		MaxDepth:        64,
		StepBudget:      1000,
		CacheSize:       32,
		AllowReflection: true,
		Aliases:         map[string]string{"real": "float64"},
	}, cfg)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	cfg, err = config.Parse([]byte("checked: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Checked)
	assert.Equal(t, config.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, config.DefaultCacheSize, cfg.CacheSize)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := config.Parse([]byte("chekced: true\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr []string
	}{
		{"default", config.Default(), nil},
		{"zero depth", config.Config{}, []string{"max_depth"}},
		{
			"several problems",
			config.Config{MaxDepth: 1, StepBudget: -1, CacheSize: -2, Aliases: map[string]string{"a.b": "int32"}},
			[]string{"step_budget", "cache_size", `alias "a.b"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cseval.yaml")
	require.NoError(t, os.WriteFile(path, []byte("step_budget: 10\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cfg.StepBudget)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	in := config.Default()
	in.Checked = true
	data, err := in.Marshal()
	require.NoError(t, err)
	out, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
