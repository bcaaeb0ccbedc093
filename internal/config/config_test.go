package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revdiff/internal/diff"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	opts, err := c.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, diff.DefaultOptions(), opts)
	assert.Equal(t, 10, c.History.KeyframeInterval)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"store": {"in_memory": true},
		"engine": {"granularity": "word", "patch_margin": 8},
		"log_level": "debug"
	}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.Store.InMemory)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 10, c.History.KeyframeInterval)

	opts, err := c.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, diff.Word, opts.Granularity)
	assert.Equal(t, 8, opts.PatchMargin)
	assert.Equal(t, 1000, opts.MatchDistance)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"engine": {"granularity": "sentence"}}`))
	assert.ErrorContains(t, err, "unknown granularity")

	_, err = Load(writeConfig(t, `{"history": {"keyframe_interval": 0}}`))
	assert.ErrorContains(t, err, "keyframe_interval")

	_, err = Load(writeConfig(t, `{not json`))
	assert.Error(t, err)
}

func TestEngineTolerances(t *testing.T) {
	old := "The introduction frames the research question and the method, then outlines the chapters that follow."
	new := "The introduction frames the method."

	valid := []struct {
		name   string
		engine string
		check  func(diff.Options) bool
	}{
		{"smallest margin", `{"patch_margin": 1}`, func(o diff.Options) bool { return o.PatchMargin == 1 }},
		{"largest margin", `{"patch_margin": 8}`, func(o diff.Options) bool { return o.PatchMargin == diff.MaxPatchMargin }},
		{"loosest match", `{"match_threshold": 1}`, func(o diff.Options) bool { return o.MatchThreshold == 1 }},
		{"strict match", `{"match_threshold": 0.01}`, func(o diff.Options) bool { return o.MatchThreshold == 0.01 }},
		{"loosest delete", `{"delete_threshold": 1}`, func(o diff.Options) bool { return o.DeleteThreshold == 1 }},
		{"strict delete", `{"delete_threshold": 0.01}`, func(o diff.Options) bool { return o.DeleteThreshold == 0.01 }},
		{"shortest distance", `{"match_distance": 1}`, func(o diff.Options) bool { return o.MatchDistance == 1 }},
	}
	for _, tc := range valid {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Load(writeConfig(t, `{"engine": `+tc.engine+`}`))
			require.NoError(t, err)
			opts, err := c.EngineOptions()
			require.NoError(t, err)

			e := diff.NewEngine(opts)
			assert.True(t, tc.check(e.Options()), "effective options %+v", e.Options())

			res, err := e.ApplyDelta(old, e.Encode(e.Compute(old, new)))
			require.NoError(t, err)
			assert.Equal(t, new, res.Text)
		})
	}

	invalid := []struct {
		engine string
		msg    string
	}{
		{`{"patch_margin": 0}`, "engine.patch_margin"},
		{`{"patch_margin": 9}`, "engine.patch_margin"},
		{`{"patch_margin": 16}`, "engine.patch_margin"},
		{`{"match_threshold": 0}`, "engine.match_threshold"},
		{`{"match_threshold": 1.5}`, "engine.match_threshold"},
		{`{"delete_threshold": 0}`, "engine.delete_threshold"},
		{`{"delete_threshold": -0.1}`, "engine.delete_threshold"},
		{`{"match_distance": 0}`, "engine.match_distance"},
	}
	for _, tc := range invalid {
		_, err := Load(writeConfig(t, `{"engine": `+tc.engine+`}`))
		assert.ErrorContains(t, err, tc.msg, tc.engine)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config", "config.review.json"),
		[]byte(`{"history": {"keyframe_interval": 3}}`), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("REVDIFF_ENV", "review")
	assert.Equal(t, "config/config.review.json", ConfigPath())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, c.History.KeyframeInterval)

	// No file for the environment means defaults
	t.Setenv("REVDIFF_ENV", "staging")
	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, c.History.KeyframeInterval)
}
