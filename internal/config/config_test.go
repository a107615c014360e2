package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"SURVEYTASK_ENV",
	"SURVEYTASK_LOG_LEVEL",
	"SURVEYTASK_RESOURCE_DIRS",
	"SURVEYTASK_DEFAULT_POLICY",
	"SURVEYTASK_WALK_LIMIT",
}

// clearEnv unsets the config keys for the duration of the test.
func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Nil(t, cfg.ResourceDirs)
	assert.Equal(t, "skip", cfg.DefaultPolicy)
	assert.Equal(t, 1000, cfg.WalkLimit)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "SURVEYTASK_ENV=production\n" +
		"SURVEYTASK_WALK_LIMIT=25\n" +
		"SURVEYTASK_RESOURCE_DIRS=" + "override" + string(os.PathListSeparator) + " main \n" +
		"SURVEYTASK_DEFAULT_POLICY=first\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SURVEYTASK_DEFAULT_POLICY", "last")

	cfg := Load(path)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 25, cfg.WalkLimit)
	assert.Equal(t, []string{"override", "main"}, cfg.ResourceDirs)
	assert.Equal(t, "last", cfg.DefaultPolicy)
}

func TestGetEnvIntInvalid(t *testing.T) {
	t.Setenv("SURVEYTASK_WALK_LIMIT", "lots")
	assert.Equal(t, 7, GetEnvInt("SURVEYTASK_WALK_LIMIT", 7))
}

func TestLoadReportsInvalidInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("SURVEYTASK_WALK_LIMIT", "lots")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, 1000, cfg.WalkLimit)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "SURVEYTASK_WALK_LIMIT")
}
