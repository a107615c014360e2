// Package config reads CLI settings from the environment and optional .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env           string
	LogLevel      string
	ResourceDirs  []string
	DefaultPolicy string
	WalkLimit     int

	// Warnings lists problems met while loading; values fell back to defaults.
	Warnings []string
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env values.
func Load(files ...string) *Config {
	cfg := &Config{}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			cfg.warnf("Error loading %s: %v", strings.Join(existing, ", "), err)
		}
	} else if len(files) == 0 {
		_ = godotenv.Load()
	}

	cfg.Env = GetEnvString("SURVEYTASK_ENV", EnvDevelopment)
	cfg.LogLevel = GetEnvString("SURVEYTASK_LOG_LEVEL", "warn")
	cfg.ResourceDirs = splitList(GetEnvString("SURVEYTASK_RESOURCE_DIRS", ""))
	cfg.DefaultPolicy = GetEnvString("SURVEYTASK_DEFAULT_POLICY", "skip")

	limit, err := getEnvInt("SURVEYTASK_WALK_LIMIT", 1000)
	if err != nil {
		cfg.warnf("%v, will use default value", err)
	}
	cfg.WalkLimit = limit
	return cfg
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt returns defaultValue when key is unset or not an integer.
func GetEnvInt(key string, defaultValue int) int {
	v, _ := getEnvInt(key, defaultValue)
	return v
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("parsing %s: %w", key, err)
	}
	return intValue, nil
}
