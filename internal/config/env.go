package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env holds the environment overrides that beat file values. API keys are
// not listed here: they resolve per provider at conversion time, where the
// file takes precedence over the environment.
type Env struct {
	LogLevel string `envconfig:"LOG_LEVEL"`
	DataDir  string `envconfig:"TABTALK_DATA_DIR"`
}

// applyEnv loads a .env file if one sits in the working directory, then
// layers environment overrides over the parsed config.
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.DataDir != "" {
		c.DataDir = env.DataDir
	}
	return nil
}
