package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductionConfig() *Config {
	return &Config{
		Env:                "production",
		Port:               "8080",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		DBDriver:           "postgres",
		DBPassword:         "secure-password",
		DBSSLMode:          "require",
		TracingSampleRatio: 1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validProductionConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"default secret in production", func(c *Config) { c.JWTSecret = defaultJWTSecret }},
		{"short secret in production", func(c *Config) { c.JWTSecret = "short" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"sqlite in production", func(c *Config) { c.DBDriver = "sqlite" }},
		{"partial s3 config", func(c *Config) { c.S3Endpoint = "minio:9000" }},
		{"sample ratio out of range", func(c *Config) { c.TracingSampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validProductionConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "  SQLite ")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("FEATURE_FLAGS", "bucket_visibility_pushdown=on")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "bucket_visibility_pushdown=on", c.FeatureFlags)
	assert.Equal(t, 60, c.MediaURLTTLMinutes)
	assert.False(t, c.MediaEnabled())
}
