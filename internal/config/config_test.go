package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("FBR_API_TOKEN", "token-from-env")
	t.Setenv("LARK_CHAT_ID", "oc_ops")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, "token-from-env", cfg.FBR.Token)
	assert.True(t, cfg.FBR.Sandbox)
	assert.Equal(t, 2.0, cfg.FBR.RateLimit)
	assert.Equal(t, 30*time.Minute, cfg.Submission.CacheExpiry)
	assert.Equal(t, time.Minute, cfg.Submission.SweepInterval)
	assert.Equal(t, 2*time.Hour, cfg.Submission.AbandonAfter)
	assert.Equal(t, "oc_ops", cfg.Lark.ChatID)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("FBR_API_TOKEN", "t")

	cfg, err := Load(writeConfig(t, `
fbr:
  base_url: http://localhost:9999
  sandbox: false
  timeout: 5s
submission:
  cache_expiry: 2m
  sweep_interval: 10s
  abandon_after: 0s
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.FBR.BaseURL)
	assert.False(t, cfg.FBR.Sandbox)
	assert.Equal(t, 5*time.Second, cfg.FBR.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Submission.CacheExpiry)
	assert.Equal(t, 10*time.Second, cfg.Submission.SweepInterval)
	assert.Zero(t, cfg.Submission.AbandonAfter)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{Path: "data/test.db"},
			FBR:        FBRConfig{BaseURL: "http://gw", Token: "t"},
			Submission: SubmissionConfig{CacheExpiry: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.FBR.Token = "" }, wantErr: "fbr.token"},
		{name: "missing base url", mutate: func(c *Config) { c.FBR.BaseURL = "" }, wantErr: "fbr.base_url"},
		{name: "negative rate", mutate: func(c *Config) { c.FBR.RateLimit = -1 }, wantErr: "rate_limit"},
		{name: "zero expiry", mutate: func(c *Config) { c.Submission.CacheExpiry = 0 }, wantErr: "cache_expiry"},
		{name: "negative abandon", mutate: func(c *Config) { c.Submission.AbandonAfter = -time.Second }, wantErr: "abandon_after"},
		{name: "half lark", mutate: func(c *Config) { c.Lark.AppID = "cli_x" }, wantErr: "lark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
