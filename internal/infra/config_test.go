package infra

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "port": 8181,
  "secret_key": "s3cret",
  "auto_refresh_seconds": 15,
  "users": [
    {"username": "admin", "password": "$2b$12$abcdefghijklmnopqrstuv", "tenants": ["*"]},
    {"username": "ops", "password": "salt$00ff", "tenants": ["acme"]}
  ],
  "instances": [
    {
      "name": "acme",
      "url": "https://mmonit.acme.example:8080",
      "username": "admin",
      "password": "pw",
      "api_version": "3",
      "verify_ssl": true,
      "healthchecks": {
        "enabled": true,
        "projects": [
          {"name": "Prod", "api_key": "k1", "tags": ["prod"], "verify_ssl": false}
        ]
      }
    },
    {
      "name": "globex",
      "url": "https://mmonit.globex.example",
      "username": "admin",
      "password": "pw"
    }
  ],
  "ui_thresholds": {"disk_warning_pct": 70, "disk_error_pct": 95},
  "hub": {"request_timeout": "5s", "host_workers": 4, "breaker": {"enabled": true, "max_failures": 3}}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmonit-hub.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "cli", cfg.Source)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, 15, cfg.AutoRefreshSeconds)
	assert.True(t, cfg.AuthRequired())

	require.Len(t, cfg.Users, 2)
	assert.Equal(t, "salt$00ff", cfg.Users[1].PasswordHash)
	assert.Equal(t, []string{"acme"}, cfg.Users[1].Tenants)

	require.Len(t, cfg.Instances, 2)
	acme := cfg.Instances[0]
	assert.Equal(t, "3", acme.Version())
	assert.True(t, acme.VerifySSL)
	require.True(t, acme.Healthchecks.Active())
	assert.False(t, acme.Healthchecks.Projects[0].TLSVerify())
	assert.Equal(t, "https://healthchecks.io", acme.Healthchecks.Projects[0].Base())

	globex := cfg.Instances[1]
	assert.Equal(t, "2", globex.Version())
	assert.False(t, globex.VerifySSL)
	assert.Nil(t, globex.Healthchecks)

	assert.Equal(t, 70, cfg.UIThresholds.DiskWarningPct)
	assert.Equal(t, 95, cfg.UIThresholds.DiskErrorPct)

	// Значения из файла поверх дефолтов
	assert.Equal(t, 5*time.Second, cfg.Hub.RequestTimeout)
	assert.Equal(t, 4, cfg.Hub.HostWorkers)
	assert.Equal(t, 16, cfg.Hub.TenantWorkers)
	assert.Equal(t, 1000, cfg.Hub.MaxHosts)
	assert.True(t, cfg.Hub.Breaker.Enabled)
	assert.Equal(t, uint32(3), cfg.Hub.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Hub.Breaker.OpenTimeout)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Logger.Level)

	assert.Equal(t, []string{"globex", "acme/Prod"}, cfg.InsecureInstances())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"instances": []}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30, cfg.AutoRefreshSeconds)
	assert.Equal(t, 80, cfg.UIThresholds.DiskWarningPct)
	assert.Equal(t, 90, cfg.UIThresholds.DiskErrorPct)
	assert.Equal(t, 12*time.Second, cfg.Hub.RequestTimeout)
	assert.False(t, cfg.Hub.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Hub.Breaker.MaxFailures)
	assert.False(t, cfg.AuthRequired())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MMONIT_HUB_PORT", "9191")
	t.Setenv("MMONIT_HUB_HUB_REQUEST_TIMEOUT", "3s")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.Hub.RequestTimeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]struct {
		body string
		path string
	}{
		"missing file":      {path: filepath.Join(t.TempDir(), "absent.conf")},
		"invalid json":      {body: `{"port": `},
		"secret required":   {body: `{"users":[{"username":"a","password":"x","tenants":["*"]}],"instances":[]}`},
		"duplicate tenants": {body: `{"instances":[{"name":"a","url":"https://a.example","username":"u","password":"p"},{"name":"a","url":"https://b.example","username":"u","password":"p"}]}`},
		"duplicate users":   {body: `{"secret_key":"k","users":[{"username":"a","password":"x"},{"username":"a","password":"y"}]}`},
		"instance no url":   {body: `{"instances":[{"name":"a","username":"u","password":"p"}]}`},
		"bad thresholds":    {body: `{"ui_thresholds":{"disk_warning_pct":95,"disk_error_pct":90}}`},
		"bad log level":     {body: `{"logger":{"level":"loud"}}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := tc.path
			if path == "" {
				path = writeConfig(t, tc.body)
			}

			_, err := LoadConfig(path)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	noEnv := func(string) string { return "" }

	path, source := ResolveConfigPath("/etc/hub.conf", noEnv)
	assert.Equal(t, "/etc/hub.conf", path)
	assert.Equal(t, "cli", source)

	path, source = ResolveConfigPath("", func(k string) string {
		if k == EnvConfigPath {
			return "/srv/hub.conf"
		}
		return ""
	})
	assert.Equal(t, "/srv/hub.conf", path)
	assert.Equal(t, "env", source)

	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	path, source = ResolveConfigPath("", noEnv)
	assert.Equal(t, "default", source)
	assert.Equal(t, DefaultConfig, filepath.Base(path))

	require.NoError(t, os.WriteFile(DefaultConfig, []byte(`{}`), 0o600))
	_, source = ResolveConfigPath("", noEnv)
	assert.Equal(t, "cwd", source)
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(LoggerConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	console := newLoggerTo(LoggerConfig{Level: "debug", Format: "console"}, &buf)
	console.Debug("plain")
	assert.Contains(t, buf.String(), "DEBUG")
}

func TestNewLogger_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hub.log")
	var buf bytes.Buffer
	logger := newLoggerTo(LoggerConfig{Level: "info", File: file, MaxSizeMB: 1}, &buf)
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
