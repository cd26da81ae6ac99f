package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		Environment:    "development",
		RuntimeMode:    RuntimeModeStandalone,
		Badger:         &BadgerConfig{Path: "./db"},
		BadgerPassword: "badger_secret",
		VersionLog:     &VersionLogConfig{Backend: VersionLogBadger},
	}
}

func TestAppConfig_MarshalJSONMask(t *testing.T) {
	config := validConfig()
	config.Consul = &ConsulConfig{
		Address:  "localhost:8500",
		Username: "admin",
		Password: "secret123",
		Token:    "token456",
	}
	config.NATs = &NATsConfig{
		URL:      "nats://localhost:4222",
		Username: "nats_user",
		Password: "nats_pass",
	}
	config.Backup = &BackupConfig{Dir: "./backups", Password: "backup_pass"}

	masked := config.MarshalJSONMask()

	// Verify that non sensitive data is kept
	assert.Contains(t, masked, "localhost:8500")
	assert.Contains(t, masked, "admin")
	assert.Contains(t, masked, "nats_user")
	assert.Contains(t, masked, "nats://localhost:4222")

	// Verify that passwords are masked
	assert.NotContains(t, masked, "secret123")
	assert.NotContains(t, masked, "token456")
	assert.NotContains(t, masked, "nats_pass")
	assert.NotContains(t, masked, "badger_secret")
	assert.NotContains(t, masked, "backup_pass")
	assert.Contains(t, masked, strings.Repeat("*", len("secret123")))

	// The original is untouched
	assert.Equal(t, "secret123", config.Consul.Password)
	assert.Equal(t, "nats_pass", config.NATs.Password)
}

func TestAppConfig_MarshalJSONMask_NilSections(t *testing.T) {
	config := AppConfig{BadgerPassword: "test"}

	masked := config.MarshalJSONMask()
	assert.NotEmpty(t, masked)
	assert.NotContains(t, masked, "test")
	assert.Contains(t, masked, "****")
}

func TestAppConfig_Validate(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())
}

func TestAppConfig_ValidateErrors(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"runtime_mode":    func(c *AppConfig) { c.RuntimeMode = "grid" },
		"badger.path":     func(c *AppConfig) { c.Badger = nil },
		"badger_password": func(c *AppConfig) { c.BadgerPassword = "" },
		"version_log":     func(c *AppConfig) { c.VersionLog = &VersionLogConfig{Backend: "kafka"} },
		"consul.address":  func(c *AppConfig) { c.VersionLog.Backend = VersionLogConsul },
		"nats.url":        func(c *AppConfig) { c.VersionLog.Backend = VersionLogNATS },
	}

	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			config := validConfig()
			mutate(&config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
runtime_mode: cluster
badger:
  path: /var/lib/modelstore
badger_password: from-file
version_log:
  backend: consul
consul:
  address: consul:8500
`), 0600))

	require.NoError(t, InitViperConfig(path))
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, config.Environment)
	assert.Equal(t, RuntimeModeCluster, config.RuntimeMode)
	assert.Equal(t, "/var/lib/modelstore", config.Badger.Path)
	assert.Equal(t, "from-file", config.BadgerPassword)
	assert.Equal(t, VersionLogConsul, config.VersionLog.Backend)
	assert.Equal(t, "vlog", config.VersionLog.Prefix)
	assert.Equal(t, "consul:8500", config.Consul.Address)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)
	t.Setenv("BADGER_PASSWORD", "from-env")
	t.Setenv("NATS_URL", "nats://env:4222")

	require.NoError(t, InitViperConfig(""))
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, RuntimeModeStandalone, config.RuntimeMode)
	assert.Equal(t, "./db/modelstore", config.Badger.Path)
	assert.Equal(t, VersionLogBadger, config.VersionLog.Backend)
	assert.Equal(t, "from-env", config.BadgerPassword)
	assert.Equal(t, "nats://env:4222", config.NATs.URL)
}

func TestInitViperConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	err := InitViperConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
