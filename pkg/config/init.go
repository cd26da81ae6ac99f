package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fystack/modelstore/pkg/logger"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvProduction = "production"

	RuntimeModeStandalone = "standalone"
	RuntimeModeCluster    = "cluster"

	VersionLogBadger = "badger"
	VersionLogConsul = "consul"
	VersionLogNATS   = "nats"
)

type AppConfig struct {
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	RuntimeMode string `mapstructure:"runtime_mode"`

	Badger         *BadgerConfig     `mapstructure:"badger"`
	BadgerPassword string            `mapstructure:"badger_password"`
	VersionLog     *VersionLogConfig `mapstructure:"version_log"`
	Consul         *ConsulConfig     `mapstructure:"consul"`
	NATs           *NATsConfig       `mapstructure:"nats"`
	Backup         *BackupConfig     `mapstructure:"backup"`
}

type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

type VersionLogConfig struct {
	Backend string `mapstructure:"backend"`
	// Prefix is the key prefix for the badger and consul backends.
	Prefix string `mapstructure:"prefix"`
	// Subject is the NATS subject for the nats backend.
	Subject string `mapstructure:"subject"`
}

type ConsulConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

type NATsConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BackupConfig struct {
	Dir      string `mapstructure:"dir"`
	Password string `mapstructure:"password"`
}

func mask(s string) string {
	return strings.Repeat("*", len(s))
}

// Implement masking serializer AppConfig
func (c AppConfig) MarshalJSONMask() string {
	// c is a copy; nested structs are cloned before masking
	c.BadgerPassword = mask(c.BadgerPassword)
	if c.Consul != nil {
		consul := *c.Consul
		consul.Password = mask(consul.Password)
		consul.Token = mask(consul.Token)
		c.Consul = &consul
	}
	if c.NATs != nil {
		nats := *c.NATs
		nats.Password = mask(nats.Password)
		c.NATs = &nats
	}
	if c.Backup != nil {
		backup := *c.Backup
		backup.Password = mask(backup.Password)
		c.Backup = &backup
	}

	bytes, err := json.Marshal(c)
	if err != nil {
		logger.Error("Failed to marshal app config", err)
	}
	return string(bytes)
}

// Validate checks enum values and the settings each backend depends on.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.RuntimeMode {
	case RuntimeModeStandalone, RuntimeModeCluster:
	default:
		errs = append(errs, fmt.Errorf("runtime_mode must be %q or %q, got %q", RuntimeModeStandalone, RuntimeModeCluster, c.RuntimeMode))
	}

	if c.Badger == nil || c.Badger.Path == "" {
		errs = append(errs, errors.New("badger.path is required"))
	}
	if c.BadgerPassword == "" {
		errs = append(errs, errors.New("badger_password is required"))
	}

	backend := ""
	if c.VersionLog != nil {
		backend = c.VersionLog.Backend
	}
	switch backend {
	case VersionLogBadger:
	case VersionLogConsul:
		if c.Consul == nil || c.Consul.Address == "" {
			errs = append(errs, errors.New("consul.address is required for the consul version log"))
		}
	case VersionLogNATS:
		if c.NATs == nil || c.NATs.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats version log"))
		}
	default:
		errs = append(errs, fmt.Errorf("version_log.backend must be one of badger, consul, nats, got %q", backend))
	}

	return errors.Join(errs...)
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("runtime_mode", RuntimeModeStandalone)
	viper.SetDefault("badger.path", "./db/modelstore")
	viper.SetDefault("version_log.backend", VersionLogBadger)
	viper.SetDefault("version_log.prefix", "vlog")
	viper.SetDefault("version_log.subject", "modelstore.versions")
	viper.SetDefault("backup.dir", "./backups")

	// registered so AutomaticEnv can supply them through AllSettings
	for _, key := range []string{
		"badger_password",
		"backup.password",
		"consul.address", "consul.username", "consul.password", "consul.token",
		"nats.url", "nats.username", "nats.password",
	} {
		viper.SetDefault(key, "")
	}
}

// InitViperConfig reads configFile, or config.yaml from the working directory
// when configFile is empty. A missing default config file is not an error;
// defaults and environment variables still apply.
func InitViperConfig(configFile string) error {
	setDefaults()
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config") // name of config file (without extension)
		viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
		viper.AddConfigPath(".")      // optionally look for config in the working directory
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && configFile == "" {
		logger.Warn("No config file found, using defaults and environment")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	logger.Info("Reading config file", "file", viper.ConfigFileUsed())
	return nil
}

func LoadConfig() (*AppConfig, error) {
	var config AppConfig
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &config, nil
}
