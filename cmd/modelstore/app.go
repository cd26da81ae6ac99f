package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/fystack/modelstore/pkg/config"
	"github.com/fystack/modelstore/pkg/infra"
	"github.com/fystack/modelstore/pkg/kvstore"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/messaging"
	"github.com/fystack/modelstore/pkg/modelstore"
	"github.com/fystack/modelstore/pkg/table"
	"github.com/fystack/modelstore/pkg/versionlog"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// app holds the opened backends of one command invocation.
type app struct {
	cfg     *config.AppConfig
	kv      *kvstore.BadgerKVStore
	store   *modelstore.Store
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads config, applies prompts and sets up logging.
func loadConfig(c *cli.Command) (*config.AppConfig, error) {
	if err := config.InitViperConfig(c.String("config")); err != nil {
		return nil, err
	}
	if c.Bool("prompt-credentials") {
		password, err := promptPassword("Enter Badger DB password: ")
		if err != nil {
			return nil, err
		}
		viper.Set("badger_password", password)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	logger.Init(cfg.Environment, cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Debug("Loaded config", "config", cfg.MarshalJSONMask())
	return cfg, nil
}

func openApp(c *cli.Command) (*app, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	mode, err := modelstore.ParseRuntimeMode(cfg.RuntimeMode)
	if err != nil {
		return nil, err
	}

	key, err := kvstore.DeriveEncryptionKey(cfg.BadgerPassword)
	if err != nil {
		return nil, err
	}
	kv, err := kvstore.NewBadgerKVStore(cfg.Badger.Path, key)
	if err != nil {
		return nil, fmt.Errorf("open model database: %w", err)
	}

	a := &app{cfg: cfg, kv: kv}
	a.closers = append(a.closers, func() {
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close model database", err)
		}
	})

	recorder, err := a.newRecorder()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store = modelstore.New(
		table.NewKVManager(kv),
		modelstore.WithRecorder(recorder),
		modelstore.WithRuntimeMode(mode),
	)
	return a, nil
}

func (a *app) newRecorder() (versionlog.Recorder, error) {
	vl := a.cfg.VersionLog
	switch vl.Backend {
	case config.VersionLogConsul:
		client, err := infra.NewConsulClient(a.cfg.Consul)
		if err != nil {
			return nil, fmt.Errorf("connect consul: %w", err)
		}
		return versionlog.NewConsulRecorder(client.KV(), vl.Prefix), nil
	case config.VersionLogNATS:
		pubsub, err := a.connectNATS()
		if err != nil {
			return nil, err
		}
		return versionlog.NewNATSRecorder(pubsub, vl.Subject), nil
	default:
		return versionlog.NewKVRecorder(a.kv, vl.Prefix), nil
	}
}

func (a *app) connectNATS() (messaging.PubSub, error) {
	conn, err := messaging.Connect(a.cfg.NATs.URL, a.cfg.NATs.Username, a.cfg.NATs.Password)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	logger.Info("Connected to NATS", "url", a.cfg.NATs.URL)
	return messaging.NewNATSPubSub(conn), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}
	return string(raw), nil
}

// promptNewPassword asks twice and requires both entries to match.
func promptNewPassword(prompt string) (string, error) {
	password, err := promptPassword(prompt)
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}
