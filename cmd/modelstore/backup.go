package main

import (
	"context"
	"fmt"

	"github.com/fystack/modelstore/pkg/kvstore"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/urfave/cli/v3"
)

const backupLabel = "modelstore"

// backupKey derives the backup encryption key from backup.password, falling
// back to a prompt.
func backupKey(a *app) ([]byte, error) {
	password := ""
	if a.cfg.Backup != nil {
		password = a.cfg.Backup.Password
	}
	if password == "" {
		var err error
		password, err = promptPassword("Enter backup password: ")
		if err != nil {
			return nil, err
		}
	}
	return kvstore.DeriveEncryptionKey(password)
}

func backupDir(a *app) string {
	if a.cfg.Backup == nil {
		return ""
	}
	return a.cfg.Backup.Dir
}

func runBackup(ctx context.Context, c *cli.Command) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := backupKey(a)
	if err != nil {
		return err
	}
	executor, err := kvstore.NewBackupExecutor(backupLabel, a.kv.DB(), key, backupDir(a))
	if err != nil {
		return err
	}

	path, err := executor.Execute()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if path == "" {
		fmt.Println("nothing changed since the last backup")
		return nil
	}
	fmt.Println(path)
	return nil
}

func runRestore(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}

	key, err := backupKey(a)
	if err != nil {
		return err
	}
	dbKey, err := kvstore.DeriveEncryptionKey(cfg.BadgerPassword)
	if err != nil {
		return err
	}

	// restore does not open the live database
	executor, err := kvstore.NewBackupExecutor(backupLabel, nil, key, backupDir(a))
	if err != nil {
		return err
	}
	backups := executor.Backups()
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %q", backupDir(a))
	}

	target := c.String("to")
	if err := executor.Restore(target, dbKey); err != nil {
		return err
	}
	logger.Info("Restored model database", "path", target, "backups", len(backups))
	return nil
}
