package kvstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fystack/modelstore/pkg/encryption"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/goccy/go-json"
)

const (
	backupMagic       = "MODELSTORE_BACKUP"
	backupAlgo        = "AES-256-GCM"
	backupStateFile   = "latest.state"
	backupFilePattern = "backup-*.enc"
	defaultBackupDir  = "./backups"
)

// BackupMeta is the clear-text header written in front of every backup file.
type BackupMeta struct {
	Algo            string `json:"algo"`
	NonceB64        string `json:"nonce_b64"`
	CreatedAt       string `json:"created_at"`
	Since           uint64 `json:"since"`
	NextSince       uint64 `json:"next_since"`
	EncryptionKeyID string `json:"encryption_key_id"`
}

// BackupState tracks the badger watermark of the last successful backup.
type BackupState struct {
	Counter   uint64 `json:"counter"`
	Since     uint64 `json:"since"`
	UpdatedAt string `json:"updated_at"`
}

// BackupExecutor writes incremental, encrypted backups of a model database.
type BackupExecutor struct {
	label     string
	db        *badger.DB
	key       []byte
	backupDir string
}

// NewBackupExecutor creates a backup executor. If backupDir is empty, ./backups is used.
func NewBackupExecutor(label string, db *badger.DB, backupKey []byte, backupDir string) (*BackupExecutor, error) {
	if len(backupKey) == 0 {
		return nil, ErrEncryptionKeyNotProvided
	}
	if backupDir == "" {
		backupDir = defaultBackupDir
	}
	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &BackupExecutor{
		label:     label,
		db:        db,
		key:       backupKey,
		backupDir: backupDir,
	}, nil
}

// Execute writes everything changed since the previous backup. It returns the
// path of the new backup file, or an empty string when nothing changed.
func (b *BackupExecutor) Execute() (string, error) {
	state, err := b.LoadState()
	if err != nil {
		return "", fmt.Errorf("load backup state: %w", err)
	}

	var plain bytes.Buffer
	nextSince, err := b.db.Backup(&plain, state.Since)
	if err != nil {
		return "", fmt.Errorf("badger backup: %w", err)
	}
	if plain.Len() == 0 || nextSince == state.Since {
		logger.Info("No changes since last backup, skipping", "since", state.Since)
		return "", nil
	}

	ct, nonce, err := encryption.EncryptAESGCM(plain.Bytes(), b.key)
	if err != nil {
		return "", fmt.Errorf("encrypt backup: %w", err)
	}

	now := time.Now()
	counter := state.Counter + 1
	meta := BackupMeta{
		Algo:            backupAlgo,
		NonceB64:        base64.StdEncoding.EncodeToString(nonce),
		CreatedAt:       now.UTC().Format(time.RFC3339),
		Since:           state.Since,
		NextSince:       nextSince,
		EncryptionKeyID: b.keyID(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("backup-%s-%s-%06d.enc", b.label, now.Format("2006-01-02_15-04-05"), counter)
	outPath := filepath.Join(b.backupDir, filename)

	var out bytes.Buffer
	out.WriteString(backupMagic)
	if err := binary.Write(&out, binary.BigEndian, uint32(len(metaJSON))); err != nil {
		return "", err
	}
	out.Write(metaJSON)
	out.Write(ct)
	if err := os.WriteFile(outPath, out.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}

	if err := b.SaveState(counter, nextSince); err != nil {
		logger.Error("Failed to save backup state", err, "file", filename)
	}
	logger.Info("Encrypted backup written", "file", filename, "counter", counter)
	return outPath, nil
}

func (b *BackupExecutor) keyID() string {
	return fmt.Sprintf("%x", sha256.Sum256(b.key))[:16]
}

func (b *BackupExecutor) SaveState(counter, since uint64) error {
	data, err := json.Marshal(BackupState{
		Counter:   counter,
		Since:     since,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.backupDir, backupStateFile), data, 0600)
}

// LoadState returns the zero state when no backup has been taken yet.
func (b *BackupExecutor) LoadState() (BackupState, error) {
	var state BackupState
	data, err := os.ReadFile(filepath.Join(b.backupDir, backupStateFile))
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	err = json.Unmarshal(data, &state)
	return state, err
}

// Backups lists backup files oldest first.
func (b *BackupExecutor) Backups() []string {
	files, _ := filepath.Glob(filepath.Join(b.backupDir, backupFilePattern))
	sort.Strings(files)
	return files
}

// Restore replays every backup into a fresh database at restorePath,
// encrypted at rest with encryptionKey.
func (b *BackupExecutor) Restore(restorePath string, encryptionKey []byte) error {
	if err := os.MkdirAll(restorePath, 0700); err != nil {
		return fmt.Errorf("create restore directory: %w", err)
	}

	opts := badger.DefaultOptions(restorePath).
		WithEncryptionKey(encryptionKey).
		WithIndexCacheSize(10 << 20).
		WithLogger(newQuietBadgerLogger())
	restoreDB, err := badger.Open(opts)
	if err != nil {
		return err
	}
	defer restoreDB.Close()

	for _, file := range b.Backups() {
		logger.Info("Restoring backup", "file", file)
		if err := b.load(restoreDB, file); err != nil {
			return fmt.Errorf("restore %s: %w", filepath.Base(file), err)
		}
	}
	return nil
}

// ReadMeta parses the clear-text header of a backup file.
func (b *BackupExecutor) ReadMeta(path string) (BackupMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return BackupMeta{}, err
	}
	defer f.Close()
	return readBackupMeta(f)
}

func readBackupMeta(r io.Reader) (BackupMeta, error) {
	var meta BackupMeta

	magicBuf := make([]byte, len(backupMagic))
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return meta, err
	}
	if string(magicBuf) != backupMagic {
		return meta, fmt.Errorf("bad magic")
	}

	var metaLen uint32
	if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
		return meta, err
	}
	metaBuf := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBuf); err != nil {
		return meta, err
	}
	err := json.Unmarshal(metaBuf, &meta)
	return meta, err
}

func (b *BackupExecutor) load(db *badger.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, err := readBackupMeta(f)
	if err != nil {
		return err
	}
	if meta.EncryptionKeyID != b.keyID() {
		return fmt.Errorf("backup encrypted with a different key (%s)", meta.EncryptionKeyID)
	}
	ct, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	nonce, err := base64.StdEncoding.DecodeString(meta.NonceB64)
	if err != nil {
		return err
	}
	plain, err := encryption.DecryptAESGCM(ct, b.key, nonce)
	if err != nil {
		return err
	}
	return db.Load(bytes.NewReader(plain), 10)
}
