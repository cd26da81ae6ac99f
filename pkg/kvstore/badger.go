package kvstore

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	commonerrors "github.com/fystack/modelstore/pkg/common/errors"
	"github.com/fystack/modelstore/pkg/logger"
	"golang.org/x/crypto/hkdf"
)

const encryptionKeyInfo = "modelstore/badger-encryption-key"

var (
	ErrEncryptionKeyNotProvided = errors.New("encryption key not provided")
)

// BadgerKVStore is an implementation of the KVStore interface using BadgerDB.
type BadgerKVStore struct {
	db *badger.DB
}

// DeriveEncryptionKey stretches a user supplied password into a 32 byte
// AES-256 key suitable for badger's encryption at rest.
func DeriveEncryptionKey(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEncryptionKeyNotProvided
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(password), nil, []byte(encryptionKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	return key, nil
}

// NewBadgerKVStore creates a new BadgerKVStore instance.
func NewBadgerKVStore(dbPath string, encryptionKey []byte) (*BadgerKVStore, error) {
	// must ensure encryption key is provided
	if len(encryptionKey) == 0 {
		return nil, ErrEncryptionKeyNotProvided
	}

	opts := badger.DefaultOptions(dbPath).
		WithCompression(options.ZSTD).
		WithEncryptionKey(encryptionKey).
		WithIndexCacheSize(100 << 20). // 100MB
		WithLogger(newQuietBadgerLogger())
	db, err := badger.Open(opts)
	if err != nil {
		return nil, commonerrors.Unavailable(err)
	}

	logger.Info("Connected to BadgerDB successfully!", "path", dbPath)

	return &BadgerKVStore{db: db}, nil
}

// NewInMemoryBadgerKVStore opens a badger instance that lives only in memory.
func NewInMemoryBadgerKVStore() (*BadgerKVStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(newQuietBadgerLogger())
	db, err := badger.Open(opts)
	if err != nil {
		return nil, commonerrors.Unavailable(err)
	}
	return &BadgerKVStore{db: db}, nil
}

// DB exposes the underlying database for backup and restore.
func (b *BadgerKVStore) DB() *badger.DB {
	return b.db
}

// update runs fn in a read-write transaction, retrying on transaction conflicts.
func (b *BadgerKVStore) update(fn func(txn *badger.Txn) error) error {
	err := retry.Do(
		func() error {
			return b.db.Update(fn)
		},
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, badger.ErrConflict)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Retrying badger transaction", "attempt", n+1, "error", err.Error())
		}),
	)
	return commonerrors.Unavailable(err)
}

// Put stores a key-value pair in the BadgerDB.
func (b *BadgerKVStore) Put(key string, value []byte) error {
	return b.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// PutBatch stores all pairs atomically.
func (b *BadgerKVStore) PutBatch(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	return b.update(func(txn *badger.Txn) error {
		for key, value := range entries {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves the value associated with a key from BadgerDB.
func (b *BadgerKVStore) Get(key string) ([]byte, error) {
	var result []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, commonerrors.Unavailable(err)
	}

	return result, nil
}

// Has reports whether key is present.
func (b *BadgerKVStore) Has(key string) (bool, error) {
	_, err := b.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Scan iterates over all keys sharing prefix inside one read transaction.
func (b *BadgerKVStore) Scan(prefix string, fn ScanFunc) error {
	var cbErr error
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				if err := fn(key, val); err != nil {
					cbErr = err
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if cbErr != nil {
		return cbErr
	}
	return commonerrors.Unavailable(err)
}

// Delete removes a key-value pair from BadgerDB.
func (b *BadgerKVStore) Delete(key string) error {
	return b.update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the BadgerDB.
func (b *BadgerKVStore) Close() error {
	return b.db.Close()
}
