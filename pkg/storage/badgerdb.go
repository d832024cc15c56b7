package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	cp "github.com/otiai10/copy"

	"github.com/meta-node-blockchain/benor/pkg/logger"
)

type BadgerDB struct {
	db     *badger.DB
	closed bool
	path   string
	backup string
	mu     sync.RWMutex
}

func badgerOptions(path string) badger.Options {
	return badger.DefaultOptions(path).WithLogger(nil)
}

func NewBadgerDB(path string) (*BadgerDB, error) {
	if path == "" {
		return nil, fmt.Errorf("invalid path: path is empty")
	}
	db, err := badger.Open(badgerOptions(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerDB{db: db, path: path}, nil
}

func (bdb *BadgerDB) Get(key []byte) ([]byte, error) {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return nil, ErrClosed
	}

	var value []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("[BadgerDB] %w", ErrNotFound)
	}
	return value, err
}

func (bdb *BadgerDB) Put(key, value []byte) error {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return ErrClosed
	}
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDB) Has(key []byte) bool {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return false
	}
	err := bdb.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	return err == nil
}

func (bdb *BadgerDB) Delete(key []byte) error {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return ErrClosed
	}
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDB) BatchPut(kvs [][2][]byte) error {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return ErrClosed
	}
	wb := bdb.db.NewWriteBatch()
	defer wb.Cancel()
	for _, kv := range kvs {
		if err := wb.Set(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (bdb *BadgerDB) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	if bdb.closed {
		return ErrClosed
	}
	return bdb.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bdb *BadgerDB) Open() error {
	bdb.mu.Lock()
	defer bdb.mu.Unlock()
	if !bdb.closed {
		return nil
	}
	db, err := badger.Open(badgerOptions(bdb.path))
	if err != nil {
		return err
	}
	bdb.db = db
	bdb.closed = false
	return nil
}

func (bdb *BadgerDB) Close() error {
	bdb.mu.Lock()
	defer bdb.mu.Unlock()
	if bdb.closed {
		return nil
	}
	bdb.closed = true
	if err := bdb.db.Close(); err != nil {
		logger.Error("Failed to close BadgerDB at path %s: %v", bdb.path, err)
		return err
	}
	return nil
}

func (bdb *BadgerDB) GetBackupPath() string {
	bdb.mu.RLock()
	defer bdb.mu.RUnlock()
	return bdb.backup
}

// Backup syncs the value log and copies the database directory to dst. The
// directory lock file is left behind so the copy can be opened on its own.
func (bdb *BadgerDB) Backup(dst string) error {
	bdb.mu.Lock()
	defer bdb.mu.Unlock()
	if bdb.closed {
		return ErrClosed
	}
	if err := bdb.db.Sync(); err != nil {
		return fmt.Errorf("badger sync: %w", err)
	}
	err := cp.Copy(bdb.path, dst, cp.Options{
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			return filepath.Base(src) == "LOCK", nil
		},
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", bdb.path, dst, err)
	}
	bdb.backup = dst
	return nil
}
