package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/meta-node-blockchain/benor/pkg/logger"
)

type LevelDB struct {
	db     *leveldb.DB
	closed bool
	path   string
	backup string
	mu     sync.RWMutex
}

func NewLevelDB(path string) (*LevelDB, error) {
	if path == "" {
		return nil, fmt.Errorf("invalid path: path is empty")
	}
	db, err := leveldb.OpenFile(path, levelOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB at %s: %w", path, err)
	}
	return &LevelDB{db: db, path: path}, nil
}

func levelOptions() *opt.Options {
	return &opt.Options{
		BlockCacheCapacity: 8 * opt.MiB,
	}
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return nil, ErrClosed
	}
	v, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("[LevelDB] %w", ErrNotFound)
	}
	return v, err
}

func (ldb *LevelDB) Put(key, value []byte) error {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return ErrClosed
	}
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Has(key []byte) bool {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return false
	}
	has, _ := ldb.db.Has(key, nil)
	return has
}

func (ldb *LevelDB) Delete(key []byte) error {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return ErrClosed
	}
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) BatchPut(kvs [][2][]byte) error {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return ErrClosed
	}
	batch := new(leveldb.Batch)
	for i := range kvs {
		batch.Put(kvs[i][0], kvs[i][1])
	}
	return ldb.db.Write(batch, nil)
}

func (ldb *LevelDB) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	if ldb.closed {
		return ErrClosed
	}
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		// the iterator reuses its buffers between calls
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (ldb *LevelDB) Open() error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()
	if !ldb.closed {
		return nil
	}
	db, err := leveldb.OpenFile(ldb.path, levelOptions())
	if err != nil {
		return err
	}
	ldb.db = db
	ldb.closed = false
	return nil
}

func (ldb *LevelDB) Close() error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()
	if ldb.closed {
		return nil
	}
	ldb.closed = true
	if err := ldb.db.Close(); err != nil {
		logger.Error("Failed to close LevelDB at path %s: %v", ldb.path, err)
		return err
	}
	return nil
}

func (ldb *LevelDB) GetBackupPath() string {
	ldb.mu.RLock()
	defer ldb.mu.RUnlock()
	return ldb.backup
}

// Backup copies a consistent snapshot into a fresh LevelDB at dst.
func (ldb *LevelDB) Backup(dst string) error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()
	if ldb.closed {
		return ErrClosed
	}
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("leveldb snapshot: %w", err)
	}
	defer snap.Release()

	out, err := leveldb.OpenFile(dst, levelOptions())
	if err != nil {
		return fmt.Errorf("open backup %s: %w", dst, err)
	}
	defer out.Close()

	iter := snap.NewIterator(nil, nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Put(iter.Key(), iter.Value())
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if err := out.Write(batch, nil); err != nil {
		return fmt.Errorf("write backup %s: %w", dst, err)
	}
	ldb.backup = dst
	return nil
}
