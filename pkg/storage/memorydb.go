package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

type MemoryDB struct {
	db map[string][]byte
	sync.RWMutex
}

func NewMemoryDb() *MemoryDB {
	return &MemoryDB{
		db: make(map[string][]byte),
	}
}

func (kv *MemoryDB) Get(key []byte) ([]byte, error) {
	kv.RLock()
	defer kv.RUnlock()
	if v, ok := kv.db[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, fmt.Errorf("[MemKV] %w: %s", ErrNotFound, hex.EncodeToString(key))
}

func (kv *MemoryDB) Put(key, value []byte) error {
	kv.Lock()
	defer kv.Unlock()
	kv.db[string(key)] = append([]byte(nil), value...)
	return nil
}

func (kv *MemoryDB) Has(key []byte) bool {
	kv.RLock()
	defer kv.RUnlock()
	_, ok := kv.db[string(key)]
	return ok
}

func (kv *MemoryDB) Delete(key []byte) error {
	kv.Lock()
	defer kv.Unlock()
	if _, ok := kv.db[string(key)]; !ok {
		return fmt.Errorf("[MemKV] %w: %s", ErrNotFound, hex.EncodeToString(key))
	}
	delete(kv.db, string(key))
	return nil
}

func (kv *MemoryDB) BatchPut(kvs [][2][]byte) error {
	for i := range kvs {
		if err := kv.Put(kvs[i][0], kvs[i][1]); err != nil {
			return err
		}
	}
	return nil
}

func (kv *MemoryDB) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	kv.RLock()
	keys := make([]string, 0, len(kv.db))
	for k := range kv.db {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = kv.db[k]
	}
	kv.RUnlock()

	// fn runs without the lock so it may write back
	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (kv *MemoryDB) Close() error {
	return nil
}

func (kv *MemoryDB) Open() error {
	return nil
}

func (kv *MemoryDB) GetBackupPath() string {
	return ""
}

func (kv *MemoryDB) Backup(string) error {
	return ErrBackupUnsupported
}

func (kv *MemoryDB) Size() int {
	kv.RLock()
	defer kv.RUnlock()
	return len(kv.db)
}
