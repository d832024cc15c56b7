// Package storage provides the key/value backends the node journal is kept in.
package storage

import (
	"errors"
	"fmt"
)

const (
	STORAGE_TYPE_LEVEL_DB  = "level"
	STORAGE_TYPE_BADGER_DB = "badger"
	STORAGE_TYPE_MEMORY_DB = "memory"
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrClosed            = errors.New("database is closed")
	ErrBackupUnsupported = errors.New("backend has no on-disk state to back up")
	ErrUnknownType       = errors.New("unknown storage type")
)

type Storage interface {
	Get([]byte) ([]byte, error)
	Put([]byte, []byte) error
	Has([]byte) bool
	Delete([]byte) error
	BatchPut([][2][]byte) error
	// IteratePrefix calls fn for every key starting with prefix, in key order.
	// Returning an error from fn stops the walk.
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error
	Close() error
	Open() error
	GetBackupPath() string
	// Backup copies the current contents to dst.
	Backup(dst string) error
}

// LoadDb opens a backend of the given type. path is ignored for memory.
func LoadDb(dbType string, path string) (Storage, error) {
	switch dbType {
	case STORAGE_TYPE_MEMORY_DB, "":
		return NewMemoryDb(), nil
	case STORAGE_TYPE_LEVEL_DB:
		return NewLevelDB(path)
	case STORAGE_TYPE_BADGER_DB:
		return NewBadgerDB(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, dbType)
	}
}
