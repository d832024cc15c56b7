package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	out := map[string]Storage{}
	for _, typ := range []string{STORAGE_TYPE_MEMORY_DB, STORAGE_TYPE_LEVEL_DB, STORAGE_TYPE_BADGER_DB} {
		db, err := LoadDb(typ, filepath.Join(t.TempDir(), typ))
		require.NoError(t, err, typ)
		t.Cleanup(func() { _ = db.Close() })
		out[typ] = db
	}
	return out
}

func TestPutGetDelete(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("a"), []byte("1")))
			v, err := db.Get([]byte("a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)
			assert.True(t, db.Has([]byte("a")))

			_, err = db.Get([]byte("missing"))
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, db.Has([]byte("missing")))

			require.NoError(t, db.Delete([]byte("a")))
			assert.False(t, db.Has([]byte("a")))
		})
	}
}

func TestBatchPutAndIteratePrefix(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var kvs [][2][]byte
			for i := 0; i < 5; i++ {
				kvs = append(kvs, [2][]byte{[]byte(fmt.Sprintf("node/1/%03d", i)), []byte{byte(i)}})
			}
			kvs = append(kvs, [2][]byte{[]byte("node/2/000"), []byte{9}})
			require.NoError(t, db.BatchPut(kvs))

			var keys []string
			var values []byte
			err := db.IteratePrefix([]byte("node/1/"), func(k, v []byte) error {
				keys = append(keys, string(k))
				values = append(values, v...)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"node/1/000", "node/1/001", "node/1/002", "node/1/003", "node/1/004"}, keys)
			assert.Equal(t, []byte{0, 1, 2, 3, 4}, values)

			stop := errors.New("stop")
			seen := 0
			err = db.IteratePrefix([]byte("node/"), func(k, v []byte) error {
				seen++
				return stop
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 1, seen)
		})
	}
}

func TestClosedDatabase(t *testing.T) {
	for _, typ := range []string{STORAGE_TYPE_LEVEL_DB, STORAGE_TYPE_BADGER_DB} {
		t.Run(typ, func(t *testing.T) {
			db, err := LoadDb(typ, filepath.Join(t.TempDir(), typ))
			require.NoError(t, err)
			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			require.NoError(t, db.Close())
			require.NoError(t, db.Close())

			assert.ErrorIs(t, db.Put([]byte("k"), []byte("v")), ErrClosed)
			_, err = db.Get([]byte("k"))
			assert.ErrorIs(t, err, ErrClosed)

			require.NoError(t, db.Open())
			v, err := db.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
			require.NoError(t, db.Close())
		})
	}
}

func TestBackup(t *testing.T) {
	for _, typ := range []string{STORAGE_TYPE_LEVEL_DB, STORAGE_TYPE_BADGER_DB} {
		t.Run(typ, func(t *testing.T) {
			dir := t.TempDir()
			db, err := LoadDb(typ, filepath.Join(dir, "live"))
			require.NoError(t, err)
			defer db.Close()
			require.NoError(t, db.Put([]byte("journal/1"), []byte("x")))

			dst := filepath.Join(dir, "backup")
			require.NoError(t, db.Backup(dst))
			assert.Equal(t, dst, db.GetBackupPath())

			copied, err := LoadDb(typ, dst)
			require.NoError(t, err)
			defer copied.Close()
			v, err := copied.Get([]byte("journal/1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("x"), v)
		})
	}
}

func TestMemoryBackupUnsupported(t *testing.T) {
	db := NewMemoryDb()
	assert.ErrorIs(t, db.Backup(t.TempDir()), ErrBackupUnsupported)
	assert.Empty(t, db.GetBackupPath())
}

func TestMemoryValuesAreCopied(t *testing.T) {
	db := NewMemoryDb()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	assert.Equal(t, 1, db.Size())
}

func TestLoadDbUnknownType(t *testing.T) {
	_, err := LoadDb("rocks", t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownType)
}
