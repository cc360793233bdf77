package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the ledger to use any database backend (in-memory or persistent)
// while sharing the same handle with the state trie.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// TrieDB returns the trie node database layered on top of the store.
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

// kvStore adapts a go-ethereum key-value database to the Database interface.
type kvStore struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func newKVStore(disk ethdb.Database) *kvStore {
	return &kvStore{
		disk:   disk,
		trieDB: triedb.NewDatabase(disk, triedb.HashDefaults),
	}
}

func (s *kvStore) Put(key []byte, value []byte) error {
	return s.disk.Put(key, value)
}

func (s *kvStore) Get(key []byte) ([]byte, error) {
	ok, err := s.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.disk.Get(key)
}

func (s *kvStore) Has(key []byte) (bool, error) {
	return s.disk.Has(key)
}

func (s *kvStore) TrieDB() *triedb.Database {
	return s.trieDB
}

func (s *kvStore) Close() {
	_ = s.trieDB.Close()
	_ = s.disk.Close()
}

// --- In-Memory DB (for testing) ---

// MemDB keeps all data in process memory.
type MemDB struct {
	*kvStore
}

func NewMemDB() *MemDB {
	return &MemDB{kvStore: newKVStore(rawdb.NewDatabase(memorydb.New()))}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	*kvStore
}

// LevelDBOptions tunes the underlying goleveldb instance.
type LevelDBOptions struct {
	CacheMB int
	Handles int
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return NewLevelDBWithOptions(path, LevelDBOptions{})
}

// NewLevelDBWithOptions opens a LevelDB database applying the supplied cache
// and file handle limits. Zero values keep the goleveldb defaults.
func NewLevelDBWithOptions(path string, opts LevelDBOptions) (*LevelDB, error) {
	db, err := ethleveldb.NewCustom(path, "mpachain/db/", func(o *opt.Options) {
		if opts.CacheMB > 0 {
			o.BlockCacheCapacity = opts.CacheMB / 2 * opt.MiB
			o.WriteBuffer = opts.CacheMB / 4 * opt.MiB
		}
		if opts.Handles > 0 {
			o.OpenFilesCacheCapacity = opts.Handles
		}
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvStore: newKVStore(rawdb.NewDatabase(db))}, nil
}
