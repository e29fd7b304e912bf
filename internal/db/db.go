package db

import (
	"context"
	"time"
)

// Store is the key-value database facade.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpKind selects the write performed by an Op.
type OpKind int

// Write kinds.
const (
	OpPut OpKind = iota
	OpDelete
)

// Op is one write of an atomic Exec.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Put creates a write op.
func Put(key string, value []byte) Op { return Op{Kind: OpPut, Key: key, Value: value} }

// Delete creates a delete op.
func Delete(key string) Op { return Op{Kind: OpDelete, Key: key} }

// KVStore provides key-value reads and atomic batched writes.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// MGet returns one value per key, nil for missing keys.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	// Exec applies ops atomically (MULTI/EXEC).
	Exec(ctx context.Context, ops []Op) error
}
