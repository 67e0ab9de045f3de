// Package storage provides the blob key-value stores the meter persists its snapshot and
// history into. Every backend stores opaque bytes under a short key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var ErrNotFound = errors.New("storage: key not found")

// Store is a blob key-value store. Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Kind names a backend
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
)

// Kinds lists every supported backend
var Kinds = []Kind{KindMemory, KindFile, KindSQLite, KindPostgres, KindRedis}

// Supported reports whether kind names a backend
func Supported(kind string) bool {
	for _, k := range Kinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// Open connects the backend of the given kind. The dsn is a directory for the file store,
// a database path for sqlite, a connection url for postgres and an address or url for redis.
func Open(ctx context.Context, kind Kind, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch kind {
	case KindMemory:
		s = NewMemory()
	case KindFile:
		s, err = NewFile(dsn)
	case KindSQLite:
		s, err = OpenSQLite(ctx, dsn)
	case KindPostgres:
		s, err = OpenPostgres(ctx, dsn)
	case KindRedis:
		s, err = OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", kind, err)
	}
	log.Printf("[storage] using %s store", kind)
	return s, nil
}
