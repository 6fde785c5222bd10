package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"edu-etl/pkg/domain"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("document not found")

// Filter selects documents. Supported shapes are equality on a (dotted) field
// and {"field": {"$in": [...]}}; an empty or nil filter matches everything.
type Filter map[string]any

// Store is the document-store surface the pipeline tasks depend on.
// Tasks receive it explicitly so tests can substitute the in-memory store.
type Store interface {
	Drop(ctx context.Context, coll string) error
	InsertOne(ctx context.Context, coll string, doc domain.Record) error
	InsertMany(ctx context.Context, coll string, docs []domain.Record) error
	Find(ctx context.Context, coll string, filter Filter) ([]domain.Record, error)
	FindOne(ctx context.Context, coll string, filter Filter) (domain.Record, error)
	Count(ctx context.Context, coll string, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, coll string, filter Filter) (int64, error)
	CreateIndex(ctx context.Context, coll string, keys []string, unique bool) (string, error)
	Close(ctx context.Context) error
}

// Opener hands out a fresh Store handle; the runner calls it once per task invocation.
type Opener func(ctx context.Context) (Store, error)

// DBProvider is implemented by clients exposing a database/sql handle.
type DBProvider interface {
	DB() *sql.DB
}

// IndexName mirrors MongoDB's default naming for ascending indexes ("date_1_indicator.id_1").
func IndexName(keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"_1")
	}
	return strings.Join(parts, "_")
}
