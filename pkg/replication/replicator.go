package replication

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/logger"
	"edu-etl/pkg/tasks"
)

// KeyFunc derives the replica primary key of a processed document.
type KeyFunc func(domain.Record) (string, error)

// Config wires the replication dependencies.
type Config struct {
	Postgres db.DBProvider

	// Keys maps each replicated collection to its key function.
	// Nil means DefaultKeys().
	Keys map[string]KeyFunc
}

// DefaultKeys keys every processed collection by the same fields it is deduped on.
func DefaultKeys() map[string]KeyFunc {
	return map[string]KeyFunc{
		domain.ProcCountry: func(r domain.Record) (string, error) { return r.String("id") },
		domain.ProcUniversities: func(r domain.Record) (string, error) {
			return tasks.UniversityKey(r)
		},
		domain.ProcIndicator: func(r domain.Record) (string, error) {
			k, err := tasks.IndicatorObservationKey(r)
			if err != nil {
				return "", err
			}
			return k.Date + "|" + k.ID, nil
		},
	}
}

// Replicator mirrors the processed collections into a Postgres JSONB table.
//
// Each collection is replaced wholesale inside one transaction, so readers of
// the replica see either the previous load or the new one.
type Replicator struct {
	pg   db.DBProvider
	keys map[string]KeyFunc
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	keys := cfg.Keys
	if keys == nil {
		keys = DefaultKeys()
	}
	return &Replicator{
		pg:   cfg.Postgres,
		keys: keys,
	}, nil
}

type row struct {
	key  string
	body string
}

// Replicate copies every processed collection from the store into Postgres.
func (r *Replicator) Replicate(ctx context.Context, s db.Store) (domain.ReplicationResult, error) {
	log := logger.Named("replication")
	res := domain.ReplicationResult{Rows: make(map[string]int, len(domain.ProcessedCollections))}

	if err := r.ensureSchema(ctx); err != nil {
		return res, err
	}

	for _, coll := range domain.ProcessedCollections {
		key, ok := r.keys[coll]
		if !ok {
			continue
		}
		docs, err := s.Find(ctx, coll, nil)
		if err != nil {
			return res, err
		}
		rows, err := buildRows(coll, docs, key)
		if err != nil {
			return res, err
		}
		if err := r.replaceCollectionTx(ctx, coll, rows); err != nil {
			return res, err
		}
		res.Rows[coll] = len(rows)
		log.Info().Str("collection", coll).Int("rows", len(rows)).Msg("collection replicated")
	}
	return res, nil
}

// buildRows renders each document as relaxed extended JSON under its key.
// A later document with an already-seen key replaces the earlier one.
func buildRows(coll string, docs []domain.Record, key KeyFunc) ([]row, error) {
	rows := make([]row, 0, len(docs))
	index := make(map[string]int, len(docs))
	for i, d := range docs {
		k, err := key(d)
		if err != nil {
			return nil, fmt.Errorf("key for %s document %d: %w", coll, i, err)
		}
		body, err := bson.MarshalExtJSON(bson.M(d), false, false)
		if err != nil {
			return nil, fmt.Errorf("encode %s document %q: %w", coll, k, err)
		}
		if at, dup := index[k]; dup {
			rows[at].body = string(body)
			continue
		}
		index[k] = len(rows)
		rows = append(rows, row{key: k, body: string(body)})
	}
	return rows, nil
}

func (r *Replicator) ensureSchema(ctx context.Context) error {
	if r.pg.DB() == nil {
		return fmt.Errorf("postgres DB not connected")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS processed_document (
  collection TEXT NOT NULL,
  doc_key TEXT NOT NULL,
  body JSONB NOT NULL,
  loaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, doc_key)
);`

	if _, err := r.pg.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create processed_document table: %w", err)
	}
	return nil
}

// replaceCollectionTx deletes the collection's rows and inserts the new ones in one transaction.
func (r *Replicator) replaceCollectionTx(ctx context.Context, coll string, rows []row) error {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processed_document WHERE collection = $1`, coll); err != nil {
		return fmt.Errorf("clear %s: %w", coll, err)
	}

	if err := r.executeBatchInsert(ctx, tx, coll, rows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// executeBatchInsert executes the insert statements for one collection.
func (r *Replicator) executeBatchInsert(ctx context.Context, tx *sql.Tx, coll string, rows []row) error {
	if len(rows) == 0 {
		return nil
	}
	const insertQuery = `
INSERT INTO processed_document (collection, doc_key, body, loaded_at)
VALUES ($1, $2, $3::jsonb, now())`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rw := range rows {
		if _, err := stmt.ExecContext(ctx, coll, rw.key, rw.body); err != nil {
			return fmt.Errorf("insert %s key=%q: %w", coll, rw.key, err)
		}
	}

	return nil
}
