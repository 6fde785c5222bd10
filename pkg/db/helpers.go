package db

import (
	"context"
	"fmt"
	"sort"

	"edu-etl/pkg/logger"
)

// CleanCollection deletes every document whose field matches one of the listed
// values, one $in delete per field. It returns the total removed.
func CleanCollection(ctx context.Context, s Store, coll string, byField map[string][]any) (int64, error) {
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var total int64
	for _, f := range fields {
		values := byField[f]
		if len(values) == 0 {
			continue
		}
		n, err := s.DeleteMany(ctx, coll, Filter{f: map[string]any{"$in": values}})
		if err != nil {
			return total, fmt.Errorf("clean %s by %s: %w", coll, f, err)
		}
		total += n
	}
	logger.Named("db").Info().Str("collection", coll).Int64("deleted", total).Msg("collection cleaned")
	return total, nil
}

// CreateIndexIfMissing creates an ascending index over keys. Re-running it with
// the same keys and options is harmless.
func CreateIndexIfMissing(ctx context.Context, s Store, coll string, keys []string, unique bool) (string, error) {
	name, err := s.CreateIndex(ctx, coll, keys, unique)
	if err != nil {
		return "", err
	}
	logger.Named("db").Debug().Str("collection", coll).Str("index", name).Msg("index ensured")
	return name, nil
}
