package tasks

import (
	"context"

	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/logger"
)

// IndexPlan lists the ascending indexes the dashboard queries rely on.
var IndexPlan = []struct {
	Collection string
	Keys       []string
}{
	{domain.ProcUniversities, []string{"name"}},
	{domain.ProcIndicator, []string{"date", "indicator.id"}},
}

// Load ensures indexes on the processed collections and reports their sizes.
// It never modifies documents.
func Load(ctx context.Context, s db.Store) (domain.LoadResult, error) {
	log := logger.Named("load")
	res := domain.LoadResult{Counts: make(map[string]int64, len(domain.ProcessedCollections))}

	for _, p := range IndexPlan {
		if _, err := db.CreateIndexIfMissing(ctx, s, p.Collection, p.Keys, false); err != nil {
			return res, err
		}
	}
	for _, coll := range domain.ProcessedCollections {
		n, err := s.Count(ctx, coll, nil)
		if err != nil {
			return res, err
		}
		res.Counts[coll] = n
		log.Info().Str("collection", coll).Int64("documents", n).Msg("collection loaded")
	}
	return res, nil
}
