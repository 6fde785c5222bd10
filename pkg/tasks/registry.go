package tasks

import (
	"context"

	"edu-etl/pkg/config"
	"edu-etl/pkg/dag"
	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/sources"
)

// Task names as they appear in the DAG and on the command line.
const (
	IngestCountryTask         = "ingest_country"
	IngestUniversitiesTask    = "ingest_universities"
	IngestIndicatorTask       = "ingest_indicator"
	TransformCountryTask      = "transform_country"
	TransformUniversitiesTask = "transform_universities"
	TransformIndicatorTask    = "transform_indicator"
	LoadTask                  = "load"
	ReplicateTask             = "replicate"
)

// Replicator copies the processed collections somewhere else after load.
type Replicator interface {
	Replicate(ctx context.Context, s db.Store) (domain.ReplicationResult, error)
}

// Deps is everything the task bodies need besides the store.
type Deps struct {
	HTTP       sources.JSONGetter
	Sources    config.SourceSettings
	Replicator Replicator // optional
}

// DefaultSpec is the pipeline graph: three independent ingests, one transform
// per ingest, load after all transforms and, when enabled, replication after load.
func DefaultSpec(withReplicate bool) dag.Spec {
	spec := dag.Spec{Tasks: []dag.TaskSpec{
		{Name: IngestCountryTask},
		{Name: IngestUniversitiesTask},
		{Name: IngestIndicatorTask},
		{Name: TransformCountryTask, DependsOn: []string{IngestCountryTask}},
		{Name: TransformUniversitiesTask, DependsOn: []string{IngestUniversitiesTask}},
		{Name: TransformIndicatorTask, DependsOn: []string{IngestIndicatorTask}},
		{Name: LoadTask, DependsOn: []string{TransformCountryTask, TransformUniversitiesTask, TransformIndicatorTask}},
	}}
	if withReplicate {
		spec.Tasks = append(spec.Tasks, dag.TaskSpec{Name: ReplicateTask, DependsOn: []string{LoadTask}})
	}
	return spec
}

// Registry binds task names to bodies. The replicate task is registered only
// when a Replicator is configured.
func Registry(d Deps) map[string]dag.TaskFunc {
	ing := NewIngester(d.HTTP, d.Sources)
	reg := map[string]dag.TaskFunc{
		IngestCountryTask:         wrap(ing.Country),
		IngestUniversitiesTask:    wrap(ing.Universities),
		IngestIndicatorTask:       wrap(ing.Indicator),
		TransformCountryTask:      wrap(TransformCountry),
		TransformUniversitiesTask: wrap(TransformUniversities),
		TransformIndicatorTask:    wrap(TransformIndicator),
		LoadTask:                  wrap(Load),
	}
	if d.Replicator != nil {
		reg[ReplicateTask] = wrap(d.Replicator.Replicate)
	}
	return reg
}

func wrap[R any](fn func(context.Context, db.Store) (R, error)) dag.TaskFunc {
	return func(ctx context.Context, s db.Store) (any, error) {
		res, err := fn(ctx, s)
		return res, err
	}
}
