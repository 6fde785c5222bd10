package tasks

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"edu-etl/pkg/dag"
	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/httpclient"
)

type fakeReplicator struct{ calls int }

func (f *fakeReplicator) Replicate(ctx context.Context, s db.Store) (domain.ReplicationResult, error) {
	f.calls++
	return domain.ReplicationResult{Rows: map[string]int{}}, nil
}

func TestDefaultSpec_Shape(t *testing.T) {
	g, err := dag.Build(DefaultSpec(false))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := [][]string{
		{IngestCountryTask, IngestUniversitiesTask, IngestIndicatorTask},
		{TransformCountryTask, TransformUniversitiesTask, TransformIndicatorTask},
		{LoadTask},
	}
	if got := g.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	withRepl, err := dag.Build(DefaultSpec(true))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if levels := withRepl.Levels(); len(levels) != 4 || levels[3][0] != ReplicateTask {
		t.Errorf("Expected replicate after load, got %v", levels)
	}
}

func TestRegistry_ReplicateOptional(t *testing.T) {
	if _, ok := Registry(Deps{})[ReplicateTask]; ok {
		t.Errorf("replicate must not be registered without a replicator")
	}
	if _, ok := Registry(Deps{Replicator: &fakeReplicator{}})[ReplicateTask]; !ok {
		t.Errorf("replicate must be registered when a replicator is set")
	}
}

func runPipeline(t *testing.T, ctx context.Context, d Deps, s *db.MemoryStore) dag.RunReport {
	t.Helper()
	g, err := dag.Build(DefaultSpec(d.Replicator != nil))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r, err := dag.NewRunner(g, Registry(d), s.Opener(), dag.Options{MaxParallel: 3})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	rep, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return rep
}

func snapshot(t *testing.T, ctx context.Context, s db.Store) map[string][]domain.Record {
	t.Helper()
	out := map[string][]domain.Record{}
	for _, c := range domain.ProcessedCollections {
		docs, err := s.Find(ctx, c, nil)
		if err != nil {
			t.Fatalf("Find %s: %v", c, err)
		}
		out[c] = docs
	}
	return out
}

func TestPipeline_EndToEnd_Idempotent(t *testing.T) {
	ctx := context.Background()
	server := apiServer(t, nil)
	repl := &fakeReplicator{}
	d := Deps{
		HTTP:       httpclient.NewClient(httpclient.JSONClient, 2*time.Second),
		Sources:    sourceSettings(server),
		Replicator: repl,
	}
	s := db.NewMemoryStore()

	first := runPipeline(t, ctx, d, s)
	if len(first.Tasks) != 8 {
		t.Fatalf("Expected 8 task reports, got %d", len(first.Tasks))
	}
	var load domain.LoadResult
	for _, tr := range first.Tasks {
		if tr.Task == LoadTask {
			load = tr.Result.(domain.LoadResult)
		}
	}
	want := map[string]int64{
		domain.ProcCountry:      1,
		domain.ProcUniversities: 3, // ITESM twice, one blank, one nameless
		domain.ProcIndicator:    3, // 2014 null value, 2015 duplicate
	}
	if !reflect.DeepEqual(load.Counts, want) {
		t.Errorf("Expected counts %v, got %v", want, load.Counts)
	}
	before := snapshot(t, ctx, s)

	runPipeline(t, ctx, d, s)
	after := snapshot(t, ctx, s)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("second run changed processed collections")
	}
	if repl.calls != 2 {
		t.Errorf("Expected replicate once per run, got %d", repl.calls)
	}
}

func TestPipeline_IngestFailureSkipsDownstream(t *testing.T) {
	ctx := context.Background()
	server := apiServer(t, map[string]string{"/search": "500"})
	d := Deps{
		HTTP:    httpclient.NewClient(httpclient.JSONClient, 2*time.Second),
		Sources: sourceSettings(server),
	}
	s := db.NewMemoryStore()

	g, _ := dag.Build(DefaultSpec(false))
	r, err := dag.NewRunner(g, Registry(d), s.Opener(), dag.Options{Retries: 1, RetryDelay: time.Millisecond, MaxParallel: 1})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	rep, err := r.Run(ctx)
	if !errors.Is(err, httpclient.ErrStatus) {
		t.Fatalf("Expected ErrStatus from the run, got %v", err)
	}

	status := map[string]domain.TaskReport{}
	for _, tr := range rep.Tasks {
		status[tr.Task] = tr
	}
	if st := status[IngestUniversitiesTask]; st.Status != domain.StatusFailed || st.Attempts != 2 {
		t.Errorf("Expected failed ingest after 2 attempts, got %+v", st)
	}
	if status[TransformUniversitiesTask].Status != domain.StatusUpstreamFailed {
		t.Errorf("Expected transform to be upstream_failed")
	}
	if status[LoadTask].Status != domain.StatusUpstreamFailed {
		t.Errorf("Expected load to be upstream_failed")
	}
	if status[TransformIndicatorTask].Status != domain.StatusSuccess {
		t.Errorf("Independent branches must still run")
	}
}
