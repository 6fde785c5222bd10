package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"edu-etl/pkg/db"
	"edu-etl/pkg/domain"
	"edu-etl/pkg/logger"
)

// TaskFunc is a task body. It gets a store opened for this invocation only.
type TaskFunc func(ctx context.Context, s db.Store) (any, error)

// Options is the uniform task policy applied to every task
type Options struct {
	Retries     int           // extra attempts after the first failure
	RetryDelay  time.Duration // fixed wait between attempts
	MaxParallel int           // task bodies running at once; <= 0 means 1
}

// RunReport is the outcome of one Run.
type RunReport struct {
	RunID    string              `json:"run_id"`
	Started  time.Time           `json:"started"`
	Duration time.Duration       `json:"duration"`
	Tasks    []domain.TaskReport `json:"tasks"`
}

// Failed lists the tasks that did not succeed.
func (r RunReport) Failed() []domain.TaskReport {
	var out []domain.TaskReport
	for _, t := range r.Tasks {
		if t.Status != domain.StatusSuccess {
			out = append(out, t)
		}
	}
	return out
}

// Runner executes a Graph against registered task bodies
type Runner struct {
	graph *Graph
	tasks map[string]TaskFunc
	open  db.Opener
	opts  Options
}

// NewRunner checks that every graph task has a body.
func NewRunner(g *Graph, tasks map[string]TaskFunc, open db.Opener, opts Options) (*Runner, error) {
	for _, name := range g.Names() {
		if _, ok := tasks[name]; !ok {
			return nil, fmt.Errorf("%w: no body registered for %q", ErrUnknownTask, name)
		}
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Runner{graph: g, tasks: tasks, open: open, opts: opts}, nil
}

// Run starts every task as soon as its own dependencies have finished, with at
// most MaxParallel task bodies executing at once. A task runs only when every
// dependency succeeded; otherwise it is reported as upstream_failed. The
// returned error joins every task failure. Tasks are reported in level order.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString(), Started: time.Now()}
	log := logger.Named("dag").With().Str("run_id", report.RunID).Logger()
	log.Info().Int("tasks", len(r.graph.order)).Msg("run started")

	done := make(map[string]chan struct{}, len(r.graph.order))
	for _, name := range r.graph.order {
		done[name] = make(chan struct{})
	}
	slots := make(chan struct{}, r.opts.MaxParallel)

	var mu sync.Mutex
	status := make(map[string]domain.TaskStatus, len(r.graph.order))
	reports := make(map[string]domain.TaskReport, len(r.graph.order))
	var errs []error

	var g errgroup.Group
	for _, name := range r.graph.order {
		g.Go(func() error {
			defer close(done[name])
			for _, d := range r.graph.deps[name] {
				<-done[d]
			}

			mu.Lock()
			failed := r.failedDeps(name, status)
			mu.Unlock()

			var rep domain.TaskReport
			var err error
			switch {
			case len(failed) > 0:
				rep = domain.TaskReport{
					Task:   name,
					Status: domain.StatusUpstreamFailed,
					Err:    fmt.Sprintf("%v: %s", ErrUpstreamFailed, strings.Join(failed, ", ")),
				}
				log.Warn().Str("task", name).Strs("failed_deps", failed).Msg("task skipped")
			default:
				select {
				case slots <- struct{}{}:
					rep, err = r.execute(ctx, report.RunID, name)
					<-slots
				case <-ctx.Done():
					err = ctx.Err()
					rep = domain.TaskReport{Task: name, Status: domain.StatusFailed, Err: err.Error()}
				}
			}

			mu.Lock()
			status[name] = rep.Status
			reports[name] = rep
			if err != nil {
				errs = append(errs, fmt.Errorf("task %s: %w", name, err))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, level := range r.graph.levels {
		for _, name := range level {
			report.Tasks = append(report.Tasks, reports[name])
		}
	}
	report.Duration = time.Since(report.Started)
	failed := len(report.Failed())
	log.Info().Dur("duration", report.Duration).Int("failed", failed).Msg("run finished")
	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}

// RunTask executes a single task with the retry policy, ignoring dependencies.
func (r *Runner) RunTask(ctx context.Context, name string) (domain.TaskReport, error) {
	if !r.graph.Has(name) {
		return domain.TaskReport{Task: name, Status: domain.StatusFailed}, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return r.execute(ctx, uuid.NewString(), name)
}

func (r *Runner) failedDeps(name string, status map[string]domain.TaskStatus) []string {
	var failed []string
	for _, d := range r.graph.deps[name] {
		if status[d] != domain.StatusSuccess {
			failed = append(failed, d)
		}
	}
	return failed
}

func (r *Runner) execute(ctx context.Context, runID, name string) (domain.TaskReport, error) {
	log := logger.Named("dag").With().Str("run_id", runID).Str("task", name).Logger()
	rep := domain.TaskReport{Task: name}
	start := time.Now()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.RetryDelay), uint64(r.opts.Retries)),
		ctx,
	)
	op := func() error {
		rep.Attempts++
		res, err := r.invoke(ctx, name)
		if err != nil {
			return err
		}
		rep.Result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", rep.Attempts).Dur("retry_in", wait).Msg("task failed; retrying")
	}

	err := backoff.RetryNotify(op, policy, notify)
	rep.Duration = time.Since(start)
	if err != nil {
		rep.Status = domain.StatusFailed
		rep.Err = err.Error()
		log.Error().Err(err).Int("attempts", rep.Attempts).Dur("duration", rep.Duration).Msg("task failed")
		return rep, err
	}
	rep.Status = domain.StatusSuccess
	log.Info().Int("attempts", rep.Attempts).Dur("duration", rep.Duration).Interface("result", rep.Result).Msg("task succeeded")
	return rep, nil
}

// invoke opens a store for one attempt and always closes it.
func (r *Runner) invoke(ctx context.Context, name string) (res any, err error) {
	s, err := r.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return r.tasks[name](ctx, s)
}
