// Package scheduler executes tasks of the dependency graph in topological layers.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Options configures a single run.
type Options struct {
	// Targets are the requested task names. Empty or "all" selects every task.
	Targets []string
	// Exact runs exactly the targets without adding their dependencies.
	Exact bool
	// Mode is recorded on the report.
	Mode domain.Mode
	// Parallelism bounds the number of tasks running at once inside a layer.
	// Zero or less means runtime.NumCPU().
	Parallelism int
	// Force treats every source file as dirty.
	Force bool
}

// Scheduler manages the execution of tasks in the dependency graph.
type Scheduler struct {
	resolver ports.SourceResolver
	writer   ports.OutputWriter
	factory  ports.TransformFactory
	tracker  ports.StalenessTracker
	tracer   ports.Tracer
	notifier ports.ReloadNotifier
	logger   ports.Logger
}

// NewScheduler creates a new Scheduler with the given dependencies.
// notifier may be nil.
func NewScheduler(
	resolver ports.SourceResolver,
	writer ports.OutputWriter,
	factory ports.TransformFactory,
	tracker ports.StalenessTracker,
	tracer ports.Tracer,
	notifier ports.ReloadNotifier,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		resolver: resolver,
		writer:   writer,
		factory:  factory,
		tracker:  tracker,
		tracer:   tracer,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes the selected tasks layer by layer and returns the aggregate report.
//
// Configuration problems (cycles, missing dependencies, unknown targets or transforms)
// are returned before any task executes. Task failures never abort the run; they are
// recorded on the report and dependents are skipped. When ctx is cancelled no further
// layer starts, the remaining tasks are skipped and ctx.Err() is returned with the report.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, opts Options) (*domain.Report, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	state, err := s.newRunState(graph, opts)
	if err != nil {
		return nil, err
	}

	s.tracer.EmitPlan(ctx, state.planned, state.deps, opts.Targets)

	report := &domain.Report{
		RunID:     domain.NewRunID(),
		Mode:      opts.Mode,
		StartedAt: time.Now(),
	}

	runErr := state.runLayers(ctx)
	report.Results = state.ordered()
	report.FinishedAt = time.Now()

	s.notify(ctx, report.ChangedOutputs())

	return report, runErr
}

// notify delivers the union of changed outputs once. Failures are logged only.
func (s *Scheduler) notify(ctx context.Context, changed []domain.FileRecord) {
	if s.notifier == nil || len(changed) == 0 {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), changed); err != nil {
		s.logger.Error(zerr.With(zerr.Wrap(err, domain.ErrNotifierFailed.Error()), "outputs", len(changed)))
	}
}

type schedulerRunState struct {
	s           *Scheduler
	graph       *domain.Graph
	layers      [][]string
	chains      map[string][]ports.Transform
	aggregating map[string]bool
	planned     []string
	deps        map[string][]string
	results     map[string]domain.TaskResult
	parallelism int
	force       bool
}

func (s *Scheduler) newRunState(graph *domain.Graph, opts Options) (*schedulerRunState, error) {
	run, err := s.resolveTasksToRun(graph, opts)
	if err != nil {
		return nil, err
	}

	chains, err := s.compileChains(graph, run)
	if err != nil {
		return nil, err
	}

	aggregating := make(map[string]bool, len(chains))
	for name, chain := range chains {
		aggregating[name] = ports.Aggregates(chain)
	}

	layers, err := graph.Layers(run)
	if err != nil {
		return nil, err
	}

	planned := make([]string, 0, len(run))
	deps := make(map[string][]string, len(run))
	for task := range graph.Walk() {
		if _, ok := run[task.Name]; !ok {
			continue
		}
		planned = append(planned, task.Name)
		deps[task.Name] = slices.Clone(task.Dependencies)
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	return &schedulerRunState{
		s:           s,
		graph:       graph,
		layers:      layers,
		chains:      chains,
		aggregating: aggregating,
		planned:     planned,
		deps:        deps,
		results:     make(map[string]domain.TaskResult, len(run)),
		parallelism: parallelism,
		force:       opts.Force,
	}, nil
}

func (s *Scheduler) resolveTasksToRun(graph *domain.Graph, opts Options) (map[string]struct{}, error) {
	if !opts.Exact {
		return graph.Closure(opts.Targets)
	}
	run := make(map[string]struct{}, len(opts.Targets))
	for _, name := range opts.Targets {
		if _, ok := graph.GetTask(name); !ok {
			return nil, zerr.With(domain.ErrTaskNotFound, "task_name", name)
		}
		run[name] = struct{}{}
	}
	return run, nil
}

// compileChains builds every transform of the run up front so that configuration
// errors surface before any task executes.
func (s *Scheduler) compileChains(graph *domain.Graph, run map[string]struct{}) (map[string][]ports.Transform, error) {
	chains := make(map[string][]ports.Transform, len(run))
	for name := range run {
		task, _ := graph.GetTask(name)
		chain := make([]ports.Transform, 0, len(task.Chain))
		for i, spec := range task.Chain {
			t, err := s.factory.New(spec)
			if err != nil {
				return nil, zerr.With(zerr.With(err, "task", name), "step", i)
			}
			chain = append(chain, t)
		}
		chains[name] = chain
	}
	return chains, nil
}

func (state *schedulerRunState) runLayers(ctx context.Context) error {
	for i, layer := range state.layers {
		if err := ctx.Err(); err != nil {
			state.cancelRemaining(i)
			return err
		}
		state.runLayer(ctx, layer)
	}
	return nil
}

// runLayer executes one layer and returns once every task in it is terminal.
// In-flight tasks are detached from cancellation of ctx.
func (state *schedulerRunState) runLayer(ctx context.Context, layer []string) {
	taskCtx := context.WithoutCancel(ctx)
	results := make([]domain.TaskResult, len(layer))

	var g errgroup.Group
	g.SetLimit(state.parallelism)

	for i, name := range layer {
		task, _ := state.graph.GetTask(name)
		if state.blocked(&task) {
			results[i] = domain.TaskResult{
				Task:   name,
				Status: domain.StatusSkipped,
				Reason: domain.ReasonUpstreamFailure,
				Err:    zerr.With(domain.ErrUpstreamFailure, "task", name),
			}
			continue
		}
		g.Go(func() error {
			results[i] = state.executeTask(taskCtx, &task)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		state.results[res.Task] = res
	}
}

// blocked reports whether a dependency of task inside this run failed or was itself blocked.
func (state *schedulerRunState) blocked(task *domain.Task) bool {
	for _, dep := range task.Dependencies {
		if res, ok := state.results[dep]; ok && res.Blocking() {
			return true
		}
	}
	return false
}

func (state *schedulerRunState) cancelRemaining(fromLayer int) {
	for _, layer := range state.layers[fromLayer:] {
		for _, name := range layer {
			state.results[name] = domain.TaskResult{
				Task:   name,
				Status: domain.StatusSkipped,
				Reason: domain.ReasonRunCancelled,
			}
		}
	}
}

// ordered returns the results in layer order.
func (state *schedulerRunState) ordered() []domain.TaskResult {
	out := make([]domain.TaskResult, 0, len(state.results))
	for _, layer := range state.layers {
		for _, name := range layer {
			if res, ok := state.results[name]; ok {
				out = append(out, res)
			}
		}
	}
	return out
}

func (state *schedulerRunState) executeTask(ctx context.Context, t *domain.Task) domain.TaskResult {
	startedAt := time.Now()
	ctx, span := state.s.tracer.Start(ctx, t.Name, ports.WithAttribute(ports.AttrTask, t.Name))
	defer span.End()

	ctx = ports.ContextWithWorkDir(ports.ContextWithLogWriter(ctx, span), state.graph.Root())
	res := state.runTask(ctx, t, startedAt)
	res.StartedAt = startedAt
	res.Duration = time.Since(startedAt)

	switch res.Status {
	case domain.StatusFailed:
		span.RecordError(res.Err)
	case domain.StatusSkipped:
		span.SetAttribute(ports.AttrSkipped, res.Reason)
	case domain.StatusSucceeded:
		span.SetAttribute(ports.AttrChanged, len(res.ChangedOutputs))
	}
	return res
}

func (state *schedulerRunState) runTask(ctx context.Context, t *domain.Task, startedAt time.Time) domain.TaskResult {
	root := state.graph.Root()
	fail := func(err error) domain.TaskResult {
		return domain.TaskResult{
			Task:   t.Name,
			Status: domain.StatusFailed,
			Err:    zerr.With(zerr.Wrap(err, domain.ErrTaskExecutionFailed.Error()), "task", t.Name),
		}
	}

	candidates, err := state.s.resolver.Resolve(root, t.Sources)
	if err != nil {
		return fail(zerr.Wrap(err, domain.ErrSourceResolutionFailed.Error()))
	}

	// Aggregating chains rebuild from every source, as under AlwaysRun.
	dirty := candidates
	if !state.force && !state.aggregating[t.Name] {
		dirty, err = state.s.tracker.FilterDirty(t, candidates)
		if err != nil {
			return fail(err)
		}
	}
	if len(dirty) == 0 {
		return domain.TaskResult{Task: t.Name, Status: domain.StatusSkipped, Reason: domain.ReasonUpToDate}
	}

	inputs := make([]domain.FileRecord, 0, len(dirty))
	for _, rec := range dirty {
		loaded, err := state.s.resolver.Read(root, rec)
		if err != nil {
			return fail(zerr.With(zerr.Wrap(err, domain.ErrSourceReadFailed.Error()), "path", rec.Path))
		}
		inputs = append(inputs, loaded)
	}

	outputs, err := state.applyChain(ctx, t, inputs)
	if err != nil {
		return fail(err)
	}

	changed, err := state.s.writer.Write(root, t.Destination, outputs)
	if err != nil {
		return fail(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()))
	}

	if err := state.s.tracker.Commit(t, candidates, startedAt); err != nil {
		return fail(err)
	}

	return domain.TaskResult{Task: t.Name, Status: domain.StatusSucceeded, ChangedOutputs: changed}
}

// applyChain feeds records through each transform in order and stops at the first failure.
// An empty chain passes the inputs through unchanged.
func (state *schedulerRunState) applyChain(
	ctx context.Context,
	t *domain.Task,
	records []domain.FileRecord,
) ([]domain.FileRecord, error) {
	for _, tr := range state.chains[t.Name] {
		stepCtx, span := state.s.tracer.Start(ctx, tr.Name(),
			ports.WithAttribute(ports.AttrTask, t.Name),
			ports.WithAttribute(ports.AttrTransform, tr.Name()),
		)
		out, err := tr.Apply(ports.ContextWithLogWriter(stepCtx, span), records)
		if err != nil {
			var te *domain.TransformError
			if !errors.As(err, &te) {
				err = domain.NewTransformError(tr.Name(), err)
			}
			span.RecordError(err)
			span.End()
			return nil, err
		}
		span.SetAttribute(ports.AttrOutputs, len(out))
		span.End()
		records = out
	}
	return records, nil
}
