// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/adapters/detector"
	"go.trai.ch/kiln/internal/adapters/linear"
	"go.trai.ch/kiln/internal/adapters/livereload"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/adapters/notify"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/adapters/watcher"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/rebuild"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/kiln/internal/engine/staleness"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	resolver     ports.SourceResolver
	writer       ports.OutputWriter
	factory      ports.TransformFactory
	opener       ports.StoreOpener
	logger       ports.Logger
	newWatcher   watcher.Factory
	newServer    livereload.Factory

	workDir  string
	stdout   io.Writer
	stderr   io.Writer
	debounce time.Duration
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	resolver ports.SourceResolver,
	writer ports.OutputWriter,
	factory ports.TransformFactory,
	opener ports.StoreOpener,
	log ports.Logger,
	newWatcher watcher.Factory,
	newServer livereload.Factory,
) *App {
	return &App{
		configLoader: loader,
		resolver:     resolver,
		writer:       writer,
		factory:      factory,
		opener:       opener,
		logger:       log,
		newWatcher:   newWatcher,
		newServer:    newServer,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		debounce:     watcher.DefaultDebounceWindow,
	}
}

// WithWorkDir sets the directory configuration discovery starts from.
// The process working directory is used by default.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// WithOutput redirects task output and run summaries.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithDebounce sets the quiet period used to coalesce file events in watch mode.
func (a *App) WithDebounce(d time.Duration) *App {
	a.debounce = d
	return a
}

// SetLogFormat switches the log output format when the logger supports it.
func (a *App) SetLogFormat(f logger.Format) {
	if l, ok := a.logger.(interface{ SetFormat(logger.Format) }); ok {
		l.SetFormat(f)
	}
}

// RunOptions configuration for the Build and Watch methods.
type RunOptions struct {
	// Targets are the requested task names. Empty selects every task.
	Targets     []string
	Mode        domain.Mode
	Force       bool
	Parallelism int
	// OutputMode is one of auto, color, ci or plain.
	OutputMode string
}

// Build runs the selected tasks once. It returns domain.ErrBuildExecutionFailed when any
// task failed.
func (a *App) Build(ctx context.Context, opts RunOptions) error {
	ws, err := a.load(opts.Mode)
	if err != nil {
		return err
	}

	var notifier ports.ReloadNotifier
	if ws.Notify.Webhook != "" {
		notifier = notify.NewWebhook(ws.Notify.Webhook, ws.Notify.Retries)
	}

	sess, err := a.openSession(ws, opts, notifier)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	_, err = sess.run(ctx, opts.Targets, false, opts.Force)
	return err
}

// Watch runs the selected tasks once, then re-runs the affected subset on every change
// until ctx is done. It returns the outcome of the last completed run.
//
//nolint:cyclop // orchestration function
func (a *App) Watch(ctx context.Context, opts RunOptions) error {
	ws, err := a.load(opts.Mode)
	if err != nil {
		return err
	}

	var notifiers notify.Multi
	var server *livereload.Server
	if ws.Serve.Enabled {
		server = a.newServer(ws.Serve.Dir, ws.Serve.Addr)
		notifiers = append(notifiers, server)
	}
	if ws.Notify.Webhook != "" {
		notifiers = append(notifiers, notify.NewWebhook(ws.Notify.Webhook, ws.Notify.Retries))
	}
	var notifier ports.ReloadNotifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	sess, err := a.openSession(ws, opts, notifier)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	selected, err := ws.Graph.Closure(opts.Targets)
	if err != nil {
		return err
	}
	stateDir, err := filepath.Rel(ws.Root, ws.StateDir)
	if err != nil {
		stateDir = ws.StateDir
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	if err := w.Start(ctx, ws.Root); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	stop := context.AfterFunc(ctx, func() { _ = w.Stop() })
	defer stop()

	// The watcher is live before the first run, so edits made during it queue a follow-up.
	var (
		mu      sync.Mutex
		lastErr error
		initial = true
	)
	coordinator := rebuild.NewCoordinator(ctx,
		func(ctx context.Context, paths []string) (*domain.Report, error) {
			if initial {
				initial = false
				report, err := sess.run(ctx, opts.Targets, false, opts.Force)
				if err != nil && !errors.Is(err, domain.ErrBuildExecutionFailed) && !errors.Is(err, context.Canceled) {
					// Configuration errors repeat on every run.
					cancel()
				}
				return report, err
			}
			tasks := selectedOnly(rebuild.Affected(ws.Graph, ws.Root, stateDir, paths), selected)
			if len(tasks) == 0 {
				return nil, nil
			}
			return sess.run(ctx, tasks, true, false)
		},
		func(report *domain.Report, err error) {
			if report == nil && err == nil {
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			mu.Lock()
			lastErr = err
			mu.Unlock()
		},
	)
	debouncer := watcher.NewDebouncer(a.debounce, func(paths []string) {
		coordinator.Trigger(paths...)
	})

	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		if err := server.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop(context.WithoutCancel(gctx))
		})
	}
	coordinator.Start()
	g.Go(func() error {
		a.logger.Info("watching for changes")
		for event := range w.Events() {
			debouncer.Add(event.Path)
		}
		coordinator.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error(err)
	}

	mu.Lock()
	defer mu.Unlock()
	return lastErr
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// Outputs also removes every task destination.
	Outputs bool
}

// Clean removes the state directory and, optionally, the task destinations.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	ws, err := a.load(domain.ModeDevelopment)
	if err != nil {
		return err
	}

	var errs error
	remove := func(path, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove "+name), "path", path))
			return
		}
		a.logger.Info("removed " + name)
	}

	remove(ws.StateDir, "build records")

	if opts.Outputs {
		var dests []string
		for task := range ws.Graph.Walk() {
			dest := filepath.Join(ws.Root, filepath.FromSlash(task.Destination))
			if dest == ws.Root || slices.Contains(dests, dest) {
				continue
			}
			dests = append(dests, dest)
		}
		slices.Sort(dests)
		for _, dest := range dests {
			rel, _ := filepath.Rel(ws.Root, dest)
			remove(dest, filepath.ToSlash(rel))
		}
	}

	return errs
}

func (a *App) load(mode domain.Mode) (*domain.Workspace, error) {
	cwd := a.workDir
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
	}
	ws, err := a.configLoader.Load(cwd, mode)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return ws, nil
}

// session holds the per-workspace collaborators of one command.
type session struct {
	logger      ports.Logger
	ws          *domain.Workspace
	store       ports.BuildRecordStore
	renderer    ports.Renderer
	scheduler   *scheduler.Scheduler
	shutdown    func(context.Context) error
	parallelism int
}

func (a *App) openSession(ws *domain.Workspace, opts RunOptions, notifier ports.ReloadNotifier) (*session, error) {
	outputMode, err := detector.ParseMode(opts.OutputMode)
	if err != nil {
		return nil, err
	}
	mode := detector.ResolveMode(detector.DetectEnvironment(), outputMode)
	renderer := linear.NewRenderer(a.stdout, a.stderr, detector.Profile(mode))

	store, err := a.opener.Open(ws.StateDir, ws.Store)
	if err != nil {
		return nil, err
	}

	tracer, shutdown := telemetry.Setup(renderer)

	sched := scheduler.NewScheduler(
		a.resolver,
		a.writer,
		a.factory,
		staleness.NewTracker(store),
		tracer,
		notifier,
		a.logger,
	)

	return &session{
		logger:      a.logger,
		ws:          ws,
		store:       store,
		renderer:    renderer,
		scheduler:   sched,
		shutdown:    shutdown,
		parallelism: opts.Parallelism,
	}, nil
}

// run executes one scheduler run and renders its report.
func (s *session) run(ctx context.Context, targets []string, exact, force bool) (*domain.Report, error) {
	if err := s.renderer.Start(ctx); err != nil {
		return nil, err
	}
	report, err := s.scheduler.Run(ctx, s.ws.Graph, scheduler.Options{
		Targets:     targets,
		Exact:       exact,
		Mode:        s.ws.Mode,
		Parallelism: s.parallelism,
		Force:       force,
	})
	if report != nil {
		s.renderer.OnRunComplete(report)
	}
	_ = s.renderer.Stop()

	if err != nil {
		return report, err
	}
	for _, res := range report.Failed() {
		s.logger.Error(res.Err)
	}
	if !report.OK() {
		return report, domain.ErrBuildExecutionFailed
	}
	return report, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.shutdown(context.WithoutCancel(ctx))
	if err := s.store.Close(); err != nil {
		s.logger.Error(err)
	}
}

func selectedOnly(tasks []string, selected map[string]struct{}) []string {
	out := tasks[:0:0]
	for _, name := range tasks {
		if _, ok := selected[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
