// Package domain contains the core domain models of the asset pipeline.
package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// AllTasks selects every task in the graph.
const AllTasks = "all"

// Graph represents the dependency graph of tasks.
type Graph struct {
	tasks          map[string]Task
	dependents     map[string][]string
	executionOrder []string
	root           string
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:      make(map[string]Task),
		dependents: make(map[string][]string),
	}
}

// SetRoot sets the project root directory.
func (g *Graph) SetRoot(root string) {
	g.root = root
}

// Root returns the project root directory.
func (g *Graph) Root() string {
	return g.root
}

// AddTask adds a task to the graph.
// It returns an error if a task with the same name already exists.
func (g *Graph) AddTask(t *Task) error {
	if t.Name == AllTasks {
		return zerr.With(ErrReservedTaskName, "task_name", t.Name)
	}
	if _, exists := g.tasks[t.Name]; exists {
		return zerr.With(ErrTaskAlreadyExists, "task_name", t.Name)
	}
	g.tasks[t.Name] = *t
	for _, dep := range t.Dependencies {
		g.dependents[dep] = append(g.dependents[dep], t.Name)
	}
	g.executionOrder = nil
	return nil
}

// GetTask returns the named task.
func (g *Graph) GetTask(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// Names returns all task names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks for missing dependencies and cycles using a depth-first topological sort.
// It populates the execution order if successful.
func (g *Graph) Validate() error {
	order := make([]string, 0, len(g.tasks))
	visited := make(map[string]int) // 0: unvisited, 1: visiting, 2: visited
	var path []string

	var visit func(u string) error
	visit = func(u string) error {
		visited[u] = 1
		path = append(path, u)

		task := g.tasks[u]
		for _, dep := range task.Dependencies {
			if _, exists := g.tasks[dep]; !exists {
				return zerr.With(zerr.With(ErrMissingDependency, "dependency", dep), "task_name", u)
			}
			switch visited[dep] {
			case 1:
				return g.buildCycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		order = append(order, u)
		return nil
	}

	for _, name := range g.Names() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	g.executionOrder = order
	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []string, dep string) error {
	start := slices.Index(path, dep)
	cycle := append(slices.Clone(path[start:]), dep)
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(cycle, " -> "))
}

// Walk returns an iterator that yields tasks in execution order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[Task] {
	return func(yield func(Task) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.tasks[name]) {
				return
			}
		}
	}
}

// Closure returns the targets plus all their transitive dependencies.
// The target "all" selects every task.
func (g *Graph) Closure(targets []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(targets) == 0 || slices.Contains(targets, AllTasks) {
		for name := range g.tasks {
			set[name] = struct{}{}
		}
		return set, nil
	}

	var visit func(name string)
	visit = func(name string) {
		if _, ok := set[name]; ok {
			return
		}
		set[name] = struct{}{}
		for _, dep := range g.tasks[name].Dependencies {
			visit(dep)
		}
	}

	for _, target := range targets {
		if _, ok := g.tasks[target]; !ok {
			return nil, zerr.With(ErrTaskNotFound, "task_name", target)
		}
		visit(target)
	}
	return set, nil
}

// Dependents returns the tasks that transitively depend on any of the given tasks.
// The given tasks are included in the result.
func (g *Graph) Dependents(names []string) map[string]struct{} {
	set := make(map[string]struct{})
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := set[name]; ok {
			continue
		}
		if _, ok := g.tasks[name]; !ok {
			continue
		}
		set[name] = struct{}{}
		queue = append(queue, g.dependents[name]...)
	}
	return set
}

// Layers partitions the run set into topological layers using Kahn's algorithm.
// Dependencies outside the run set are ignored. Names inside a layer are sorted.
func (g *Graph) Layers(run map[string]struct{}) ([][]string, error) {
	inDegree := make(map[string]int, len(run))
	for name := range run {
		for _, dep := range g.tasks[name].Dependencies {
			if _, ok := run[dep]; ok {
				inDegree[name]++
			}
		}
	}

	var current []string
	for name := range run {
		if inDegree[name] == 0 {
			current = append(current, name)
		}
	}

	var layers [][]string
	placed := 0
	for len(current) > 0 {
		slices.Sort(current)
		layers = append(layers, current)
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, dependent := range g.dependents[name] {
				if _, ok := run[dependent]; !ok {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if placed != len(run) {
		return nil, zerr.With(ErrCycleDetected, "cycle", g.remaining(run, inDegree))
	}
	return layers, nil
}

func (g *Graph) remaining(run map[string]struct{}, inDegree map[string]int) string {
	var stuck []string
	for name := range run {
		if inDegree[name] > 0 {
			stuck = append(stuck, name)
		}
	}
	slices.Sort(stuck)
	return strings.Join(stuck, ", ")
}
