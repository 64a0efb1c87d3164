// Package config provides the configuration loader for kiln.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the configuration version understood by this loader.
const SupportedVersion = "1"

var _ ports.ConfigLoader = (*Loader)(nil)

var validTaskNameRegex = regexp.MustCompile("^[a-zA-Z0-9_.-]+$")

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// DiscoverRoot walks up from cwd and returns the first directory containing kiln.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir := filepath.Clean(cwd)
	for {
		if info, err := os.Stat(filepath.Join(currentDir, domain.ConfigFileName)); err == nil && !info.IsDir() {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// Load reads kiln.yaml found from cwd and builds the workspace for mode.
func (l *Loader) Load(cwd string, mode domain.Mode) (*domain.Workspace, error) {
	configDir, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(configDir, domain.ConfigFileName)

	var kilnfile Kilnfile
	if err := readAndUnmarshalYAML(configPath, &kilnfile); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	if kilnfile.Version != "" && kilnfile.Version != SupportedVersion {
		l.Logger.Warn(fmt.Sprintf("%s declares version %q, expected %q", domain.ConfigFileName, kilnfile.Version, SupportedVersion))
	}

	root := resolvePath(configDir, kilnfile.Root, ".")
	ws := &domain.Workspace{
		Root:     root,
		StateDir: resolvePath(root, kilnfile.State, domain.StateDirName),
		Mode:     mode,
		Serve:    buildServe(root, kilnfile.Serve),
	}

	if ws.Store, err = parseStore(kilnfile.Store); err != nil {
		return nil, err
	}
	if kilnfile.Notify != nil {
		ws.Notify = domain.NotifySettings{Webhook: kilnfile.Notify.Webhook, Retries: kilnfile.Notify.Retries}
	}

	if ws.Graph, err = l.buildGraph(root, mode, kilnfile.Tasks); err != nil {
		return nil, err
	}
	return ws, nil
}

func (l *Loader) buildGraph(root string, mode domain.Mode, dtos map[string]*TaskDTO) (*domain.Graph, error) {
	g := domain.NewGraph()
	g.SetRoot(root)

	if len(dtos) == 0 {
		l.Logger.Warn(fmt.Sprintf("%s defines no tasks", domain.ConfigFileName))
		return g, nil
	}

	// Sorted so that errors are reported deterministically.
	names := make([]string, 0, len(dtos))
	for name := range dtos {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := validateTaskName(name); err != nil {
			return nil, err
		}
		dto := dtos[name]
		if dto == nil {
			return nil, zerr.With(domain.ErrMissingSource, "task", name)
		}

		for _, dep := range dto.DependsOn {
			if _, ok := dtos[dep]; !ok {
				return nil, zerr.With(zerr.With(domain.ErrMissingDependency, "missing_dependency", dep), "task", name)
			}
		}

		task, err := buildTask(name, dto, mode)
		if err != nil {
			return nil, zerr.With(err, "task", name)
		}
		if err := g.AddTask(task); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// buildTask creates a domain.Task from a TaskDTO, keeping only the chain steps of mode.
func buildTask(name string, dto *TaskDTO, mode domain.Mode) (*domain.Task, error) {
	if len(dto.Source) == 0 {
		return nil, domain.ErrMissingSource
	}
	if strings.TrimSpace(dto.Destination) == "" {
		return nil, domain.ErrMissingDestination
	}

	staleness, err := domain.ParseStaleness(dto.Staleness)
	if err != nil {
		return nil, err
	}

	chain := make([]domain.TransformSpec, 0, len(dto.Transforms))
	for i, step := range dto.Transforms {
		if step == nil || step.Use == "" {
			return nil, zerr.With(zerr.With(domain.ErrInvalidTransformOptions, "reason", "missing 'use'"), "step", i)
		}
		if step.Only != "" {
			only, err := domain.ParseMode(step.Only)
			if err != nil {
				return nil, zerr.With(err, "step", i)
			}
			if only != mode {
				continue
			}
		}
		chain = append(chain, domain.TransformSpec{
			Use:       step.Use,
			Cmd:       slices.Clone(step.Cmd),
			Ext:       step.Ext,
			Prefix:    step.Prefix,
			Suffix:    step.Suffix,
			Old:       step.Old,
			New:       step.New,
			Output:    step.Output,
			Separator: step.Separator,
			MediaType: step.MediaType,
			Strip:     slices.Clone(step.Strip),
		})
	}

	return &domain.Task{
		Name:         name,
		Sources:      slices.Clone(dto.Source),
		Dependencies: canonicalizeStrings(dto.DependsOn),
		Chain:        chain,
		Destination:  filepath.ToSlash(filepath.Clean(dto.Destination)),
		Staleness:    staleness,
	}, nil
}

func buildServe(root string, dto *ServeDTO) domain.ServeSettings {
	if dto == nil {
		return domain.ServeSettings{Addr: domain.DefaultServeAddr, Dir: root}
	}
	enabled := true
	if dto.Enabled != nil {
		enabled = *dto.Enabled
	}
	addr := dto.Addr
	if addr == "" {
		addr = domain.DefaultServeAddr
	}
	return domain.ServeSettings{
		Enabled: enabled,
		Addr:    addr,
		Dir:     resolvePath(root, dto.Dir, "."),
	}
}

func parseStore(s string) (domain.StoreBackend, error) {
	switch b := domain.StoreBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return domain.StoreJSON, nil
	case domain.StoreJSON, domain.StoreSQLite:
		return b, nil
	default:
		return "", zerr.With(domain.ErrInvalidStoreBackend, "store", s)
	}
}

// canonicalizeStrings sorts and deduplicates strs.
func canonicalizeStrings(strs []string) []string {
	if len(strs) == 0 {
		return nil
	}
	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// resolvePath resolves configured against base, falling back to def when empty.
func resolvePath(base, configured, def string) string {
	if configured == "" {
		configured = def
	}
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(base, configured))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is discovered by the loader
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}

// validateTaskName checks if the task name is reserved or contains invalid characters.
func validateTaskName(name string) error {
	if name == domain.AllTasks {
		return zerr.With(domain.ErrReservedTaskName, "task_name", name)
	}
	if !validTaskNameRegex.MatchString(name) {
		return zerr.With(domain.ErrInvalidTaskName, "task_name", name)
	}
	return nil
}
