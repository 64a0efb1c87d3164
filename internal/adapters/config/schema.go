package config

// Kilnfile represents the structure of the kiln.yaml configuration file.
type Kilnfile struct {
	Version string              `yaml:"version"`
	Root    string              `yaml:"root"`
	State   string              `yaml:"state"`
	Store   string              `yaml:"store"`
	Serve   *ServeDTO           `yaml:"serve"`
	Notify  *NotifyDTO          `yaml:"notify"`
	Tasks   map[string]*TaskDTO `yaml:"tasks"`
}

// ServeDTO configures the live reload server.
type ServeDTO struct {
	Enabled *bool  `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Dir     string `yaml:"dir"`
}

// NotifyDTO configures the reload webhook.
type NotifyDTO struct {
	Webhook string `yaml:"webhook"`
	Retries uint64 `yaml:"retries"`
}

// TaskDTO represents a task definition in the configuration.
type TaskDTO struct {
	Source      []string        `yaml:"source"`
	Destination string          `yaml:"destination"`
	Staleness   string          `yaml:"staleness"`
	DependsOn   []string        `yaml:"dependsOn"`
	Transforms  []*TransformDTO `yaml:"transforms"`
}

// TransformDTO represents one chain step.
type TransformDTO struct {
	Use       string   `yaml:"use"`
	Only      string   `yaml:"only"`
	Cmd       []string `yaml:"cmd"`
	Ext       string   `yaml:"ext"`
	Prefix    string   `yaml:"prefix"`
	Suffix    string   `yaml:"suffix"`
	Old       string   `yaml:"old"`
	New       string   `yaml:"new"`
	Output    string   `yaml:"output"`
	Separator string   `yaml:"separator"`
	MediaType string   `yaml:"mediaType"`
	Strip     []string `yaml:"strip"`
}
