package domain

import "time"

// BuildRecord is the persisted state of a task's last successful run.
type BuildRecord struct {
	TaskName     string            `json:"task_name,omitzero"`
	LastRun      time.Time         `json:"last_run,omitzero"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}
