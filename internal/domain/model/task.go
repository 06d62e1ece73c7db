package model

import "time"

// TaskStatus is the internal status lifecycle. The record store keeps
// localized strings; the bitable package maps them at the boundary.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailed     TaskStatus = "failed"
)

// GenerationType selects which kind of media a task produces.
type GenerationType string

const (
	GenerationVideo GenerationType = "video"
	GenerationImage GenerationType = "image"
)

// Task is one unit of generation work backed by one external record. It is
// never persisted locally: materialized on read, mutated in memory during a
// single run, terminal state pushed back via field update.
type Task struct {
	RecordID       string         `json:"recordId"`
	Prompt         string         `json:"prompt"`
	Character      string         `json:"character,omitempty"`
	Model          string         `json:"model"`
	ModelDisplay   string         `json:"modelDisplay"`
	GenerationType GenerationType `json:"generationType"`
	ReferenceImage string         `json:"referenceImage,omitempty"`
	Status         TaskStatus     `json:"status"`
	IsGenerated    bool           `json:"isGenerated"`
	CreatedTime    *time.Time     `json:"createdTime,omitempty"`
	Error          string         `json:"error,omitempty"`

	Results ResultSet `json:"results"`
}

// Completed reports whether the task already carries a finished result and
// must not be regenerated by a default run.
func (t *Task) Completed() bool {
	return t.Status == TaskStatusSuccess && t.Results.Any()
}
