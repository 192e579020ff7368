package models

import (
	"database/sql"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	// StatusOverdue is never stored, see EffectiveStatus.
	StatusOverdue TaskStatus = "overdue"
)

// ValidStoredStatus reports whether s may be written to the tasks table.
func ValidStoredStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type Task struct {
	ID             int           `json:"id"`
	UserID         int           `json:"user_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	CategoryID     sql.NullInt64 `json:"-"`
	Category       string        `json:"category,omitempty"`
	Priority       Priority      `json:"priority"`
	Status         TaskStatus    `json:"status"`
	DueDate        time.Time     `json:"due_date"`
	CompletionDate *time.Time    `json:"completion_date"`
	AssignedBy     string        `json:"assigned_by"`
	CreatedAt      time.Time     `json:"created_at"`
}

// EffectiveStatus is the status shown to clients: a pending task whose due
// date has passed is overdue. It is the only place that rule lives.
func EffectiveStatus(t Task, now time.Time) TaskStatus {
	if t.Status == StatusPending && t.DueDate.Before(now) {
		return StatusOverdue
	}
	return t.Status
}

// TaskView is a task as rendered for display.
type TaskView struct {
	Task
	EffectiveStatus TaskStatus `json:"effective_status"`
}

func NewTaskView(t Task, now time.Time) TaskView {
	return TaskView{Task: t, EffectiveStatus: EffectiveStatus(t, now)}
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PredefinedTask is a template admins can assign to users.
type PredefinedTask struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	DefaultDays int      `json:"default_days"`
}
