// Package plan defines the todo-list model the agent publishes while it
// works. Plans are full snapshots: each PlanMessage replaces the previous
// one entirely, so consumers never have to merge partial updates.
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TodoStatus values. The set is closed; engine-specific statuses are mapped
// into it at the normalization boundary (a failed step surfaces as blocked).
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
)

// TodoItem is a single entry in the agent's plan.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`

	// Status is one of the Status* constants.
	Status string `json:"status"`

	// Priority ranges 1 (lowest) to 5 (highest); 0 means unset.
	Priority int `json:"priority,omitempty"`

	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewTodoItem creates a pending todo with a fresh ID.
func NewTodoItem(content string) TodoItem {
	now := time.Now().UTC()
	return TodoItem{
		ID:        uuid.New().String(),
		Content:   content,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetPriority clamps priority into the 1..5 range.
func (t *TodoItem) SetPriority(priority int) {
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}
	t.Priority = priority
	t.touch()
}

// UpdateStatus sets the status and bumps UpdatedAt.
func (t *TodoItem) UpdateStatus(status string) {
	t.Status = status
	t.touch()
}

// Complete marks the todo completed.
func (t *TodoItem) Complete() { t.UpdateStatus(StatusCompleted) }

// Start marks the todo in progress.
func (t *TodoItem) Start() { t.UpdateStatus(StatusInProgress) }

// Block marks the todo blocked.
func (t *TodoItem) Block() { t.UpdateStatus(StatusBlocked) }

// Reset returns the todo to pending.
func (t *TodoItem) Reset() { t.UpdateStatus(StatusPending) }

// IsOverdue reports whether the due date has passed without completion.
func (t *TodoItem) IsOverdue() bool {
	if t.DueDate == nil || t.Status == StatusCompleted {
		return false
	}
	return time.Now().UTC().After(*t.DueDate)
}

// SetMetadata attaches an arbitrary key/value to the todo.
func (t *TodoItem) SetMetadata(key string, value interface{}) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]interface{})
	}
	t.Metadata[key] = value
	t.touch()
}

func (t *TodoItem) touch() {
	t.UpdatedAt = time.Now().UTC()
}

// ValidStatus reports whether s is a recognized todo status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Message is a full plan snapshot delivered on the plan channel.
type Message struct {
	Todos     []TodoItem `json:"todos"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewMessage wraps a todo list in a timestamped snapshot.
func NewMessage(todos []TodoItem) Message {
	return Message{
		Todos:     todos,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageWithMetadata wraps a todo list and plan metadata in a snapshot.
func NewMessageWithMetadata(todos []TodoItem, meta Metadata) Message {
	m := NewMessage(todos)
	m.Metadata = &meta
	return m
}

// WithStatus returns the todos matching the given status.
func (m Message) WithStatus(status string) []TodoItem {
	var out []TodoItem
	for _, t := range m.Todos {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Completed returns the completed todos.
func (m Message) Completed() []TodoItem { return m.WithStatus(StatusCompleted) }

// Pending returns the pending todos.
func (m Message) Pending() []TodoItem { return m.WithStatus(StatusPending) }

// InProgress returns the in-progress todos.
func (m Message) InProgress() []TodoItem { return m.WithStatus(StatusInProgress) }

// Blocked returns the blocked todos.
func (m Message) Blocked() []TodoItem { return m.WithStatus(StatusBlocked) }

// CompletionPercentage returns the completed fraction in [0,1].
// An empty plan reads as fully complete.
func (m Message) CompletionPercentage() float64 {
	if len(m.Todos) == 0 {
		return 1.0
	}
	return float64(len(m.Completed())) / float64(len(m.Todos))
}

// String renders a one-line progress summary.
func (m Message) String() string {
	return fmt.Sprintf("plan: %d todos, %.0f%% complete",
		len(m.Todos), m.CompletionPercentage()*100)
}

// Metadata describes the plan itself rather than any single todo.
type Metadata struct {
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Version     int                    `json:"version,omitempty"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Custom      map[string]interface{} `json:"custom,omitempty"`
}
