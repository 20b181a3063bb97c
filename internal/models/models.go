package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"taskmanager/internal/apperr"
	"taskmanager/internal/validation"
)

// Task is a single to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask holds the fields accepted on creation. Completed defaults to false.
type NewTask struct {
	Title       string
	Description string
	Completed   bool
	DueDate     *time.Time
}

// TaskPatch holds the fields supplied to an update. Nil means "keep".
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	DueDate     *time.Time
}

// Build turns creation input into a record stamped at now. ID is left to the store.
func (n NewTask) Build(now time.Time) Task {
	ts := Timestamp(now)
	t := Task{
		Title:       n.Title,
		Description: n.Description,
		Completed:   n.Completed,
		DueDate:     timestampPtr(n.DueDate),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	t.normalize()
	return t
}

// Apply returns a copy of t with the supplied fields replaced.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueDate != nil {
		t.DueDate = timestampPtr(p.DueDate)
	}
	t.normalize()
	return t
}

func (t *Task) normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
}

// Timestamp converts now to the precision the stores keep.
func Timestamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Millisecond)
}

// NextUpdatedAt returns a timestamp strictly after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	ts := Timestamp(now)
	if !ts.After(prev) {
		ts = prev.Add(time.Millisecond)
	}
	return ts
}

// timestampPtr truncates a due date to the precision the stores keep.
func timestampPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	u := Timestamp(*v)
	return &u
}

// Validate checks the stored constraints of a task and reports every
// violated field as an apperr schema error.
func (t Task) Validate() error {
	err := validation.Validator().Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate task: %w", err)
	}

	details := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperr.FieldError{
			Field:   fe.Field(),
			Message: schemaMessage(fe),
		})
	}
	return apperr.Schema(details)
}

func schemaMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	default:
		return fmt.Sprintf("%s failed the %s constraint", fe.Field(), fe.Tag())
	}
}
