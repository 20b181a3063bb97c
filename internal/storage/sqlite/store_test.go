package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	created, err := s.CreateTask(ctx, models.NewTask{Title: " Write tests ", Description: "API", DueDate: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Title != "Write tests" || created.Completed {
		t.Fatalf("unexpected created task: %+v", created)
	}

	got, err := s.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Title != created.Title || !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("refetch mismatch: %+v vs %+v", got, created)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due date = %v", got.DueDate)
	}
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateTask(context.Background(), models.NewTask{Title: "   "})
	if !apperr.Is(err, apperr.KindSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	s.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	ctx := context.Background()

	empty, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		task, err := s.CreateTask(ctx, models.NewTask{Title: title})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		ids = append(ids, task.ID)
	}
	if err := s.DeleteTask(ctx, ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "third" || tasks[1].Title != "first" {
		t.Fatalf("unexpected order: %+v", tasks)
	}
}

func TestListTieBreaksOnID(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	ctx := context.Background()

	a, _ := s.CreateTask(ctx, models.NewTask{Title: "a"})
	b, _ := s.CreateTask(ctx, models.NewTask{Title: "b"})

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != b.ID || tasks[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", tasks)
	}
}

func TestUpdatePartial(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	ctx := context.Background()

	created, err := s.CreateTask(ctx, models.NewTask{Title: "Update me", Description: "keep"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := true
	updated, err := s.UpdateTask(ctx, created.ID, models.TaskPatch{Completed: &done})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed || updated.Title != "Update me" || updated.Description != "keep" {
		t.Fatalf("unexpected updated task: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updatedAt did not advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("createdAt changed")
	}
}

func TestUpdateRejectsBlankTitle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, _ := s.CreateTask(ctx, models.NewTask{Title: "x"})
	blank := " "
	_, err := s.UpdateTask(ctx, created.ID, models.TaskPatch{Title: &blank})
	if !apperr.Is(err, apperr.KindSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}

	got, _ := s.GetTask(ctx, created.ID)
	if got.Title != "x" {
		t.Fatalf("title changed to %q", got.Title)
	}
}

func TestMissingAndMalformedIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const missing = "65a1b2c3d4e5f60718293a4b"

	if _, err := s.GetTask(ctx, missing); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := s.UpdateTask(ctx, missing, models.TaskPatch{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := s.DeleteTask(ctx, missing); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("delete missing: %v", err)
	}

	if _, err := s.GetTask(ctx, "not-an-id"); !apperr.Is(err, apperr.KindInvalidID) {
		t.Fatalf("get malformed: %v", err)
	}
	if err := s.DeleteTask(ctx, "42"); !apperr.Is(err, apperr.KindInvalidID) {
		t.Fatalf("delete malformed: %v", err)
	}
}

func TestDeleteTwice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, _ := s.CreateTask(ctx, models.NewTask{Title: "Delete me"})
	if err := s.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteTask(ctx, created.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestReady(t *testing.T) {
	s := openTestStore(t)
	if !s.Ready(context.Background()) {
		t.Fatalf("open store should be ready")
	}
	_ = s.Close()
	if s.Ready(context.Background()) {
		t.Fatalf("closed store should not be ready")
	}
}
