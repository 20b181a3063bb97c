package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
	"taskmanager/internal/validation"
)

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://127.0.0.1:27017/tmrapi":              "tmrapi",
		"mongodb://user:pw@db:27017/tasks?authSource=x": "tasks",
		"mongodb://127.0.0.1:27017":                     defaultDatabase,
		"mongodb://127.0.0.1:27017/":                    defaultDatabase,
	}
	for uri, want := range cases {
		if got := databaseFromURI(uri); got != want {
			t.Fatalf("databaseFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := parseID(oid.Hex())
	if err != nil || got != oid {
		t.Fatalf("parseID(%s) = %v, %v", oid.Hex(), got, err)
	}

	if _, err := parseID("not-an-id"); !apperr.Is(err, apperr.KindInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}

func TestWrapMapsDriverErrors(t *testing.T) {
	if err := wrap("get task", mongo.ErrNoDocuments); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("no documents: %v", err)
	}
	if err := wrap("list tasks", mongo.ErrClientDisconnected); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("disconnected: %v", err)
	}
	err := wrap("insert task", errors.New("boom"))
	if _, ok := apperr.As(err); ok {
		t.Fatalf("unknown errors must stay untagged: %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	due := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	task := models.NewTask{Title: "Write tests", DueDate: &due}.Build(time.Now())

	doc := fromModel(task)
	doc.ID = primitive.NewObjectID()
	got := doc.toModel()

	if got.ID != doc.ID.Hex() || got.Title != task.Title || !got.DueDate.Equal(due) || !got.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, task)
	}
}

func TestCreatedTaskSurvivesBSON(t *testing.T) {
	due, err := validation.ParseDateTime("2026-07-01T09:00:00.123456Z")
	if err != nil {
		t.Fatal(err)
	}
	task := models.NewTask{Title: "Precise", DueDate: &due}.Build(time.Date(2026, 3, 1, 0, 0, 0, 987654321, time.UTC))

	doc := fromModel(task)
	doc.ID = primitive.NewObjectID()
	created := doc.toModel()

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var stored taskDocument
	if err := bson.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fetched := stored.toModel()

	if !fetched.DueDate.Equal(*created.DueDate) || !fetched.CreatedAt.Equal(created.CreatedAt) || !fetched.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("created %+v, fetched %+v", created, fetched)
	}
}

func TestSetFieldsOnlySupplied(t *testing.T) {
	done := true
	patch := models.TaskPatch{Completed: &done}
	next := patch.Apply(models.Task{Title: "keep"})
	next.UpdatedAt = time.Now()

	set := setFields(patch, next)
	if len(set) != 2 || set["completed"] != true {
		t.Fatalf("unexpected $set: %v", set)
	}
	if _, ok := set["title"]; ok {
		t.Fatalf("title must not be set")
	}
}

func TestReadinessFollowsHeartbeats(t *testing.T) {
	s := &Store{logger: zerolog.Nop()}

	if s.Ready(context.Background()) {
		t.Fatalf("store must not be ready before connecting")
	}

	mon := s.serverMonitor()
	mon.ServerHeartbeatSucceeded(&event.ServerHeartbeatSucceededEvent{})
	if !s.Ready(context.Background()) {
		t.Fatalf("store must be ready after a successful heartbeat")
	}
	mon.ServerHeartbeatFailed(&event.ServerHeartbeatFailedEvent{Failure: errors.New("down")})
	if s.Ready(context.Background()) {
		t.Fatalf("store must not be ready after a failed heartbeat")
	}
}

func TestOpenDoesNotDial(t *testing.T) {
	s, err := Open(Options{URI: "mongodb://127.0.0.1:1/tasks", ConnectTimeout: 50 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if s.coll.Database().Name() != "tasks" {
		t.Fatalf("database = %q", s.coll.Database().Name())
	}
	if err := s.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect to fail against a closed port")
	}
	if s.Ready(context.Background()) {
		t.Fatalf("store must not be ready after a failed connect")
	}
}

func TestOpenRequiresURI(t *testing.T) {
	if _, err := Open(Options{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty uri")
	}
}
