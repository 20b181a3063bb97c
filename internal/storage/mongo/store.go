// Package mongo stores tasks in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
)

const (
	defaultDatabase = "tmrapi"
	collectionName  = "tasks"
)

// Options configures the Mongo store.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Store is a task repository backed by MongoDB. Readiness follows the
// driver's server heartbeats, so the store recovers by itself once the
// database becomes reachable again.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger zerolog.Logger
	ready  atomic.Bool
	now    func() time.Time

	connectTimeout time.Duration
}

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Completed   bool               `bson:"completed"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// Open builds the client without waiting for the server. Call Connect to
// verify the connection.
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("empty mongodb uri")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	dbName := opts.Database
	if dbName == "" {
		dbName = databaseFromURI(opts.URI)
	}

	s := &Store{logger: logger, now: time.Now, connectTimeout: opts.ConnectTimeout}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.ConnectTimeout).
		SetServerMonitor(s.serverMonitor())

	// mongo.Connect does not dial; it only fails on invalid options.
	client, err := mongo.Connect(context.Background(), clientOpts)
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	s.client = client
	s.coll = client.Database(dbName).Collection(collectionName)
	return s, nil
}

// Connect pings the server and prepares indexes. A failure leaves the store
// not ready; heartbeats keep probing in the background.
func (s *Store) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		s.ready.Store(false)
		return fmt.Errorf("ping mongo: %w", err)
	}
	s.ready.Store(true)

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to create createdAt index")
	}

	s.logger.Info().Str("database", s.coll.Database().Name()).Msg("connected to mongo")
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	s.ready.Store(false)
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	s.logger.Info().Msg("disconnected from mongo")
	return nil
}

// Ready reports the last known connection state.
func (s *Store) Ready(context.Context) bool {
	return s.ready.Load()
}

func (s *Store) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatSucceeded: func(*event.ServerHeartbeatSucceededEvent) {
			if !s.ready.Swap(true) {
				s.logger.Info().Msg("mongo heartbeat succeeded; datastore ready")
			}
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			if s.ready.Swap(false) {
				s.logger.Warn().Err(e.Failure).Msg("mongo heartbeat failed; datastore unavailable")
			}
		},
	}
}

// ListTasks returns every task, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, wrap("list tasks", err)
	}

	var docs []taskDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap("decode tasks", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toModel())
	}
	return tasks, nil
}

// CreateTask inserts a new task.
func (s *Store) CreateTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	t := in.Build(s.now())
	if err := t.Validate(); err != nil {
		return models.Task{}, err
	}

	doc := fromModel(t)
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return models.Task{}, wrap("insert task", err)
	}
	return doc.toModel(), nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	oid, err := parseID(id)
	if err != nil {
		return models.Task{}, err
	}

	var doc taskDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return models.Task{}, wrap("get task", err)
	}
	return doc.toModel(), nil
}

// UpdateTask sets the supplied fields after re-checking the stored
// constraints on the merged record. Concurrent updates are last write wins.
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return models.Task{}, err
	}
	next.UpdatedAt = models.NextUpdatedAt(current.UpdatedAt, s.now())

	oid, _ := parseID(id)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc taskDocument
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": setFields(patch, next)}, opts).Decode(&doc)
	if err != nil {
		return models.Task{}, wrap("update task", err)
	}
	return doc.toModel(), nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return wrap("delete task", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Task")
	}
	return nil
}

// setFields lists only the supplied fields, taking their normalized values
// from next, plus the refreshed timestamp.
func setFields(patch models.TaskPatch, next models.Task) bson.M {
	set := bson.M{"updatedAt": next.UpdatedAt}
	if patch.Title != nil {
		set["title"] = next.Title
	}
	if patch.Description != nil {
		set["description"] = next.Description
	}
	if patch.Completed != nil {
		set["completed"] = next.Completed
	}
	if patch.DueDate != nil {
		set["dueDate"] = next.DueDate
	}
	return set
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.InvalidID(err)
	}
	return oid, nil
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("Task")
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return apperr.Unavailable(fmt.Errorf("%s: %w", op, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultDatabase
}

func fromModel(t models.Task) taskDocument {
	return taskDocument{
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDocument) toModel() models.Task {
	t := models.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}
	return t
}
