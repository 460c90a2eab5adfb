// Package mongo implements the stores on MongoDB. Transactions require a
// replica set or sharded cluster.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

const (
	jobsCollection     = "jobs"
	sessionsCollection = "scrape_sessions"
	matchesCollection  = "job_matches"
)

type Store struct {
	client   *mongo.Client
	jobs     *mongo.Collection
	sessions *mongo.Collection
	matches  *mongo.Collection
	logger   *zap.Logger
	inTx     bool
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, pings the server and creates indexes.
func Open(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to connect to MongoDB: %w", err))
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, store.Unavailable(fmt.Errorf("can't ping MongoDB: %w", err))
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		jobs:     db.Collection(jobsCollection),
		sessions: db.Collection(sessionsCollection),
		matches:  db.Collection(matchesCollection),
		logger:   logger,
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "normalized_title", Value: 1}, {Key: "normalized_company", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiry_date", Value: 1}}},
	})
	if err != nil {
		return wrap("create job indexes", err)
	}

	_, err = s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	if err != nil {
		return wrap("create session indexes", err)
	}

	_, err = s.matches.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "job_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return wrap("create match indexes", err)
	}

	s.logger.Debug("mongo indexes ensured")
	return nil
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*model.Job, error) {
	var job model.Job
	err := s.jobs.FindOne(ctx, bson.M{"external_job_id": externalID}).Decode(&job)
	if err != nil {
		return nil, wrap("find job by external id", err)
	}
	return &job, nil
}

func (s *Store) Insert(ctx context.Context, job *model.Job) (string, error) {
	doc := *job
	doc.ID = primitive.NewObjectID().Hex()

	if _, err := s.jobs.InsertOne(ctx, doc); err != nil {
		return "", wrap("insert job", err)
	}
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, job *model.Job) error {
	res, err := s.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return wrap("update job", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindDuplicates(ctx context.Context, title, company, location string) ([]*model.Job, error) {
	filter := bson.M{"normalized_title": title, "normalized_company": company}
	if location != "" {
		filter["location"] = location
	}
	return s.findJobs(ctx, "find duplicates", filter, 0)
}

func (s *Store) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	filter := bson.M{
		"status":      model.JobStatusActive,
		"is_active":   true,
		"expiry_date": bson.M{"$gte": now},
	}
	return s.findJobs(ctx, "list active jobs", filter, limit)
}

func (s *Store) findJobs(ctx context.Context, op string, filter bson.M, limit int) ([]*model.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.jobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer cursor.Close(ctx)

	var jobs []*model.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, wrap(op, err)
	}
	return jobs, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.JobStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return wrap("start session", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	txStore := *s
	txStore.inTx = true

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &txStore)
	})
	return err
}

func (s *Store) CreateSession(ctx context.Context, session *model.ScrapeSession) error {
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return wrap("create session", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *model.ScrapeSession) error {
	res, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		return wrap("update session", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.ScrapeSession, error) {
	var session model.ScrapeSession
	if err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session); err != nil {
		return nil, wrap("get session", err)
	}
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]*model.ScrapeSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrap("list sessions", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.ScrapeSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, wrap("list sessions", err)
	}
	return sessions, nil
}

// SaveMatches upserts by (user_id, job_id); created_at is only written on
// insert.
func (s *Store) SaveMatches(ctx context.Context, matches []*model.JobMatch) error {
	if len(matches) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(matches))
	for _, m := range matches {
		update := bson.M{
			"$set": bson.M{
				"external_job_id": m.ExternalJobID,
				"score":           m.Score,
				"match_type":      m.MatchType,
				"status":          m.Status,
				"updated_at":      m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"user_id": m.UserID, "job_id": m.JobID}).
			SetUpdate(update).
			SetUpsert(true))
	}

	if _, err := s.matches.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return wrap("save matches", err)
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, userID string, minScore int) ([]*model.JobMatch, error) {
	filter := bson.M{"user_id": userID, "score.total_score": bson.M{"$gte": minScore}}
	opts := options.Find().SetSort(bson.D{{Key: "score.total_score", Value: -1}, {Key: "job_id", Value: 1}})

	cursor, err := s.matches.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap("list matches", err)
	}
	defer cursor.Close(ctx)

	var matches []*model.JobMatch
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, wrap("list matches", err)
	}
	return matches, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}

	wrapped := fmt.Errorf("%s: %w", op, err)
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return store.Unavailable(wrapped)
	}
	return wrapped
}
