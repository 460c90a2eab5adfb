package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("JOBINTEL_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("JOBINTEL_TEST_POSTGRES_URL is not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url, 4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func testJob(now time.Time) *model.Job {
	exp := 3
	return model.NewJob(model.NormalizedJob{
		ExternalJobID:      "pg-" + uuid.NewString(),
		Source:             "test",
		Title:              "Go Developer",
		CompanyName:        "Acme",
		NormalizedTitle:    "go developer",
		NormalizedCompany:  "acme-" + uuid.NewString(),
		Requirements:       []string{"go"},
		Responsibilities:   []string{},
		TechStack:          []string{"Go", "PostgreSQL"},
		CareerLevel:        model.LevelMid,
		Domain:             model.DomainSoftware,
		ExperienceRequired: &exp,
		FetchedAt:          now,
		ExpiryDate:         now.Add(24 * time.Hour),
		IsActive:           true,
		ParseQuality:       model.QualityHigh,
		ParseConfidence:    90,
	}, now)
}

func TestStore_JobRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := testJob(now)
	id, err := s.Insert(ctx, job)
	require.NoError(t, err)

	found, err := s.FindByExternalID(ctx, job.ExternalJobID)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, found.TechStack)
	require.NotNil(t, found.ExperienceRequired)
	assert.Equal(t, 3, *found.ExperienceRequired)
	assert.Equal(t, model.LevelMid, found.CareerLevel)

	found.Title = "Senior Go Developer"
	found.ExperienceRequired = nil
	require.NoError(t, s.Update(ctx, found))

	again, err := s.FindByExternalID(ctx, job.ExternalJobID)
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Developer", again.Title)
	assert.Nil(t, again.ExperienceRequired)

	dups, err := s.FindDuplicates(ctx, "go developer", job.NormalizedCompany, "")
	require.NoError(t, err)
	assert.Len(t, dups, 1)

	_, err = s.FindByExternalID(ctx, "missing-"+uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := testJob(now)
	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.JobStore) error {
		if _, err := tx.Insert(ctx, job); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.FindByExternalID(ctx, job.ExternalJobID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SessionsAndMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	session := &model.ScrapeSession{
		ID:               uuid.NewString(),
		BucketsRequested: []string{"software"},
		Status:           model.SessionInProgress,
		StartedAt:        now,
		TriggeredBy:      model.TriggerAdmin,
		Country:          "in",
	}
	require.NoError(t, s.CreateSession(ctx, session))

	session.AddBucket(model.BucketStats{Bucket: "software", Found: 3, Inserted: 2, Updated: 1, Duplicates: 1})
	session.BucketsCompleted = []string{"software"}
	session.Status = model.SessionCompleted
	require.NoError(t, s.UpdateSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status)
	require.Len(t, got.BucketStats, 1)
	assert.Equal(t, 3, got.BucketStats[0].Found)

	user := "user-" + uuid.NewString()
	match := &model.JobMatch{
		UserID:    user,
		JobID:     "1",
		Score:     model.MatchScore{TotalScore: 72, SkillGaps: []string{"Kafka"}},
		MatchType: model.MatchGood,
		Status:    model.MatchStatusMatched,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.SaveMatches(ctx, []*model.JobMatch{match}))

	match.Score.TotalScore = 85
	match.MatchType = model.MatchExcellent
	require.NoError(t, s.SaveMatches(ctx, []*model.JobMatch{match}))

	list, err := s.ListMatches(ctx, user, 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 85, list[0].Score.TotalScore)
	assert.Equal(t, model.MatchExcellent, list[0].MatchType)
}

func TestWrapClassifiesErrors(t *testing.T) {
	assert.ErrorIs(t, wrap("op", pgx.ErrNoRows), store.ErrNotFound)
	assert.NoError(t, wrap("op", nil))

	err := wrap("op", errors.New("plain"))
	assert.False(t, errors.Is(err, store.ErrUnavailable))
	assert.Contains(t, err.Error(), "op: plain")
}
