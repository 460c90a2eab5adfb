package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spigell/jobintel/internal/model"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks connectivity failures of the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// Unavailable marks err as a connectivity failure.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrUnavailable)
}

// JobStore persists jobs keyed by their external id.
type JobStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.Job, error)
	Insert(ctx context.Context, job *model.Job) (string, error)
	// Update replaces every mutable field of the job with the given id.
	Update(ctx context.Context, job *model.Job) error
	// FindDuplicates looks up jobs by normalized title and company, and by
	// location when it is not empty.
	FindDuplicates(ctx context.Context, normalizedTitle, normalizedCompany, location string) ([]*model.Job, error)
	// ListActive returns active jobs that have not expired at now.
	ListActive(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
	// RunInTx runs fn so that all of its writes commit or none do.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx JobStore) error) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *model.ScrapeSession) error
	UpdateSession(ctx context.Context, s *model.ScrapeSession) error
	GetSession(ctx context.Context, id string) (*model.ScrapeSession, error)
	// ListSessions returns the most recent sessions first.
	ListSessions(ctx context.Context, limit int) ([]*model.ScrapeSession, error)
}

type MatchStore interface {
	// SaveMatches upserts matches by user and job.
	SaveMatches(ctx context.Context, matches []*model.JobMatch) error
	ListMatches(ctx context.Context, userID string, minScore int) ([]*model.JobMatch, error)
}

// Store bundles every collection the pipeline uses.
type Store interface {
	JobStore
	SessionStore
	MatchStore
	Close(ctx context.Context) error
}
