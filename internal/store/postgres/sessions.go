package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

const sessionColumns = `id, buckets_requested, buckets_completed, buckets_failed, buckets_skipped,
	bucket_stats, total_api_calls, total_jobs_found, new_jobs_added, jobs_updated,
	duplicates_found, errors, status, started_at, completed_at, duration_ms, triggered_by,
	triggered_by_user_id, country, error_message`

func sessionArgs(s *model.ScrapeSession) ([]any, error) {
	stats, err := json.Marshal(s.BucketStats)
	if err != nil {
		return nil, fmt.Errorf("marshal bucket stats: %w", err)
	}
	return []any{
		s.ID, nonNil(s.BucketsRequested), nonNil(s.BucketsCompleted), nonNil(s.BucketsFailed),
		nonNil(s.BucketsSkipped), stats, s.TotalAPICalls, s.TotalJobsFound, s.NewJobsAdded,
		s.JobsUpdated, s.DuplicatesFound, s.Errors, string(s.Status), s.StartedAt,
		s.CompletedAt, s.DurationMs, string(s.TriggeredBy), s.TriggeredByUserID, s.Country,
		s.ErrorMessage,
	}, nil
}

func scanSession(row pgx.Row) (*model.ScrapeSession, error) {
	var (
		s               model.ScrapeSession
		stats           []byte
		status, trigger string
	)
	err := row.Scan(&s.ID, &s.BucketsRequested, &s.BucketsCompleted, &s.BucketsFailed,
		&s.BucketsSkipped, &stats, &s.TotalAPICalls, &s.TotalJobsFound, &s.NewJobsAdded,
		&s.JobsUpdated, &s.DuplicatesFound, &s.Errors, &status, &s.StartedAt, &s.CompletedAt,
		&s.DurationMs, &trigger, &s.TriggeredByUserID, &s.Country, &s.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &s.BucketStats); err != nil {
			return nil, fmt.Errorf("decode bucket stats: %w", err)
		}
	}
	s.Status = model.SessionStatus(status)
	s.TriggeredBy = model.Trigger(trigger)
	return &s, nil
}

func (s *Store) CreateSession(ctx context.Context, session *model.ScrapeSession) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	query := `INSERT INTO scrape_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20)`
	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return wrap("create session", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *model.ScrapeSession) error {
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	query := `
		UPDATE scrape_sessions SET buckets_requested = $2, buckets_completed = $3,
			buckets_failed = $4, buckets_skipped = $5, bucket_stats = $6,
			total_api_calls = $7, total_jobs_found = $8, new_jobs_added = $9,
			jobs_updated = $10, duplicates_found = $11, errors = $12, status = $13,
			started_at = $14, completed_at = $15, duration_ms = $16, triggered_by = $17,
			triggered_by_user_id = $18, country = $19, error_message = $20
		WHERE id = $1`
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return wrap("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.ScrapeSession, error) {
	row := s.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM scrape_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		return nil, wrap("get session", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]*model.ScrapeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM scrape_sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list sessions", err)
	}
	defer rows.Close()

	var sessions []*model.ScrapeSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, wrap("list sessions", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list sessions", err)
	}
	return sessions, nil
}
