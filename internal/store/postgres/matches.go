package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/jobintel/internal/model"
)

// SaveMatches upserts all matches in one batch. created_at of an existing
// row is kept.
func (s *Store) SaveMatches(ctx context.Context, matches []*model.JobMatch) error {
	if len(matches) == 0 {
		return nil
	}

	query := `
		INSERT INTO job_matches (user_id, job_id, external_job_id, total_score, score,
			match_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, job_id) DO UPDATE SET
			external_job_id = EXCLUDED.external_job_id,
			total_score = EXCLUDED.total_score,
			score = EXCLUDED.score,
			match_type = EXCLUDED.match_type,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	for _, m := range matches {
		score, err := json.Marshal(m.Score)
		if err != nil {
			return fmt.Errorf("marshal match score: %w", err)
		}
		batch.Queue(query, m.UserID, m.JobID, m.ExternalJobID, m.Score.TotalScore, score,
			string(m.MatchType), m.Status, m.CreatedAt, m.UpdatedAt)
	}

	results := s.q.SendBatch(ctx, batch)
	defer results.Close()

	for range matches {
		if _, err := results.Exec(); err != nil {
			return wrap("save matches", err)
		}
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, userID string, minScore int) ([]*model.JobMatch, error) {
	rows, err := s.q.Query(ctx, `
		SELECT user_id, job_id, external_job_id, score, match_type, status, created_at, updated_at
		FROM job_matches
		WHERE user_id = $1 AND total_score >= $2
		ORDER BY total_score DESC, job_id`, userID, minScore)
	if err != nil {
		return nil, wrap("list matches", err)
	}
	defer rows.Close()

	var matches []*model.JobMatch
	for rows.Next() {
		var (
			m         model.JobMatch
			score     []byte
			matchType string
		)
		if err := rows.Scan(&m.UserID, &m.JobID, &m.ExternalJobID, &score, &matchType,
			&m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, wrap("list matches", err)
		}
		if err := json.Unmarshal(score, &m.Score); err != nil {
			return nil, fmt.Errorf("decode match score: %w", err)
		}
		m.MatchType = model.MatchType(matchType)
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list matches", err)
	}
	return matches, nil
}
