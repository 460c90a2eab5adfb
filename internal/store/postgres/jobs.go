package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

const jobColumns = `id::text, external_job_id, synthetic_id, source, bucket, title, company_name,
	location, description, requirements, responsibilities, apply_url, salary, career_level,
	domain, tech_stack, experience_required, work_mode, batch_eligible, normalized_title,
	normalized_company, fetched_at, expiry_date, posted_at, is_active, parse_quality,
	parse_confidence, status, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j                                     model.Job
		level, domain, workMode, quality      string
		requirements, responsibilities, stack []string
	)

	err := row.Scan(&j.ID, &j.ExternalJobID, &j.SyntheticID, &j.Source, &j.Bucket, &j.Title,
		&j.CompanyName, &j.Location, &j.Description, &requirements, &responsibilities,
		&j.ApplyURL, &j.Salary, &level, &domain, &stack, &j.ExperienceRequired, &workMode,
		&j.BatchEligible, &j.NormalizedTitle, &j.NormalizedCompany, &j.FetchedAt,
		&j.ExpiryDate, &j.PostedAt, &j.IsActive, &quality, &j.ParseConfidence, &j.Status,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.Requirements = nonNil(requirements)
	j.Responsibilities = nonNil(responsibilities)
	j.TechStack = nonNil(stack)
	j.CareerLevel = model.CareerLevel(level)
	j.Domain = model.Domain(domain)
	j.WorkMode = model.WorkMode(workMode)
	j.ParseQuality = model.ParseQuality(quality)

	return &j, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*model.Job, error) {
	row := s.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE external_job_id = $1`, externalID)
	job, err := scanJob(row)
	if err != nil {
		return nil, wrap("find job by external id", err)
	}
	return job, nil
}

func (s *Store) Insert(ctx context.Context, job *model.Job) (string, error) {
	query := `
		INSERT INTO jobs (external_job_id, synthetic_id, source, bucket, title, company_name,
			location, description, requirements, responsibilities, apply_url, salary,
			career_level, domain, tech_stack, experience_required, work_mode, batch_eligible,
			normalized_title, normalized_company, fetched_at, expiry_date, posted_at,
			is_active, parse_quality, parse_confidence, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, query, jobArgs(job)...).Scan(&id)
	if err != nil {
		return "", wrap("insert job", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) Update(ctx context.Context, job *model.Job) error {
	id, err := strconv.ParseInt(job.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("job id %q: %w", job.ID, store.ErrNotFound)
	}

	query := `
		UPDATE jobs SET external_job_id = $1, synthetic_id = $2, source = $3, bucket = $4,
			title = $5, company_name = $6, location = $7, description = $8,
			requirements = $9, responsibilities = $10, apply_url = $11, salary = $12,
			career_level = $13, domain = $14, tech_stack = $15, experience_required = $16,
			work_mode = $17, batch_eligible = $18, normalized_title = $19,
			normalized_company = $20, fetched_at = $21, expiry_date = $22, posted_at = $23,
			is_active = $24, parse_quality = $25, parse_confidence = $26, status = $27,
			created_at = $28, updated_at = $29
		WHERE id = $30`

	tag, err := s.q.Exec(ctx, query, append(jobArgs(job), id)...)
	if err != nil {
		return wrap("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func jobArgs(j *model.Job) []any {
	return []any{
		j.ExternalJobID, j.SyntheticID, j.Source, j.Bucket, j.Title, j.CompanyName,
		j.Location, j.Description, nonNil(j.Requirements), nonNil(j.Responsibilities),
		j.ApplyURL, j.Salary, string(j.CareerLevel), string(j.Domain), nonNil(j.TechStack),
		j.ExperienceRequired, string(j.WorkMode), j.BatchEligible, j.NormalizedTitle,
		j.NormalizedCompany, j.FetchedAt, j.ExpiryDate, j.PostedAt, j.IsActive,
		string(j.ParseQuality), j.ParseConfidence, j.Status, j.CreatedAt, j.UpdatedAt,
	}
}

func (s *Store) FindDuplicates(ctx context.Context, title, company, location string) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE normalized_title = $1 AND normalized_company = $2 AND ($3 = '' OR location = $3)
		ORDER BY id`
	return s.queryJobs(ctx, "find duplicates", query, title, company, location)
}

func (s *Store) ListActive(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE status = 'active' AND is_active AND expiry_date >= $1
		ORDER BY id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryJobs(ctx, "list active jobs", query, args...)
}

func (s *Store) queryJobs(ctx context.Context, op, query string, args ...any) ([]*model.Job, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return jobs, nil
}
