package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/store"
)

// Store keeps everything in process memory. Transactions snapshot the job
// collection and restore it when fn fails; writes made outside the
// transaction while it runs are lost on rollback.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	seq      int
	jobs     map[string]*model.Job
	byExtID  map[string]string
	sessions map[string]*model.ScrapeSession
	matches  map[string]*model.JobMatch
}

func New() *Store {
	return &Store{
		jobs:     make(map[string]*model.Job),
		byExtID:  make(map[string]string),
		sessions: make(map[string]*model.ScrapeSession),
		matches:  make(map[string]*model.JobMatch),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) FindByExternalID(_ context.Context, externalID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExtID[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(s.jobs[id]), nil
}

func (s *Store) Insert(_ context.Context, job *model.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byExtID[job.ExternalJobID]; ok {
		return "", fmt.Errorf("job with external id %q already exists", job.ExternalJobID)
	}

	s.seq++
	id := strconv.Itoa(s.seq)
	stored := cloneJob(job)
	stored.ID = id
	s.jobs[id] = stored
	s.byExtID[job.ExternalJobID] = id

	return id, nil
}

func (s *Store) Update(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return store.ErrNotFound
	}

	if existing.ExternalJobID != job.ExternalJobID {
		delete(s.byExtID, existing.ExternalJobID)
		s.byExtID[job.ExternalJobID] = job.ID
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *Store) FindDuplicates(_ context.Context, title, company, location string) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Job
	for _, id := range s.sortedJobIDs() {
		job := s.jobs[id]
		if job.NormalizedTitle != title || job.NormalizedCompany != company {
			continue
		}
		if location != "" && job.Location != location {
			continue
		}
		out = append(out, cloneJob(job))
	}
	return out, nil
}

func (s *Store) ListActive(_ context.Context, now time.Time, limit int) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Job
	for _, id := range s.sortedJobIDs() {
		job := s.jobs[id]
		if job.Status != model.JobStatusActive || !job.IsActive || job.Expired(now) {
			continue
		}
		out = append(out, cloneJob(job))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.JobStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	jobs := make(map[string]*model.Job, len(s.jobs))
	for id, job := range s.jobs {
		jobs[id] = cloneJob(job)
	}
	byExtID := make(map[string]string, len(s.byExtID))
	for k, v := range s.byExtID {
		byExtID[k] = v
	}
	seq := s.seq
	s.mu.RUnlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.jobs, s.byExtID, s.seq = jobs, byExtID, seq
		s.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) sortedJobIDs() []string {
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}

func (s *Store) CreateSession(_ context.Context, session *model.ScrapeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *Store) UpdateSession(_ context.Context, session *model.ScrapeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return store.ErrNotFound
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*model.ScrapeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *Store) ListSessions(_ context.Context, limit int) ([]*model.ScrapeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ScrapeSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchKey(userID, jobID string) string {
	return userID + "\x00" + jobID
}

func (s *Store) SaveMatches(_ context.Context, matches []*model.JobMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range matches {
		key := matchKey(m.UserID, m.JobID)
		stored := *m
		if existing, ok := s.matches[key]; ok {
			stored.CreatedAt = existing.CreatedAt
		}
		s.matches[key] = &stored
	}
	return nil
}

func (s *Store) ListMatches(_ context.Context, userID string, minScore int) ([]*model.JobMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.JobMatch
	for key, m := range s.matches {
		if !strings.HasPrefix(key, userID+"\x00") || m.Score.TotalScore < minScore {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.TotalScore != out[j].Score.TotalScore {
			return out[i].Score.TotalScore > out[j].Score.TotalScore
		}
		return out[i].JobID < out[j].JobID
	})
	return out, nil
}

func (s *Store) Close(context.Context) error {
	return nil
}

func cloneJob(j *model.Job) *model.Job {
	cp := *j
	cp.Requirements = slices.Clone(j.Requirements)
	cp.Responsibilities = slices.Clone(j.Responsibilities)
	cp.TechStack = slices.Clone(j.TechStack)
	return &cp
}

func cloneSession(s *model.ScrapeSession) *model.ScrapeSession {
	cp := *s
	cp.BucketsRequested = slices.Clone(s.BucketsRequested)
	cp.BucketsCompleted = slices.Clone(s.BucketsCompleted)
	cp.BucketsFailed = slices.Clone(s.BucketsFailed)
	cp.BucketsSkipped = slices.Clone(s.BucketsSkipped)
	cp.BucketStats = slices.Clone(s.BucketStats)
	return &cp
}
