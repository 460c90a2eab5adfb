package model

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionPartial    SessionStatus = "partial"
)

// Trigger names what started a scrape session.
type Trigger string

const (
	TriggerAdmin     Trigger = "admin"
	TriggerScheduler Trigger = "scheduler"
	TriggerUser      Trigger = "user"
	TriggerQueue     Trigger = "queue"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerAdmin, TriggerScheduler, TriggerUser, TriggerQueue:
		return true
	}
	return false
}

// BucketStats are the counters collected while scraping one bucket.
type BucketStats struct {
	Bucket     string        `json:"bucket" bson:"bucket"`
	Found      int           `json:"found" bson:"found"`
	Normalized int           `json:"normalized" bson:"normalized"`
	Inserted   int           `json:"inserted" bson:"inserted"`
	Updated    int           `json:"updated" bson:"updated"`
	Duplicates int           `json:"duplicates" bson:"duplicates"`
	Errors     int           `json:"errors" bson:"errors"`
	// APICalls counts successful provider calls, the ones charged to the
	// monthly budget. Failed attempts are not included.
	APICalls   int           `json:"apiCalls" bson:"api_calls"`
	StartedAt  time.Time     `json:"startedAt" bson:"started_at"`
	Duration   time.Duration `json:"duration" bson:"duration"`
	Skipped    bool          `json:"skipped,omitempty" bson:"skipped"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
}

// ScrapeSession is one orchestrator run across buckets.
type ScrapeSession struct {
	ID                string        `json:"sessionId" bson:"_id"`
	BucketsRequested  []string      `json:"bucketsRequested" bson:"buckets_requested"`
	BucketsCompleted  []string      `json:"bucketsCompleted" bson:"buckets_completed"`
	BucketsFailed     []string      `json:"bucketsFailed" bson:"buckets_failed"`
	BucketsSkipped    []string      `json:"bucketsSkipped" bson:"buckets_skipped"`
	BucketStats       []BucketStats `json:"bucketStats" bson:"bucket_stats"`
	TotalAPICalls     int           `json:"totalApiCalls" bson:"total_api_calls"` // successful calls only
	TotalJobsFound    int           `json:"totalJobsFound" bson:"total_jobs_found"`
	NewJobsAdded      int           `json:"newJobsAdded" bson:"new_jobs_added"`
	JobsUpdated       int           `json:"jobsUpdated" bson:"jobs_updated"`
	DuplicatesFound   int           `json:"duplicatesFound" bson:"duplicates_found"`
	Errors            int           `json:"errors" bson:"errors"`
	Status            SessionStatus `json:"status" bson:"status"`
	StartedAt         time.Time     `json:"startedAt" bson:"started_at"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	DurationMs        int64         `json:"durationMs" bson:"duration_ms"`
	TriggeredBy       Trigger       `json:"triggeredBy" bson:"triggered_by"`
	TriggeredByUserID string        `json:"triggeredByUserId,omitempty" bson:"triggered_by_user_id,omitempty"`
	Country           string        `json:"country" bson:"country"`
	ErrorMessage      string        `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
}

// AddBucket folds the bucket counters into the session totals.
func (s *ScrapeSession) AddBucket(b BucketStats) {
	s.BucketStats = append(s.BucketStats, b)
	s.TotalAPICalls += b.APICalls
	s.TotalJobsFound += b.Found
	s.NewJobsAdded += b.Inserted
	s.JobsUpdated += b.Updated
	s.DuplicatesFound += b.Duplicates
	s.Errors += b.Errors
}
