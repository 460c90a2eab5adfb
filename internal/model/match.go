package model

import "time"

// MatchScore is the 6-factor compatibility score of a job for a profile.
type MatchScore struct {
	TotalScore      int      `json:"totalScore" bson:"total_score"`
	SkillScore      int      `json:"skillScore" bson:"skill_score"`
	RoleScore       int      `json:"roleScore" bson:"role_score"`
	LevelScore      int      `json:"levelScore" bson:"level_score"`
	ExperienceScore int      `json:"experienceScore" bson:"experience_score"`
	LocationScore   int      `json:"locationScore" bson:"location_score"`
	WorkModeScore   int      `json:"workModeScore" bson:"work_mode_score"`
	Breakdown       []string `json:"breakdown" bson:"breakdown"`
	MatchReasons    []string `json:"matchReasons" bson:"match_reasons"`
	SkillGaps       []string `json:"skillGaps" bson:"skill_gaps"`
}

type MatchType string

const (
	MatchExcellent MatchType = "excellent"
	MatchGood      MatchType = "good"
	MatchOkay      MatchType = "okay"
	MatchPoor      MatchType = "poor"
)

const MatchStatusMatched = "matched"

// JobMatch is a persisted match of one job for one user.
type JobMatch struct {
	UserID        string     `json:"userId" bson:"user_id"`
	JobID         string     `json:"jobId" bson:"job_id"`
	ExternalJobID string     `json:"externalJobId" bson:"external_job_id"`
	Score         MatchScore `json:"score" bson:"score"`
	MatchType     MatchType  `json:"matchType" bson:"match_type"`
	Status        string     `json:"status" bson:"status"`
	CreatedAt     time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updated_at"`
}
