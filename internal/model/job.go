package model

import (
	"strings"
	"time"
)

// CareerLevel is the seniority inferred for a posting or declared by a user.
type CareerLevel string

const (
	LevelFresher CareerLevel = "fresher"
	LevelJunior  CareerLevel = "junior"
	LevelMid     CareerLevel = "mid"
	LevelSenior  CareerLevel = "senior"
	LevelLead    CareerLevel = "lead"
)

var levelOrdinals = map[CareerLevel]int{
	LevelFresher: 0,
	LevelJunior:  1,
	LevelMid:     2,
	LevelSenior:  3,
	LevelLead:    4,
}

// Ordinal returns the position of the level on the fresher..lead scale.
// The second value is false for unknown levels.
func (l CareerLevel) Ordinal() (int, bool) {
	o, ok := levelOrdinals[CareerLevel(strings.ToLower(string(l)))]
	return o, ok
}

func (l CareerLevel) Valid() bool {
	_, ok := l.Ordinal()
	return ok
}

// ParseCareerLevel returns the canonical level or an empty value.
func ParseCareerLevel(s string) CareerLevel {
	l := CareerLevel(strings.ToLower(strings.TrimSpace(s)))
	if l.Valid() {
		return l
	}
	return ""
}

type Domain string

const (
	DomainSoftware Domain = "software"
	DomainData     Domain = "data"
	DomainCloud    Domain = "cloud"
	DomainMobile   Domain = "mobile"
	DomainQA       Domain = "qa"
	DomainNonTech  Domain = "non-tech"
)

func (d Domain) Valid() bool {
	switch d {
	case DomainSoftware, DomainData, DomainCloud, DomainMobile, DomainQA, DomainNonTech:
		return true
	}
	return false
}

func ParseDomain(s string) Domain {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if d.Valid() {
		return d
	}
	return ""
}

type WorkMode string

const (
	WorkModeRemote WorkMode = "remote"
	WorkModeOnsite WorkMode = "onsite"
	WorkModeHybrid WorkMode = "hybrid"
)

func (m WorkMode) Valid() bool {
	switch m {
	case WorkModeRemote, WorkModeOnsite, WorkModeHybrid:
		return true
	}
	return false
}

func ParseWorkMode(s string) WorkMode {
	m := WorkMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return ""
}

type ParseQuality string

const (
	QualityHigh   ParseQuality = "high"
	QualityMedium ParseQuality = "medium"
	QualityLow    ParseQuality = "low"
)

// Job statuses stored alongside persisted jobs.
const (
	JobStatusActive   = "active"
	JobStatusInactive = "inactive"
)

// RawJobPosting is a loosely mapped posting as returned by a job source.
// Hint fields carry the source's own best-effort inference and are only
// consulted when the canonical inference finds nothing.
type RawJobPosting struct {
	ExternalID       string   `json:"externalId,omitempty"`
	Source           string   `json:"source,omitempty"`
	Title            string   `json:"title,omitempty"`
	Company          string   `json:"company,omitempty"`
	Location         string   `json:"location,omitempty"`
	Description      string   `json:"description,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Salary           string   `json:"salary,omitempty"`
	ApplyURL         string   `json:"applyUrl,omitempty"`
	JobURL           string   `json:"jobUrl,omitempty"`
	PostedDate       string   `json:"postedDate,omitempty"`

	HintDomain      Domain      `json:"hintDomain,omitempty"`
	HintWorkMode    WorkMode    `json:"hintWorkMode,omitempty"`
	HintCareerLevel CareerLevel `json:"hintCareerLevel,omitempty"`
	HintTechStack   []string    `json:"hintTechStack,omitempty"`
}

// NormalizedJob is a posting converted into the canonical schema.
type NormalizedJob struct {
	ExternalJobID      string       `json:"externalJobId" bson:"external_job_id"`
	SyntheticID        bool         `json:"syntheticId,omitempty" bson:"synthetic_id"`
	Source             string       `json:"source" bson:"source"`
	Bucket             string       `json:"bucket,omitempty" bson:"bucket"`
	Title              string       `json:"title" bson:"title"`
	CompanyName        string       `json:"companyName" bson:"company_name"`
	Location           string       `json:"location,omitempty" bson:"location"`
	Description        string       `json:"description,omitempty" bson:"description"`
	Requirements       []string     `json:"requirements" bson:"requirements"`
	Responsibilities   []string     `json:"responsibilities" bson:"responsibilities"`
	ApplyURL           string       `json:"applyUrl,omitempty" bson:"apply_url"`
	Salary             string       `json:"salary,omitempty" bson:"salary"`
	CareerLevel        CareerLevel  `json:"careerLevel" bson:"career_level"`
	Domain             Domain       `json:"domain,omitempty" bson:"domain"`
	TechStack          []string     `json:"techStack" bson:"tech_stack"`
	ExperienceRequired *int         `json:"experienceRequired,omitempty" bson:"experience_required,omitempty"`
	WorkMode           WorkMode     `json:"workMode,omitempty" bson:"work_mode"`
	BatchEligible      bool         `json:"batchEligible" bson:"batch_eligible"`
	NormalizedTitle    string       `json:"normalizedTitle" bson:"normalized_title"`
	NormalizedCompany  string       `json:"normalizedCompany" bson:"normalized_company"`
	FetchedAt          time.Time    `json:"fetchedAt" bson:"fetched_at"`
	ExpiryDate         time.Time    `json:"expiryDate" bson:"expiry_date"`
	PostedAt           *time.Time   `json:"postedAt,omitempty" bson:"posted_at,omitempty"`
	IsActive           bool         `json:"isActive" bson:"is_active"`
	ParseQuality       ParseQuality `json:"parseQuality" bson:"parse_quality"`
	ParseConfidence    int          `json:"parseConfidence" bson:"parse_confidence"`
}

// Job is the persisted aggregate created on first sight of an external id.
type Job struct {
	ID            string `json:"id" bson:"_id"`
	NormalizedJob `bson:",inline"`
	Status        string    `json:"status" bson:"status"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

// NewJob builds a persisted job from normalized fields.
func NewJob(n NormalizedJob, now time.Time) *Job {
	status := JobStatusInactive
	if n.IsActive {
		status = JobStatusActive
	}
	return &Job{
		NormalizedJob: n,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Expired reports whether the job's expiry date is before now.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiryDate.IsZero() && j.ExpiryDate.Before(now)
}
