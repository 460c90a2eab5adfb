package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/jobintel/internal/model"
)

const (
	DefaultExpiry  = 30 * 24 * time.Hour
	untitled       = "Untitled"
	unknownCompany = "Unknown"
	unknownSource  = "unknown"
)

// IDStrategy decides how postings without an upstream id are keyed.
type IDStrategy string

const (
	// IDRandom gives every id-less posting a fresh id. Such postings are
	// inserted again on every run.
	IDRandom IDStrategy = "random"
	// IDFingerprint derives the id from title, company and location so a
	// repeated posting updates the stored one.
	IDFingerprint IDStrategy = "fingerprint"
)

type Config struct {
	Expiry     time.Duration
	IDStrategy IDStrategy
	Vocabulary *Vocabulary
}

// Normalizer converts raw postings into the canonical schema. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	vocab      *Vocabulary
	expiry     time.Duration
	idStrategy IDStrategy
	timeNow    func() time.Time
	newID      func() string
}

// New creates a normalizer with real time and random ids.
func New(cfg Config) *Normalizer {
	return NewWithClock(cfg, time.Now, uuid.NewString)
}

// NewWithClock creates a normalizer with injectable time and id sources.
func NewWithClock(cfg Config, timeNow func() time.Time, newID func() string) *Normalizer {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = DefaultVocabulary()
	}
	if cfg.IDStrategy == "" {
		cfg.IDStrategy = IDRandom
	}

	return &Normalizer{
		vocab:      cfg.Vocabulary,
		expiry:     cfg.Expiry,
		idStrategy: cfg.IDStrategy,
		timeNow:    timeNow,
		newID:      newID,
	}
}

func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

// Normalize never fails: missing fields get defaults and lower quality.
func (n *Normalizer) Normalize(raw model.RawJobPosting, bucket string) model.NormalizedJob {
	now := n.timeNow()

	rawTitle := strings.TrimSpace(raw.Title)
	rawCompany := strings.TrimSpace(raw.Company)
	description := plainText(raw.Description)
	requirements := splitLines(raw.Requirements)
	responsibilities := splitLines(raw.Responsibilities)

	text := strings.Join([]string{rawTitle, description, strings.Join(requirements, " ")}, " ")

	techStack := n.vocab.DetectTechStack(text)
	if len(techStack) == 0 {
		techStack = append(techStack, raw.HintTechStack...)
	}

	level := n.vocab.DetectCareerLevel(text)
	domain := n.vocab.DetectDomain(text)
	if domain == "" {
		domain = raw.HintDomain
	}
	workMode := n.vocab.DetectWorkMode(text)
	if workMode == "" {
		workMode = raw.HintWorkMode
	}

	applyURL := strings.TrimSpace(raw.ApplyURL)
	if applyURL == "" {
		applyURL = strings.TrimSpace(raw.JobURL)
	}

	quality, confidence := ScoreParseQuality(QualityInput{
		HasTitle:       rawTitle != "",
		HasCompany:     rawCompany != "",
		Description:    description,
		TechStackCount: len(techStack),
		CareerLevel:    level,
		Domain:         domain,
		HasURL:         applyURL != "",
	})

	job := model.NormalizedJob{
		ExternalJobID:      strings.TrimSpace(raw.ExternalID),
		Source:             strings.TrimSpace(raw.Source),
		Bucket:             bucket,
		Title:              orDefault(rawTitle, untitled),
		CompanyName:        orDefault(rawCompany, unknownCompany),
		Location:           strings.TrimSpace(raw.Location),
		Description:        description,
		Requirements:       requirements,
		Responsibilities:   responsibilities,
		ApplyURL:           applyURL,
		Salary:             strings.TrimSpace(raw.Salary),
		CareerLevel:        level,
		Domain:             domain,
		TechStack:          techStack,
		ExperienceRequired: ExtractExperience(text),
		WorkMode:           workMode,
		BatchEligible:      n.vocab.IsBatchEligible(text, level),
		NormalizedTitle:    lower(rawTitle),
		NormalizedCompany:  lower(rawCompany),
		FetchedAt:          now,
		ExpiryDate:         now.Add(n.expiry),
		PostedAt:           parsePostedDate(raw.PostedDate),
		IsActive:           true,
		ParseQuality:       quality,
		ParseConfidence:    confidence,
	}

	if job.Source == "" {
		job.Source = unknownSource
	}

	if job.ExternalJobID == "" {
		job.ExternalJobID = n.syntheticID(job, now)
		job.SyntheticID = true
	}

	return job
}

// NormalizeBatch normalizes raws in order under the same bucket.
func (n *Normalizer) NormalizeBatch(raws []model.RawJobPosting, bucket string) []model.NormalizedJob {
	out := make([]model.NormalizedJob, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw, bucket))
	}
	return out
}

func (n *Normalizer) syntheticID(job model.NormalizedJob, now time.Time) string {
	if n.idStrategy == IDFingerprint {
		sum := sha256.Sum256([]byte(strings.Join([]string{
			job.Source, job.NormalizedTitle, job.NormalizedCompany, lower(job.Location),
		}, "|")))
		return "fp_" + hex.EncodeToString(sum[:16])
	}
	return fmt.Sprintf("ext_%d_%s", now.UnixMilli(), n.newID())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var postedLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parsePostedDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
