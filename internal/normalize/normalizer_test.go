package normalize

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobintel/internal/model"
)

var fixedNow = time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

func newTestNormalizer(strategy IDStrategy) *Normalizer {
	return NewWithClock(Config{IDStrategy: strategy}, func() time.Time { return fixedNow }, func() string { return "r4nd" })
}

func TestNormalize_SeniorBackendPosting(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	job := n.Normalize(model.RawJobPosting{
		Title:       "Senior Backend Engineer",
		Description: "5+ years Node.js AWS Docker",
		Company:     "Acme",
		ExternalID:  "ext-1",
	}, "software")

	assert.Equal(t, model.LevelSenior, job.CareerLevel)
	assert.Subset(t, job.TechStack, []string{"Node.js", "AWS", "Docker"})
	assert.Len(t, job.TechStack, 3)
	require.NotNil(t, job.ExperienceRequired)
	assert.Equal(t, 5, *job.ExperienceRequired)
	assert.Equal(t, model.DomainSoftware, job.Domain)
	assert.Equal(t, "ext-1", job.ExternalJobID)
	assert.False(t, job.SyntheticID)
	assert.Equal(t, "software", job.Bucket)
	assert.Equal(t, "senior backend engineer", job.NormalizedTitle)
	assert.Equal(t, "acme", job.NormalizedCompany)
	assert.Equal(t, fixedNow, job.FetchedAt)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), job.ExpiryDate)
	assert.True(t, job.IsActive)
	assert.Equal(t, "unknown", job.Source)
	assert.False(t, job.BatchEligible)
}

func TestNormalize_MissingTitleAndCompany(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	cases := []model.RawJobPosting{
		{},
		{Description: strings.Repeat("React developer with AWS, remote. ", 10), ApplyURL: "https://example.com"},
		{Title: "Backend developer", Description: strings.Repeat("Python Django on GCP. ", 10), JobURL: "https://example.com"},
		{Company: "Initech", Description: strings.Repeat("Java Spring developer. ", 10), ApplyURL: "https://example.com"},
	}

	for i, raw := range cases {
		job := n.Normalize(raw, "")
		assert.Equal(t, model.QualityLow, job.ParseQuality, "case %d", i)
		if raw.Title == "" {
			assert.Equal(t, "Untitled", job.Title, "case %d", i)
			assert.Equal(t, "", job.NormalizedTitle, "case %d", i)
		}
		if raw.Company == "" {
			assert.Equal(t, "Unknown", job.CompanyName, "case %d", i)
			assert.Equal(t, "", job.NormalizedCompany, "case %d", i)
		}
	}
}

func TestNormalize_ParseQuality(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	full := n.Normalize(model.RawJobPosting{
		Title:       "Software Engineer",
		Company:     "Acme",
		Description: strings.Repeat("Build services in Go and PostgreSQL. ", 5),
		ApplyURL:    "https://acme.example/apply",
	}, "")
	assert.Equal(t, model.QualityHigh, full.ParseQuality)
	assert.Equal(t, 100, full.ParseConfidence)

	// title, company, level, url = 55
	sparse := n.Normalize(model.RawJobPosting{
		Title:    "Receptionist",
		Company:  "Acme",
		ApplyURL: "https://acme.example/apply",
	}, "")
	assert.Equal(t, model.QualityMedium, sparse.ParseQuality)
	assert.Equal(t, 55, sparse.ParseConfidence)

	none := n.Normalize(model.RawJobPosting{}, "")
	assert.Equal(t, 15, none.ParseConfidence)
}

func TestNormalize_SyntheticIDs(t *testing.T) {
	raw := model.RawJobPosting{Title: "QA Engineer", Company: "Acme", Location: "Pune", Source: "openwebninja"}

	random := newTestNormalizer(IDRandom).Normalize(raw, "qa")
	assert.True(t, random.SyntheticID)
	assert.Equal(t, "ext_"+strconv.FormatInt(fixedNow.UnixMilli(), 10)+"_r4nd", random.ExternalJobID)

	fp := newTestNormalizer(IDFingerprint)
	a := fp.Normalize(raw, "qa")
	b := fp.Normalize(raw, "software")
	assert.True(t, strings.HasPrefix(a.ExternalJobID, "fp_"))
	assert.Equal(t, a.ExternalJobID, b.ExternalJobID)

	raw.Company = "Globex"
	assert.NotEqual(t, a.ExternalJobID, fp.Normalize(raw, "qa").ExternalJobID)
}

func TestNormalize_TextFields(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	job := n.Normalize(model.RawJobPosting{
		Title:            "  Flutter App Developer ",
		Company:          " Globex ",
		Description:      "<p>Build <b>Flutter</b> apps.</p><ul><li>Work from home</li></ul>",
		Requirements:     []string{"2 years Dart\n\n  Flutter  ", "Campus hiring for final year students"},
		Responsibilities: []string{"Ship features"},
		JobURL:           "https://globex.example/jobs/1",
		PostedDate:       "2026-09-15",
		HintTechStack:    []string{"dart"},
	}, "mobile")

	assert.Equal(t, "Flutter App Developer", job.Title)
	assert.Equal(t, "flutter app developer", job.NormalizedTitle)
	assert.Equal(t, "globex", job.NormalizedCompany)
	assert.NotContains(t, job.Description, "<")
	assert.Contains(t, job.Description, "Build Flutter apps.")
	assert.Equal(t, []string{"2 years Dart", "Flutter", "Campus hiring for final year students"}, job.Requirements)
	assert.Equal(t, []string{"Ship features"}, job.Responsibilities)
	assert.Equal(t, "https://globex.example/jobs/1", job.ApplyURL)
	assert.Equal(t, []string{"Flutter"}, job.TechStack)
	assert.Equal(t, model.WorkModeRemote, job.WorkMode)
	assert.Equal(t, model.LevelJunior, job.CareerLevel)
	assert.True(t, job.BatchEligible)
	require.NotNil(t, job.PostedAt)
	assert.Equal(t, 15, job.PostedAt.Day())
}

func TestNormalize_HintsAreFallbackOnly(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	job := n.Normalize(model.RawJobPosting{
		Title:         "Office Manager",
		Company:       "Acme",
		HintDomain:    model.DomainData,
		HintWorkMode:  model.WorkModeRemote,
		HintTechStack: []string{"excel"},
	}, "")
	assert.Equal(t, model.DomainData, job.Domain)
	assert.Equal(t, model.WorkModeOnsite, job.WorkMode, "canonical inference wins over hints")
	assert.Equal(t, []string{"excel"}, job.TechStack)
}

func TestNormalizeBatch_PreservesOrder(t *testing.T) {
	n := newTestNormalizer(IDRandom)

	jobs := n.NormalizeBatch([]model.RawJobPosting{
		{ExternalID: "a", Title: "Data Scientist"},
		{ExternalID: "b", Title: "QA Engineer"},
		{ExternalID: "c", Title: "Sales Lead"},
	}, "data")

	require.Len(t, jobs, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, jobs[i].ExternalJobID)
		assert.Equal(t, "data", jobs[i].Bucket)
	}
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domains:
  - domain: data
    keywords: ["etl"]
default-level: mid
`), 0o600))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, model.DomainData, v.DetectDomain("ETL pipelines"))
	assert.Equal(t, model.Domain(""), v.DetectDomain("backend developer"))
	assert.Equal(t, model.LevelMid, v.DetectCareerLevel("nothing here"))
	assert.NotEmpty(t, v.TechStack)

	require.NoError(t, os.WriteFile(path, []byte("domains:\n  - domain: art\n    keywords: [paint]\n"), 0o600))
	_, err = LoadVocabulary(path)
	require.Error(t, err)
}
