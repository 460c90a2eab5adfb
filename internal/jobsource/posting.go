package jobsource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
)

const defaultCurrency = "INR"

// upstreamJob lists every key name the provider has been seen to use.
type upstreamJob struct {
	ID             string `json:"id"`
	JobID          string `json:"jobId"`
	Title          string `json:"title"`
	JobTitle       string `json:"jobTitle"`
	CompanyName    string `json:"companyName"`
	Company        any    `json:"company"`
	Location       any    `json:"location"`
	JobLocation    string `json:"jobLocation"`
	Description    string `json:"description"`
	JobDescription string `json:"jobDescription"`

	Requirements     []string `json:"requirements"`
	Qualifications   []string `json:"qualifications"`
	Responsibilities []string `json:"responsibilities"`

	Salary any `json:"salary"`

	PostedDate     string   `json:"postedDate"`
	DatePosted     string   `json:"datePosted"`
	JobType        string   `json:"jobType"`
	EmploymentType string   `json:"employmentType"`
	CareerLevel    string   `json:"careerLevel"`
	JobLevel       string   `json:"jobLevel"`
	Domain         string   `json:"domain"`
	TechStack      []string `json:"techStack"`
	Skills         []string `json:"skills"`
	WorkMode       string   `json:"workMode"`

	ApplyURL       string `json:"applyUrl"`
	ApplicationURL string `json:"applicationUrl"`
	SourceURL      string `json:"sourceUrl"`
	JobURL         string `json:"jobUrl"`
}

// mapPostings converts a result page. Items that do not decode are logged and
// skipped so one bad record does not cost the rest of the page.
func (c *Client) mapPostings(items []map[string]any) []model.RawJobPosting {
	postings := make([]model.RawJobPosting, 0, len(items))
	for i, item := range items {
		posting, err := c.mapPosting(item)
		if err != nil {
			c.logger.Warn("skipping undecodable posting",
				zap.Int("index", i),
				zap.Any("id", firstNonNil(item["id"], item["jobId"])),
				zap.Error(err),
			)
			continue
		}
		postings = append(postings, posting)
	}
	return postings
}

func (c *Client) mapPosting(item map[string]any) (model.RawJobPosting, error) {
	var job upstreamJob
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &job,
	})
	if err != nil {
		return model.RawJobPosting{}, err
	}

	if err := decoder.Decode(item); err != nil {
		return model.RawJobPosting{}, fmt.Errorf("mapping posting: %w", err)
	}

	title := firstNonEmpty(job.Title, job.JobTitle)
	description := firstNonEmpty(job.Description, job.JobDescription)

	posting := model.RawJobPosting{
		ExternalID:       firstNonEmpty(job.ID, job.JobID),
		Source:           c.source,
		Title:            title,
		Company:          firstNonEmpty(job.CompanyName, nameOf(job.Company)),
		Location:         firstNonEmpty(nameOf(job.Location), job.JobLocation),
		Description:      description,
		Requirements:     append(job.Requirements, job.Qualifications...),
		Responsibilities: job.Responsibilities,
		Salary:           formatSalary(job.Salary),
		ApplyURL:         firstNonEmpty(job.ApplyURL, job.ApplicationURL),
		JobURL:           firstNonEmpty(job.SourceURL, job.JobURL),
		PostedDate:       firstNonEmpty(job.PostedDate, job.DatePosted),
		HintCareerLevel:  model.ParseCareerLevel(firstNonEmpty(job.CareerLevel, job.JobLevel)),
		HintDomain:       model.ParseDomain(job.Domain),
		HintWorkMode:     model.ParseWorkMode(job.WorkMode),
		HintTechStack:    job.TechStack,
	}

	if len(posting.HintTechStack) == 0 {
		posting.HintTechStack = job.Skills
	}
	if posting.HintDomain == "" {
		posting.HintDomain = guessDomain(title)
	}
	if len(posting.HintTechStack) == 0 {
		posting.HintTechStack = guessTechStack(description)
	}
	if posting.HintWorkMode == "" {
		posting.HintWorkMode = guessWorkMode(description + " " + job.JobType + " " + job.EmploymentType)
	}

	return posting, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// nameOf accepts either a plain string or an object with a name-like key.
func nameOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		for _, key := range []string{"name", "display_name", "displayName", "city"} {
			if s, ok := val[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func formatSalary(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any:
		currency, _ := val["currency"].(string)
		if currency == "" {
			currency = defaultCurrency
		}
		lo, hi := amount(val["min"]), amount(val["max"])
		switch {
		case lo != "" && hi != "":
			return fmt.Sprintf("%s %s-%s", currency, lo, hi)
		case lo != "":
			return fmt.Sprintf("%s %s+", currency, lo)
		case hi != "":
			return fmt.Sprintf("%s up to %s", currency, hi)
		}
	}
	return ""
}

func amount(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case string:
		return strings.TrimSpace(val)
	}
	return ""
}
