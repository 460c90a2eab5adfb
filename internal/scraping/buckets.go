package scraping

import (
	"fmt"
	"strings"
)

// Bucket is one topical search query scraped per session.
type Bucket struct {
	Name        string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Query       string `mapstructure:"query" json:"query" yaml:"query" validate:"required"`
	Description string `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
}

// DefaultBuckets are used when the configuration defines none.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "fresher", Query: "fresher jobs India", Description: "Entry-level positions"},
		{Name: "batch", Query: "batch jobs India placement", Description: "Campus placement opportunities"},
		{Name: "software", Query: "software engineer India", Description: "General software positions"},
		{Name: "data", Query: "data scientist engineer India", Description: "Data and analytics roles"},
		{Name: "cloud", Query: "cloud devops engineer India", Description: "Cloud infrastructure roles"},
		{Name: "mobile", Query: "mobile app developer India", Description: "Mobile app development"},
		{Name: "qa", Query: "qa automation tester India", Description: "Quality assurance roles"},
		{Name: "experience", Query: "senior engineer India 5 years", Description: "Experienced positions"},
		{Name: "remote", Query: "remote work from home India", Description: "Remote work opportunities"},
		{Name: "frontend", Query: "frontend react developer India", Description: "Frontend development"},
		{Name: "backend", Query: "backend nodejs python engineer India", Description: "Backend development"},
	}
}

// SelectBuckets returns the buckets named in names, in the order given.
// An empty selection means every bucket. Unknown names are an error.
func SelectBuckets(all []Bucket, names []string) ([]Bucket, error) {
	if len(names) == 0 {
		return append([]Bucket(nil), all...), nil
	}

	byName := make(map[string]Bucket, len(all))
	for _, b := range all {
		byName[b.Name] = b
	}

	var (
		selected []Bucket
		unknown  []string
	)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		b, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, b)
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown buckets: %s (known: %s)", strings.Join(unknown, ", "), strings.Join(BucketNames(all), ", "))
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no buckets selected")
	}
	return selected, nil
}

func BucketNames(buckets []Bucket) []string {
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names
}
