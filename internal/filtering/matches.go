package filtering

import "github.com/spigell/jobintel/internal/matching"

// Matches is the list the filters narrow down. Order is preserved.
type Matches struct {
	Items []matching.Ranked
}

func NewMatches(items []matching.Ranked) *Matches {
	return &Matches{Items: items}
}

func (m *Matches) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Items)
}

// Exclude removes every match drop reports true for and returns the ids of
// the removed jobs.
func (m *Matches) Exclude(drop func(matching.Ranked) bool) []string {
	var excluded []string
	kept := m.Items[:0]
	for _, item := range m.Items {
		if drop(item) {
			excluded = append(excluded, item.Job.ID)
			continue
		}
		kept = append(kept, item)
	}
	m.Items = kept
	return excluded
}
