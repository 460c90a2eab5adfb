// Package ai defines model-backed helpers used outside the scraping path.
package ai

import (
	"context"

	"github.com/spigell/jobintel/internal/model"
)

// ProfileExtractor turns free-form resume text into a matching profile.
type ProfileExtractor interface {
	ExtractProfile(ctx context.Context, resume string) (*model.UserProfile, error)
}
