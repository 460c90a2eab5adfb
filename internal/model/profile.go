package model

// UserProfile is the matching input produced by a resume parser or a
// profile file.
type UserProfile struct {
	TargetRoles        []string       `json:"targetRoles" yaml:"target-roles"`
	TargetLocations    []string       `json:"targetLocations" yaml:"target-locations"`
	TargetTechStack    []string       `json:"targetTechStack" yaml:"target-tech-stack"`
	TargetDomains      []Domain       `json:"targetDomains" yaml:"target-domains"`
	ExperienceYears    *float64       `json:"experienceYears,omitempty" yaml:"experience-years,omitempty" validate:"omitempty,gte=0,lte=60"`
	CareerLevel        CareerLevel    `json:"careerLevel,omitempty" yaml:"career-level,omitempty"`
	WorkModePreference WorkMode       `json:"workModePreference,omitempty" yaml:"work-mode-preference,omitempty"`
	SkillsRating       map[string]int `json:"skillsRating" yaml:"skills-rating" validate:"omitempty,dive,keys,required,endkeys,min=1,max=5"`
}
