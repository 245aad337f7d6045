package domain

// ProfileVector holds a candidate's matching criteria. It is created and
// updated by the profile-management side; the pipeline only reads it.
type ProfileVector struct {
	ID          string
	Name        string
	Keywords    map[string]float64 // keyword -> weight
	Embedding   []float64          // optional dense vector
	MustHave    []string
	MustNotHave []string
	// AllowedRegions restricts non-remote jobs to locations containing one
	// of these markers. Empty means no geo restriction.
	AllowedRegions []string
	// TitleKeywords requires the job title to contain at least one entry.
	// Empty means no title restriction.
	TitleKeywords []string
	MinScore      float64
	Active        bool
}
