// Package retrieval ranks stored events against a query and an optional
// requester profile, and orchestrates the two search modes.
package retrieval

// Remote preference values a profile may carry.
const (
	RemotePreferenceRemote = "remote"
	RemotePreferenceOnsite = "onsite"
	RemotePreferenceAny    = "any"
)

// Profile describes the requester. All fields are optional; an empty profile
// leaves ranking to similarity alone.
type Profile struct {
	Languages           []string `json:"languages,omitempty"`
	PreferredCategories []string `json:"preferred_categories,omitempty"`
	City                *string  `json:"city,omitempty"`
	RemotePreference    *string  `json:"remote_preference,omitempty"`
}

// IsEmpty reports whether the profile carries no ranking signal.
func (p *Profile) IsEmpty() bool {
	return p == nil ||
		(len(p.Languages) == 0 && len(p.PreferredCategories) == 0 &&
			p.City == nil && p.RemotePreference == nil)
}

// AnswerLanguage picks the language for the synthesized answer.
func (p *Profile) AnswerLanguage() string {
	if p != nil && len(p.Languages) > 0 {
		return p.Languages[0]
	}
	return "uk"
}
