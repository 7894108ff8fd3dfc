package retrieval

import (
	"sort"
	"strings"

	"github.com/mozaika/eventsearch/store"
)

// MatchTier buckets a final score for display.
type MatchTier string

const (
	TierHigh   MatchTier = "high"
	TierMedium MatchTier = "medium"
	TierLow    MatchTier = "low"
)

// Profile boost weights. A factor only enters the normalization denominator
// when both the profile and the event carry the field, so missing data never
// penalizes. An "any" remote preference adds half the remote weight while
// the full weight enters the denominator, so it slightly dampens the
// normalized affinity rather than leaving it untouched.
const (
	weightCity     = 0.3
	weightLanguage = 0.2
	weightCategory = 0.3
	weightRemote   = 0.2

	similarityShare = 0.7
	profileShare    = 0.3
)

// ScoredEvent is a ranked hit.
type ScoredEvent struct {
	Event      *store.Event
	Similarity float64 // raw cosine similarity
	MatchScore float64 // profile-blended final score
	MatchTier  MatchTier
}

// ScoreResults blends cosine similarity with profile affinity and sorts the
// hits by final score. With an empty profile the final score is the
// similarity itself. Ties break by posted_at descending, then by id.
func ScoreResults(results []*store.EventWithScore, profile *Profile) []*ScoredEvent {
	scored := make([]*ScoredEvent, 0, len(results))
	for _, r := range results {
		similarity := float64(r.Score)
		final := similarity
		if !profile.IsEmpty() {
			if affinity, ok := profileAffinity(r.Event, profile); ok {
				final = similarity*similarityShare + affinity*profileShare
			}
		}
		scored = append(scored, &ScoredEvent{
			Event:      r.Event,
			Similarity: similarity,
			MatchScore: final,
			MatchTier:  tierFor(final),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].MatchScore != scored[j].MatchScore {
			return scored[i].MatchScore > scored[j].MatchScore
		}
		pi, pj := scored[i].Event.PostedAt, scored[j].Event.PostedAt
		switch {
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.After(*pj)
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return scored[i].Event.ID < scored[j].Event.ID
	})
	return scored
}

// profileAffinity computes the normalized profile match in [0, 1]. The bool
// is false when no factor applied, meaning the profile says nothing about
// this event.
func profileAffinity(event *store.Event, profile *Profile) (float64, bool) {
	var score, factors float64

	if profile.City != nil && event.City != nil {
		if strings.EqualFold(*event.City, *profile.City) {
			score += weightCity
		}
		factors += weightCity
	}

	if len(profile.Languages) > 0 && event.Language != "" {
		for _, lang := range profile.Languages {
			if lang == event.Language {
				score += weightLanguage
				break
			}
		}
		factors += weightLanguage
	}

	if len(profile.PreferredCategories) > 0 && len(event.CategorySlugs) > 0 {
		preferred := make(map[string]bool, len(profile.PreferredCategories))
		for _, slug := range profile.PreferredCategories {
			preferred[slug] = true
		}
		for _, slug := range event.CategorySlugs {
			if preferred[slug] {
				score += weightCategory
				break
			}
		}
		factors += weightCategory
	}

	if profile.RemotePreference != nil && event.IsRemote != nil {
		switch *profile.RemotePreference {
		case RemotePreferenceRemote:
			if *event.IsRemote {
				score += weightRemote
			}
		case RemotePreferenceOnsite:
			if !*event.IsRemote {
				score += weightRemote
			}
		case RemotePreferenceAny:
			score += weightRemote / 2
		}
		factors += weightRemote
	}

	if factors == 0 {
		return 0, false
	}
	return score / factors, true
}

func tierFor(score float64) MatchTier {
	switch {
	case score >= 0.7:
		return TierHigh
	case score >= 0.4:
		return TierMedium
	default:
		return TierLow
	}
}
