package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozaika/eventsearch/store"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func withScore(event *store.Event, score float32) *store.EventWithScore {
	return &store.EventWithScore{Event: event, Score: score}
}

func TestScoreResultsEmptyProfileKeepsSimilarity(t *testing.T) {
	results := []*store.EventWithScore{
		withScore(&store.Event{ID: "a"}, 0.9),
		withScore(&store.Event{ID: "b"}, 0.5),
	}

	scored := ScoreResults(results, nil)
	require.Len(t, scored, 2)
	require.InDelta(t, 0.9, scored[0].MatchScore, 1e-9)
	require.InDelta(t, 0.5, scored[1].MatchScore, 1e-9)
	require.Equal(t, TierHigh, scored[0].MatchTier)
	require.Equal(t, TierMedium, scored[1].MatchTier)
}

func TestScoreResultsProfileBoost(t *testing.T) {
	profile := &Profile{
		City:                strPtr("Київ"),
		Languages:           []string{"uk"},
		PreferredCategories: []string{"grant"},
		RemotePreference:    strPtr(RemotePreferenceRemote),
	}
	event := &store.Event{
		ID:            "a",
		City:          strPtr("київ"), // case-insensitive city match
		Language:      "uk",
		CategorySlugs: []string{"grant", "workshop"},
		IsRemote:      boolPtr(true),
	}

	scored := ScoreResults([]*store.EventWithScore{withScore(event, 0.8)}, profile)
	// All factors match: affinity 1.0, blended 0.7*0.8 + 0.3*1.0.
	require.InDelta(t, 0.86, scored[0].MatchScore, 1e-6)
	require.Equal(t, TierHigh, scored[0].MatchTier)
}

func TestScoreResultsMissingEventFieldsDoNotPenalize(t *testing.T) {
	profile := &Profile{
		City:             strPtr("Львів"),
		RemotePreference: strPtr(RemotePreferenceOnsite),
		Languages:        []string{"uk"},
	}
	// Event has no city and unknown remote flag; only language applies
	// and it matches, so affinity is 1.
	event := &store.Event{ID: "a", Language: "uk"}

	scored := ScoreResults([]*store.EventWithScore{withScore(event, 0.6)}, profile)
	require.InDelta(t, 0.6*similarityShare+1.0*profileShare, scored[0].MatchScore, 1e-6)
}

func TestScoreResultsProfileWithNoApplicableFactors(t *testing.T) {
	profile := &Profile{City: strPtr("Львів")}
	event := &store.Event{ID: "a", Language: "uk"} // no city on the event

	scored := ScoreResults([]*store.EventWithScore{withScore(event, 0.55)}, profile)
	require.InDelta(t, 0.55, scored[0].MatchScore, 1e-6)
}

func TestScoreResultsAnyRemotePreference(t *testing.T) {
	profile := &Profile{RemotePreference: strPtr(RemotePreferenceAny)}
	event := &store.Event{ID: "a", IsRemote: boolPtr(false)}

	scored := ScoreResults([]*store.EventWithScore{withScore(event, 0.5)}, profile)
	// "any" grants half the remote weight: affinity 0.5.
	require.InDelta(t, 0.5*similarityShare+0.5*profileShare, scored[0].MatchScore, 1e-6)
}

func TestScoreResultsTieBreaking(t *testing.T) {
	older := timePtr(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	newer := timePtr(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	results := []*store.EventWithScore{
		withScore(&store.Event{ID: "b", PostedAt: older}, 0.5),
		withScore(&store.Event{ID: "c"}, 0.5),
		withScore(&store.Event{ID: "a", PostedAt: newer}, 0.5),
	}

	scored := ScoreResults(results, nil)
	require.Equal(t, "a", scored[0].Event.ID) // newest posted first
	require.Equal(t, "b", scored[1].Event.ID)
	require.Equal(t, "c", scored[2].Event.ID) // nil posted_at last
}

func TestTierBoundaries(t *testing.T) {
	require.Equal(t, TierHigh, tierFor(0.7))
	require.Equal(t, TierMedium, tierFor(0.699999))
	require.Equal(t, TierMedium, tierFor(0.4))
	require.Equal(t, TierLow, tierFor(0.399999))
}
