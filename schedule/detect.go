package schedule

import (
	"fmt"
	"sort"
	"time"
)

// DefaultNearGapThreshold is the gap below which two events are considered
// uncomfortably close even without touching.
const DefaultNearGapThreshold = 15 * time.Minute

// Detector computes scheduling issues over normalized events and items.
// It is deterministic: the same inputs and the same now always produce the
// same recommendations, in the same order.
type Detector struct {
	// NearGapThreshold bounds the informational near-gap check. Zero means
	// DefaultNearGapThreshold.
	NearGapThreshold time.Duration
}

// DetectIssues scans events sorted by start time for overlaps and missing
// buffers, and course items for deadline urgency.
//
// At most one gap-related recommendation is surfaced per scan to avoid
// flooding: conflicts beat zero-gap buffers, which beat the informational
// near-gap finding, and within a severity the first pair in start order
// wins. Urgency recommendations are emitted per item, independent of gaps.
func (d Detector) DetectIssues(events []CalendarEvent, items []CourseItem, now time.Time) []Recommendation {
	recommendations := []Recommendation{}

	if gap, ok := d.detectGapIssue(events); ok {
		recommendations = append(recommendations, gap)
	}

	for _, item := range items {
		if urgency, ok := detectUrgency(item, now); ok {
			recommendations = append(recommendations, urgency)
		}
	}

	return recommendations
}

func (d Detector) detectGapIssue(events []CalendarEvent) (Recommendation, bool) {
	threshold := d.NearGapThreshold
	if threshold == 0 {
		threshold = DefaultNearGapThreshold
	}

	sorted := make([]CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		if !sorted[i].End.Equal(sorted[j].End) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Title < sorted[j].Title
	})

	var conflict, buffer, near *Recommendation
	for i := 0; i+1 < len(sorted); i++ {
		current, next := sorted[i], sorted[i+1]
		gap := next.Start.Sub(current.End)

		switch {
		case gap < 0 && conflict == nil:
			overlap := -gap / time.Minute
			conflict = &Recommendation{
				Kind: RecommendationConflict,
				Message: fmt.Sprintf("%s overlaps with %s by %d minutes.",
					current.Title, next.Title, overlap),
				EventIDs: []string{current.ID, next.ID},
			}
		case gap == 0 && buffer == nil:
			buffer = &Recommendation{
				Kind: RecommendationBuffer,
				Message: fmt.Sprintf("%s ends at %s and %s starts immediately after.",
					current.Title, current.End.Format("15:04"), next.Title),
				EventIDs: []string{current.ID, next.ID},
			}
		case gap > 0 && gap < threshold && near == nil:
			near = &Recommendation{
				Kind: RecommendationNearGap,
				Message: fmt.Sprintf("Only %d minutes between %s and %s.",
					gap/time.Minute, current.Title, next.Title),
				EventIDs: []string{current.ID, next.ID},
			}
		}
	}

	switch {
	case conflict != nil:
		return *conflict, true
	case buffer != nil:
		return *buffer, true
	case near != nil:
		// Informational only; surfaced because nothing worse was found.
		return *near, true
	}
	return Recommendation{}, false
}

// urgencyProgressCutoff excludes items that are already mostly done.
const urgencyProgressCutoff = 50

func detectUrgency(item CourseItem, now time.Time) (Recommendation, bool) {
	if item.Completed || item.Progress >= urgencyProgressCutoff {
		return Recommendation{}, false
	}
	if item.Priority(now) != PriorityHigh {
		return Recommendation{}, false
	}

	remaining := item.DueOrPosted.Sub(now)
	hours := int(remaining / time.Hour)
	message := fmt.Sprintf("%s is due in %d hours and is only %d%% complete.",
		item.Title, hours, item.Progress)
	if remaining < 0 {
		message = fmt.Sprintf("%s is past due and is only %d%% complete.",
			item.Title, item.Progress)
	}

	return Recommendation{
		Kind:     RecommendationUrgency,
		Message:  message,
		EventIDs: []string{item.ID},
	}, true
}
