// Package schedule holds the canonical event model and the pure functions
// computed over it: normalization of provider payloads, conflict and gap
// detection, and deadline urgency.
package schedule

import (
	"fmt"
	"time"
)

// Category classifies an event by what it is for. Inferred from the title
// at normalization time; see inferCategory.
type Category string

const (
	CategoryClass      Category = "class"
	CategoryMeeting    Category = "meeting"
	CategoryStudy      Category = "study"
	CategoryWorkout    Category = "workout"
	CategoryNetworking Category = "networking"
	CategoryRecruiting Category = "recruiting"
	CategoryBuffer     Category = "buffer"
)

// Status relates an event to the current instant.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusUpcoming  Status = "upcoming"
)

// CalendarEvent is the canonical event representation. End is always after
// Start; duration and status are derived from the interval on every read
// rather than stored, so they cannot drift.
type CalendarEvent struct {
	ID       string
	Title    string
	Start    time.Time
	End      time.Time
	Category Category
	Location string
	AllDay   bool
}

// DurationMinutes is always recomputed from the interval.
func (e CalendarEvent) DurationMinutes() int {
	return int(e.End.Sub(e.Start) / time.Minute)
}

// Status derives the event state relative to now.
func (e CalendarEvent) Status(now time.Time) Status {
	switch {
	case !now.Before(e.End):
		return StatusCompleted
	case !now.Before(e.Start):
		return StatusCurrent
	default:
		return StatusUpcoming
	}
}

// ItemType tags a course item.
type ItemType string

const (
	ItemAssignment   ItemType = "assignment"
	ItemQuiz         ItemType = "quiz"
	ItemAnnouncement ItemType = "announcement"
)

// Priority buckets deadline urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// CourseItem is the canonical assignment/quiz/announcement representation.
type CourseItem struct {
	ID          string
	Title       string
	Course      string
	Type        ItemType
	DueOrPosted *time.Time
	Progress    int // percent complete
	Completed   bool
}

// Priority is a pure function of the time left until the due date. It is
// recomputed on every read and never persisted. Undated items are low.
func (i CourseItem) Priority(now time.Time) Priority {
	if i.DueOrPosted == nil {
		return PriorityLow
	}
	remaining := i.DueOrPosted.Sub(now)
	switch {
	case remaining < 24*time.Hour:
		return PriorityHigh
	case remaining < 72*time.Hour:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// RecommendationKind classifies a detected issue.
type RecommendationKind string

const (
	RecommendationBuffer   RecommendationKind = "buffer"
	RecommendationConflict RecommendationKind = "conflict"
	RecommendationNearGap  RecommendationKind = "near_gap"
	RecommendationUrgency  RecommendationKind = "urgency"
)

// Recommendation is one detected scheduling issue, phrased for the user.
type Recommendation struct {
	Kind    RecommendationKind
	Message string
	// EventIDs names the involved events in order, or the course item for
	// urgency recommendations.
	EventIDs []string
}

func (r Recommendation) String() string {
	return fmt.Sprintf("[%s] %s", r.Kind, r.Message)
}
