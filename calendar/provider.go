// Package calendar defines the external collaborator contracts the agent
// consumes: a calendar provider for events and a course provider for LMS
// items. Raw payloads are provider-shaped; canonicalization lives in the
// schedule package.
package calendar

import (
	"context"
	"time"
)

// RawEvent is a provider event payload before normalization. Start is the
// required anchor; End may be absent. DateOnly marks whole-day records
// whose anchors carry no time of day.
type RawEvent struct {
	ID       string
	Title    string
	Start    *time.Time
	End      *time.Time
	DateOnly bool
	Location string
}

// RawItem kinds, as tagged by the course provider.
const (
	RawItemKindAssignment   = "assignment"
	RawItemKindQuiz         = "quiz"
	RawItemKindAnnouncement = "announcement"
)

// RawItem is a course/LMS item payload before normalization. Assignments
// and quizzes carry DueAt; announcements carry PostedAt.
type RawItem struct {
	ID        string
	Title     string
	Course    string
	Kind      string
	DueAt     *time.Time
	PostedAt  *time.Time
	Progress  int // percent complete, 0-100
	Completed bool
}

// EventSpec describes an event for create/update calls.
type EventSpec struct {
	Title    string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Location string
}

// Provider is the calendar collaborator contract.
type Provider interface {
	// ListEvents returns raw events overlapping [start, end).
	ListEvents(ctx context.Context, start, end time.Time) ([]RawEvent, error)

	// CreateEvent creates an event and returns its provider-scoped id.
	CreateEvent(ctx context.Context, spec EventSpec) (string, error)

	// UpdateEvent replaces the mutable fields of an existing event.
	UpdateEvent(ctx context.Context, id string, spec EventSpec) error

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, id string) error
}

// CourseProvider is the course/LMS collaborator contract.
type CourseProvider interface {
	ListCourseItems(ctx context.Context) ([]RawItem, error)
}
