package schedule

import (
	"log/slog"
	"strings"
	"time"

	"github.com/daybridge/daybridge/calendar"
)

// Normalization is a pure mapping from provider payloads to the canonical
// model. Malformed records are dropped with a log line, never patched up
// with fabricated anchors.

const defaultEventDuration = time.Hour

// categoryKeywords is the ordered inference table: first matching group
// wins, the default is meeting.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryClass, []string{"class", "course", "lecture"}},
	{CategoryStudy, []string{"study", "homework", "assignment"}},
	{CategoryWorkout, []string{"gym", "workout", "exercise"}},
	{CategoryNetworking, []string{"coffee", "networking", "chat"}},
	{CategoryRecruiting, []string{"recruiting", "interview", "info session"}},
	{CategoryBuffer, []string{"buffer", "travel"}},
}

func inferCategory(title string) Category {
	lower := strings.ToLower(title)
	for _, group := range categoryKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.category
			}
		}
	}
	return CategoryMeeting
}

// NormalizeEvent converts a raw provider event into a CalendarEvent.
// It returns (event, true) on success. Records without a start anchor, and
// records whose end does not follow their start, are skipped.
func NormalizeEvent(raw calendar.RawEvent) (CalendarEvent, bool) {
	if raw.Start == nil {
		slog.Debug("normalize: skipping event without start anchor", "id", raw.ID, "title", raw.Title)
		return CalendarEvent{}, false
	}

	start := *raw.Start
	var end time.Time
	switch {
	case raw.DateOnly:
		// Whole-day events are date-only; treat as midnight to midnight.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		end = start.AddDate(0, 0, 1)
	case raw.End != nil:
		end = *raw.End
	default:
		end = start.Add(defaultEventDuration)
	}

	if !end.After(start) {
		slog.Debug("normalize: skipping event with non-positive interval", "id", raw.ID, "title", raw.Title)
		return CalendarEvent{}, false
	}

	return CalendarEvent{
		ID:       raw.ID,
		Title:    raw.Title,
		Start:    start,
		End:      end,
		Category: inferCategory(raw.Title),
		Location: raw.Location,
		AllDay:   raw.DateOnly,
	}, true
}

// NormalizeEvents maps a raw batch, dropping malformed records.
func NormalizeEvents(raws []calendar.RawEvent) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(raws))
	for _, raw := range raws {
		if event, ok := NormalizeEvent(raw); ok {
			events = append(events, event)
		}
	}
	return events
}

// NormalizeItem converts a raw course item into a CourseItem. Items with
// no due or posted date are kept (priority low); date filtering, when a
// caller wants it, happens after normalization.
func NormalizeItem(raw calendar.RawItem) (CourseItem, bool) {
	itemType := ItemAssignment
	switch raw.Kind {
	case calendar.RawItemKindQuiz:
		itemType = ItemQuiz
	case calendar.RawItemKindAnnouncement:
		itemType = ItemAnnouncement
	case calendar.RawItemKindAssignment:
	default:
		slog.Debug("normalize: unknown course item kind, treating as assignment", "id", raw.ID, "kind", raw.Kind)
	}

	anchor := raw.DueAt
	if anchor == nil {
		anchor = raw.PostedAt
	}

	return CourseItem{
		ID:          raw.ID,
		Title:       raw.Title,
		Course:      raw.Course,
		Type:        itemType,
		DueOrPosted: anchor,
		Progress:    raw.Progress,
		Completed:   raw.Completed,
	}, true
}

// NormalizeItems maps a raw batch.
func NormalizeItems(raws []calendar.RawItem) []CourseItem {
	items := make([]CourseItem, 0, len(raws))
	for _, raw := range raws {
		if item, ok := NormalizeItem(raw); ok {
			items = append(items, item)
		}
	}
	return items
}

// FilterItemsFrom keeps items whose anchor falls in month from or later.
// This is the one place undated items are dropped: an explicit date filter
// cannot place them.
func FilterItemsFrom(items []CourseItem, from time.Time) []CourseItem {
	cutoff := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	filtered := make([]CourseItem, 0, len(items))
	for _, item := range items {
		if item.DueOrPosted == nil {
			continue
		}
		if !item.DueOrPosted.Before(cutoff) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
