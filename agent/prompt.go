package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/daybridge/daybridge/knowledge"
	"github.com/daybridge/daybridge/schedule"
)

const systemPromptHeader = `You are Daybridge, a scheduling assistant for a busy graduate student.
You see the user's calendar, their course deadlines, and detected schedule issues.
Ground every suggestion in the data below. When you propose a calendar change,
say so explicitly ("I can move ...", "I'll add ..."). If you are only advising,
do not use change verbs. Never invent events that are not listed.`

// buildSystemPrompt assembles the grounding context for one completion
// call: current time, calendar snapshot, course deadlines, detected
// issues, retrieved knowledge, and session memory.
func buildSystemPrompt(now time.Time, events []schedule.CalendarEvent, items []schedule.CourseItem, recommendations []schedule.Recommendation, chunks []knowledge.ScoredChunk, recalled memories) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nCurrent time: ")
	b.WriteString(now.Format("Monday, January 2 2006, 15:04"))

	b.WriteString("\n\n## Calendar\n")
	if len(events) == 0 {
		b.WriteString("(no events in the current window)\n")
	}
	for _, event := range events {
		if event.AllDay {
			fmt.Fprintf(&b, "- [%s] %s (%s, all day)\n", event.Status(now), event.Title, event.Start.Format("Jan 2"))
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s: %s-%s (%s, %d min)\n",
			event.Status(now), event.Title,
			event.Start.Format("Jan 2 15:04"), event.End.Format("15:04"),
			event.Category, event.DurationMinutes())
	}

	b.WriteString("\n## Course deadlines\n")
	if len(items) == 0 {
		b.WriteString("(no upcoming items)\n")
	}
	for _, item := range items {
		due := "undated"
		if item.DueOrPosted != nil {
			due = item.DueOrPosted.Format("Jan 2 15:04")
		}
		fmt.Fprintf(&b, "- %s (%s, %s): due %s, priority %s, %d%% complete\n",
			item.Title, item.Course, item.Type, due, item.Priority(now), item.Progress)
	}

	if len(recommendations) > 0 {
		b.WriteString("\n## Detected issues\n")
		for _, rec := range recommendations {
			fmt.Fprintf(&b, "- [%s] %s\n", rec.Kind, rec.Message)
		}
	}

	if len(chunks) > 0 {
		b.WriteString("\n## Relevant guidance\n")
		for _, chunk := range chunks {
			fmt.Fprintf(&b, "### %s\n%s\n", chunk.Title, chunk.Content)
		}
	}

	writeMemorySection(&b, "User preferences", recalled.preferences)
	writeMemorySection(&b, "Recent actions", recalled.recentActions)
	writeMemorySection(&b, "Session context", recalled.contexts)

	return b.String()
}

func writeMemorySection(b *strings.Builder, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, entry := range entries {
		fmt.Fprintf(b, "- %s\n", entry)
	}
}
