package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// ErrReadOnly is returned by mutation calls on feed-backed providers.
var ErrReadOnly = errors.New("calendar: provider is read-only")

// maxOccurrencesPerEvent caps recurrence expansion for a single VEVENT.
const maxOccurrencesPerEvent = 1000

// ICSProvider reads events from a remote ICS feed. The feed is
// authoritative upstream, so create/update/delete are rejected.
type ICSProvider struct {
	url    string
	client *http.Client
}

func NewICSProvider(url string) *ICSProvider {
	return &ICSProvider{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *ICSProvider) ListEvents(ctx context.Context, start, end time.Time) ([]RawEvent, error) {
	body, err := p.download(ctx)
	if err != nil {
		return nil, err
	}
	return parseICS(body, start, end)
}

func (p *ICSProvider) CreateEvent(ctx context.Context, spec EventSpec) (string, error) {
	return "", ErrReadOnly
}

func (p *ICSProvider) UpdateEvent(ctx context.Context, id string, spec EventSpec) error {
	return ErrReadOnly
}

func (p *ICSProvider) DeleteEvent(ctx context.Context, id string) error {
	return ErrReadOnly
}

func (p *ICSProvider) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

// parseICS parses an ICS payload and expands recurrences into concrete
// events within [start, end). Malformed VEVENTs are skipped.
func parseICS(body []byte, start, end time.Time) ([]RawEvent, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := []RawEvent{}
	for _, ve := range cal.Events() {
		expanded, err := expandVEvent(ve, start, end)
		if err != nil {
			slog.Debug("calendar: skipping vevent", "error", err)
			continue
		}
		events = append(events, expanded...)
	}
	return events, nil
}

func expandVEvent(ve *ical.VEvent, rangeStart, rangeEnd time.Time) ([]RawEvent, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	eventStart, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("event %s: missing DTSTART", uid)
	}
	eventEnd, endErr := ve.GetEndAt()

	var title, location string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		location = p.Value
	}

	allDay := isAllDay(ve)
	duration := time.Hour
	if endErr == nil && eventEnd.After(eventStart) {
		duration = eventEnd.Sub(eventStart)
	}

	var rawRRule string
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}

	if rawRRule == "" {
		if !overlaps(eventStart, eventStart.Add(duration), rangeStart, rangeEnd) {
			return nil, nil
		}
		return []RawEvent{makeRawEvent(uid, title, location, eventStart, duration, allDay)}, nil
	}

	rule, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, fmt.Errorf("event %s: bad RRULE %q: %w", uid, rawRRule, err)
	}
	rule.DTStart(eventStart)

	var set rrule.Set
	set.RRule(rule)
	for _, exdate := range exDates(ve, eventStart.Location()) {
		set.ExDate(exdate)
	}

	starts := set.Between(rangeStart.In(eventStart.Location()), rangeEnd.In(eventStart.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
		slog.Warn("calendar: recurrence expansion truncated", "uid", uid, "cap", maxOccurrencesPerEvent)
	}

	occurrences := make([]RawEvent, 0, len(starts))
	for _, occurrenceStart := range starts {
		event := makeRawEvent(occurrenceID(uid, occurrenceStart), title, location, occurrenceStart, duration, allDay)
		occurrences = append(occurrences, event)
	}
	return occurrences, nil
}

// occurrenceID derives a stable per-instance id from the VEVENT UID and
// the occurrence start, so an instance keeps its id across fetches and
// window changes.
func occurrenceID(uid string, start time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(uid+"/"+start.UTC().Format(time.RFC3339))).String()
}

func makeRawEvent(id, title, location string, start time.Time, duration time.Duration, allDay bool) RawEvent {
	if allDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return RawEvent{ID: id, Title: title, Start: &start, DateOnly: true, Location: location}
	}
	end := start.Add(duration)
	return RawEvent{ID: id, Title: title, Start: &start, End: &end, Location: location}
}

// isAllDay detects date-only DTSTART values (VALUE=DATE or no time part).
func isAllDay(ve *ical.VEvent) bool {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if values, ok := prop.ICalParameters["VALUE"]; ok && len(values) > 0 && strings.EqualFold(values[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t.In(loc))
			}
		}
	}
	return out
}

func parseICSTime(value string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse("20060102T150405Z", value)
	case strings.Contains(value, "T"):
		return time.ParseInLocation("20060102T150405", value, loc)
	default:
		return time.ParseInLocation("20060102", value, loc)
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
