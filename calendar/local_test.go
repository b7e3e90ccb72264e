package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/store"
)

type mockScheduleStore struct {
	schedules map[string]*store.Schedule
}

func newMockScheduleStore() *mockScheduleStore {
	return &mockScheduleStore{schedules: map[string]*store.Schedule{}}
}

func (s *mockScheduleStore) CreateSchedule(_ context.Context, create *store.Schedule) (*store.Schedule, error) {
	s.schedules[create.UID] = create
	return create, nil
}

func (s *mockScheduleStore) ListSchedules(_ context.Context, find *store.FindSchedule) ([]*store.Schedule, error) {
	out := []*store.Schedule{}
	for _, schedule := range s.schedules {
		if find.StartAfter != nil && schedule.EndTs <= *find.StartAfter {
			continue
		}
		if find.EndBefore != nil && schedule.StartTs >= *find.EndBefore {
			continue
		}
		out = append(out, schedule)
	}
	return out, nil
}

func (s *mockScheduleStore) UpdateSchedule(_ context.Context, update *store.UpdateSchedule) (*store.Schedule, error) {
	schedule, ok := s.schedules[update.UID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Title != nil {
		schedule.Title = *update.Title
	}
	if update.StartTs != nil {
		schedule.StartTs = *update.StartTs
	}
	if update.EndTs != nil {
		schedule.EndTs = *update.EndTs
	}
	schedule.UpdatedTs = update.UpdatedTs
	return schedule, nil
}

func (s *mockScheduleStore) DeleteSchedule(_ context.Context, uid string) error {
	delete(s.schedules, uid)
	return nil
}

func TestLocalProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	scheduleStore := newMockScheduleStore()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := NewLocalProvider(scheduleStore, clock.Fixed(now))

	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	id, err := provider.CreateEvent(ctx, EventSpec{
		Title:    "Valuation Case Study",
		Start:    start,
		End:      start.Add(2 * time.Hour),
		Location: "Library",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	events, err := provider.ListEvents(ctx, start.Add(-time.Hour), start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Valuation Case Study", events[0].Title)
	assert.Equal(t, id, events[0].ID)
	assert.True(t, events[0].Start.Equal(start))

	// Move it an hour later.
	moved := start.Add(time.Hour)
	err = provider.UpdateEvent(ctx, id, EventSpec{
		Title: "Valuation Case Study",
		Start: moved,
		End:   moved.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	events, err = provider.ListEvents(ctx, start.Add(-time.Hour), start.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Start.Equal(moved))

	require.NoError(t, provider.DeleteEvent(ctx, id))
	events, err = provider.ListEvents(ctx, start.Add(-time.Hour), start.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLocalProviderListSkipsOutOfRange(t *testing.T) {
	ctx := context.Background()
	scheduleStore := newMockScheduleStore()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := NewLocalProvider(scheduleStore, clock.Fixed(now))

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := provider.CreateEvent(ctx, EventSpec{Title: "Early", Start: day.Add(8 * time.Hour), End: day.Add(9 * time.Hour)})
	require.NoError(t, err)
	_, err = provider.CreateEvent(ctx, EventSpec{Title: "Late", Start: day.Add(20 * time.Hour), End: day.Add(21 * time.Hour)})
	require.NoError(t, err)

	events, err := provider.ListEvents(ctx, day.Add(7*time.Hour), day.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Early", events[0].Title)
}
