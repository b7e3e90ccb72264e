package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/store"
)

// ScheduleStore is the slice of the store the local provider needs.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, create *store.Schedule) (*store.Schedule, error)
	ListSchedules(ctx context.Context, find *store.FindSchedule) ([]*store.Schedule, error)
	UpdateSchedule(ctx context.Context, update *store.UpdateSchedule) (*store.Schedule, error)
	DeleteSchedule(ctx context.Context, uid string) error
}

// LocalProvider is the read-write calendar backed by the local store.
// Agent-created events land here; feed events stay in their feeds.
type LocalProvider struct {
	store ScheduleStore
	clock clock.Clock
}

func NewLocalProvider(scheduleStore ScheduleStore, clk clock.Clock) *LocalProvider {
	return &LocalProvider{store: scheduleStore, clock: clk}
}

func (p *LocalProvider) ListEvents(ctx context.Context, start, end time.Time) ([]RawEvent, error) {
	startTs := start.Unix()
	endTs := end.Unix()
	schedules, err := p.store.ListSchedules(ctx, &store.FindSchedule{
		StartAfter: &startTs,
		EndBefore:  &endTs,
	})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	events := make([]RawEvent, 0, len(schedules))
	for _, schedule := range schedules {
		eventStart := time.Unix(schedule.StartTs, 0).In(start.Location())
		eventEnd := time.Unix(schedule.EndTs, 0).In(start.Location())
		events = append(events, RawEvent{
			ID:       schedule.UID,
			Title:    schedule.Title,
			Start:    &eventStart,
			End:      &eventEnd,
			DateOnly: schedule.AllDay,
			Location: schedule.Location,
		})
	}
	return events, nil
}

func (p *LocalProvider) CreateEvent(ctx context.Context, spec EventSpec) (string, error) {
	now := p.clock.Now().Unix()
	created, err := p.store.CreateSchedule(ctx, &store.Schedule{
		UID:       shortuuid.New(),
		Title:     spec.Title,
		Location:  spec.Location,
		StartTs:   spec.Start.Unix(),
		EndTs:     spec.End.Unix(),
		AllDay:    spec.AllDay,
		Timezone:  spec.Start.Location().String(),
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return "", fmt.Errorf("create schedule: %w", err)
	}
	return created.UID, nil
}

func (p *LocalProvider) UpdateEvent(ctx context.Context, id string, spec EventSpec) error {
	startTs := spec.Start.Unix()
	endTs := spec.End.Unix()
	if _, err := p.store.UpdateSchedule(ctx, &store.UpdateSchedule{
		UID:       id,
		Title:     &spec.Title,
		Location:  &spec.Location,
		StartTs:   &startTs,
		EndTs:     &endTs,
		AllDay:    &spec.AllDay,
		UpdatedTs: p.clock.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("update schedule %s: %w", id, err)
	}
	return nil
}

func (p *LocalProvider) DeleteEvent(ctx context.Context, id string) error {
	if err := p.store.DeleteSchedule(ctx, id); err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return nil
}
