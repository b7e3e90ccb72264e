package store

// Schedule is a raw calendar record as persisted by the local calendar
// provider. Timestamps are Unix seconds; for all-day records StartTs and
// EndTs span midnight to midnight in the record's timezone.
type Schedule struct {
	ID          int32
	UID         string
	Title       string
	Description string
	Location    string
	StartTs     int64
	EndTs       int64
	AllDay      bool
	Timezone    string
	CreatedTs   int64
	UpdatedTs   int64
}

// FindSchedule filters ListSchedules.
type FindSchedule struct {
	UID *string
	// StartAfter/EndBefore bound the listed time range (Unix seconds).
	// A schedule matches when it overlaps the range at all.
	StartAfter *int64
	EndBefore  *int64
}

// UpdateSchedule carries a partial update; nil fields are left unchanged.
type UpdateSchedule struct {
	UID         string
	Title       *string
	Description *string
	Location    *string
	StartTs     *int64
	EndTs       *int64
	AllDay      *bool
	UpdatedTs   int64
}
