package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/daybridge/daybridge/store"
)

func (d *DB) CreateSchedule(ctx context.Context, create *store.Schedule) (*store.Schedule, error) {
	stmt := `INSERT INTO schedule (uid, title, description, location, start_ts, end_ts, all_day, timezone, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.Title,
		create.Description,
		create.Location,
		create.StartTs,
		create.EndTs,
		create.AllDay,
		create.Timezone,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create schedule")
	}

	return create, nil
}

func (d *DB) ListSchedules(ctx context.Context, find *store.FindSchedule) ([]*store.Schedule, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.StartAfter != nil {
		// Overlap semantics: the record must end after the range start.
		where, args = append(where, "end_ts > ?"), append(args, *find.StartAfter)
	}
	if find.EndBefore != nil {
		where, args = append(where, "start_ts < ?"), append(args, *find.EndBefore)
	}

	query := `SELECT id, uid, title, description, location, start_ts, end_ts, all_day, timezone, created_ts, updated_ts
		FROM schedule
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_ts ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list schedules")
	}
	defer rows.Close()

	list := []*store.Schedule{}
	for rows.Next() {
		var schedule store.Schedule
		if err := rows.Scan(
			&schedule.ID,
			&schedule.UID,
			&schedule.Title,
			&schedule.Description,
			&schedule.Location,
			&schedule.StartTs,
			&schedule.EndTs,
			&schedule.AllDay,
			&schedule.Timezone,
			&schedule.CreatedTs,
			&schedule.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule")
		}
		list = append(list, &schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpdateSchedule(ctx context.Context, update *store.UpdateSchedule) (*store.Schedule, error) {
	set, args := []string{}, []any{}

	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.Location != nil {
		set, args = append(set, "location = ?"), append(args, *update.Location)
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = ?"), append(args, *update.StartTs)
	}
	if update.EndTs != nil {
		set, args = append(set, "end_ts = ?"), append(args, *update.EndTs)
	}
	if update.AllDay != nil {
		set, args = append(set, "all_day = ?"), append(args, *update.AllDay)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	set, args = append(set, "updated_ts = ?"), append(args, update.UpdatedTs)
	args = append(args, update.UID)

	stmt := `UPDATE schedule SET ` + strings.Join(set, ", ") + ` WHERE uid = ?
		RETURNING id, uid, title, description, location, start_ts, end_ts, all_day, timezone, created_ts, updated_ts`

	var schedule store.Schedule
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&schedule.ID,
		&schedule.UID,
		&schedule.Title,
		&schedule.Description,
		&schedule.Location,
		&schedule.StartTs,
		&schedule.EndTs,
		&schedule.AllDay,
		&schedule.Timezone,
		&schedule.CreatedTs,
		&schedule.UpdatedTs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update schedule")
	}

	return &schedule, nil
}

func (d *DB) DeleteSchedule(ctx context.Context, uid string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM schedule WHERE uid = ?`, uid)
	if err != nil {
		return errors.Wrap(err, "failed to delete schedule")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
