package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/daybridge/daybridge/store"
)

func (d *DB) UpsertFetchState(ctx context.Context, upsert *store.FetchState) (*store.FetchState, error) {
	stmt := `INSERT INTO fetch_state (resource_key, last_fetch_ts, result_count)
		VALUES (?, ?, ?)
		ON CONFLICT (resource_key) DO UPDATE SET
			last_fetch_ts = excluded.last_fetch_ts,
			result_count = excluded.result_count`

	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ResourceKey,
		upsert.LastFetchTs,
		upsert.ResultCount,
	); err != nil {
		return nil, errors.Wrap(err, "failed to upsert fetch state")
	}

	return upsert, nil
}

func (d *DB) GetFetchState(ctx context.Context, resourceKey string) (*store.FetchState, error) {
	var state store.FetchState
	err := d.db.QueryRowContext(ctx,
		`SELECT resource_key, last_fetch_ts, result_count FROM fetch_state WHERE resource_key = ?`,
		resourceKey,
	).Scan(&state.ResourceKey, &state.LastFetchTs, &state.ResultCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get fetch state")
	}
	return &state, nil
}
