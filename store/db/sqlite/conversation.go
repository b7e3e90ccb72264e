package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/daybridge/daybridge/store"
)

func (d *DB) CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	stmt := `INSERT INTO conversation_message (uid, conversation_uid, role, content, payload, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.ConversationUID,
		create.Role,
		create.Content,
		create.Payload,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation message")
	}

	return create, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.ConversationUID != nil {
		where, args = append(where, "conversation_uid = ?"), append(args, *find.ConversationUID)
	}
	if find.Role != nil {
		where, args = append(where, "role = ?"), append(args, *find.Role)
	}

	// Append-only log: creation order is the only order served.
	query := `SELECT id, uid, conversation_uid, role, content, payload, created_ts
		FROM conversation_message
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation messages")
	}
	defer rows.Close()

	list := []*store.ConversationMessage{}
	for rows.Next() {
		var message store.ConversationMessage
		if err := rows.Scan(
			&message.ID,
			&message.UID,
			&message.ConversationUID,
			&message.Role,
			&message.Content,
			&message.Payload,
			&message.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation message")
		}
		list = append(list, &message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpdateConversationMessage(ctx context.Context, update *store.UpdateConversationMessage) (*store.ConversationMessage, error) {
	if update.Payload == nil {
		return nil, errors.New("no fields to update")
	}

	stmt := `UPDATE conversation_message SET payload = ? WHERE uid = ?
		RETURNING id, uid, conversation_uid, role, content, payload, created_ts`

	var message store.ConversationMessage
	if err := d.db.QueryRowContext(ctx, stmt, *update.Payload, update.UID).Scan(
		&message.ID,
		&message.UID,
		&message.ConversationUID,
		&message.Role,
		&message.Content,
		&message.Payload,
		&message.CreatedTs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update conversation message")
	}

	return &message, nil
}

func (d *DB) CreateMemoryEntry(ctx context.Context, create *store.MemoryEntry) (*store.MemoryEntry, error) {
	stmt := `INSERT INTO memory_entry (conversation_uid, kind, content, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.ConversationUID,
		create.Kind,
		create.Content,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create memory entry")
	}

	return create, nil
}

func (d *DB) ListMemoryEntries(ctx context.Context, find *store.FindMemoryEntry) ([]*store.MemoryEntry, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ConversationUID != nil {
		where, args = append(where, "conversation_uid = ?"), append(args, *find.ConversationUID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
	}

	query := `SELECT id, conversation_uid, kind, content, created_ts
		FROM memory_entry
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory entries")
	}
	defer rows.Close()

	list := []*store.MemoryEntry{}
	for rows.Next() {
		var entry store.MemoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ConversationUID,
			&entry.Kind,
			&entry.Content,
			&entry.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory entry")
		}
		list = append(list, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) DeleteMemoryEntries(ctx context.Context, conversationUID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM memory_entry WHERE conversation_uid = ?`, conversationUID); err != nil {
		return errors.Wrap(err, "failed to delete memory entries")
	}
	return nil
}
