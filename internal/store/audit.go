package store

import (
	"context"
	"time"
)

type InsertAuditEntryParams struct {
	ActorID   int64
	ActorName string
	Action    string
	Object    string
	Message   string
}

func (q *Queries) InsertAuditEntry(ctx context.Context, arg InsertAuditEntryParams) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO audit_log (actor_id, actor_name, action, object, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		arg.ActorID, arg.ActorName, arg.Action, arg.Object, arg.Message, time.Now().UTC())
	return err
}

func (q *Queries) ListRecentAuditEntries(ctx context.Context, limit int64) ([]AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, actor_id, actor_name, action, object, message, created_at FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Object, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
