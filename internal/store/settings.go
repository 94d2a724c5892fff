package store

import "context"

func (q *Queries) GetSetting(ctx context.Context, key string) (WebsiteSetting, error) {
	var s WebsiteSetting
	err := q.db.QueryRowContext(ctx,
		"SELECT id, key, value, description FROM website_settings WHERE key = ?", key).
		Scan(&s.ID, &s.Key, &s.Value, &s.Description)
	return s, err
}

func (q *Queries) ListSettings(ctx context.Context) ([]WebsiteSetting, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, key, value, description FROM website_settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []WebsiteSetting
	for rows.Next() {
		var s WebsiteSetting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.Description); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (q *Queries) UpsertSetting(ctx context.Context, key, value, description string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO website_settings (key, value, description) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value, description)
	return err
}
