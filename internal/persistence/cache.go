package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetCachedTranslation looks up a unit translation by its cache key and
// counts the hit.
func (s *SQLiteStore) GetCachedTranslation(ctx context.Context, key string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`UPDATE translation_cache SET hits = hits + 1, updated_at = ?
		 WHERE cache_key = ?
		 RETURNING translated_text`,
		time.Now().UTC(), key,
	).Scan(&text)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return text, true, nil
}

func (s *SQLiteStore) PutCachedTranslation(ctx context.Context, key string, target string, text string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_cache (cache_key, target_language, translated_text, hits, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			target_language = excluded.target_language,
			translated_text = excluded.translated_text,
			updated_at = excluded.updated_at`,
		key, target, text, now, now,
	)
	return err
}

// DeleteCacheBefore removes entries not used since before.
func (s *SQLiteStore) DeleteCacheBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CountCachedTranslations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_cache`).Scan(&n)
	return n, err
}
