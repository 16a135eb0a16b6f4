package store

import (
	"fmt"
	"time"
)

// AppendReviews writes entries to the review log in one transaction.
func (db *DB) AppendReviews(entries []ReviewEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO review_log (message_id, outcome, reason, detail, reviewed_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		at := e.ReviewedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(e.MessageID, string(e.Outcome), e.Reason, e.Detail, at.UnixMilli()); err != nil {
			return fmt.Errorf("insert review %d: %w", e.MessageID, err)
		}
	}
	return tx.Commit()
}

// RecentReviews returns up to limit log entries, newest first.
func (db *DB) RecentReviews(limit int) ([]ReviewEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT message_id, outcome, reason, detail, reviewed_at
		FROM review_log
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewEntry
	for rows.Next() {
		var (
			e  ReviewEntry
			o  string
			at int64
		)
		if err := rows.Scan(&e.MessageID, &o, &e.Reason, &e.Detail, &at); err != nil {
			return nil, err
		}
		e.Outcome = ReviewOutcome(o)
		e.ReviewedAt = time.UnixMilli(at)
		out = append(out, e)
	}
	return out, rows.Err()
}
