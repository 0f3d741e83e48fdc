package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// CreateQueue inserts a new queue with status=planned and
// notification_sent=false, rejecting case-insensitive duplicate names.
// The returned queue carries the assigned id.
func (s *Store) CreateQueue(ctx context.Context, name string, startAt, endAt, notifyAt time.Time) (Queue, error) {
	q := Queue{
		Name:     name,
		StartAt:  startAt,
		EndAt:    endAt,
		NotifyAt: notifyAt,
		Status:   StatusPlanned,
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM queues WHERE lower(name) = lower(?) LIMIT 1`, name,
		).Scan(&one)
		if err == nil {
			return ErrDuplicateName
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO queues(name, start_dt, end_dt, notify_dt, status, notification_sent)
			 VALUES(?,?,?,?,?,0)`,
			name, startAt.Unix(), endAt.Unix(), notifyAt.Unix(), StatusPlanned,
		)
		if err != nil {
			// The unique index on lower(name) is the backstop for races.
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return ErrDuplicateName
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		q.ID = id
		return nil
	})
	if err != nil {
		return Queue{}, err
	}
	return q, nil
}

// QueueNameExists reports whether a queue with this name exists, compared
// case-insensitively. CreateQueue re-checks inside its transaction; this is
// the early check for interactive flows.
func (s *Store) QueueNameExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM queues WHERE lower(name) = lower(?) LIMIT 1`, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetQueue(ctx context.Context, id int64) (Queue, error) {
	return s.scanQueue(s.db.QueryRowContext(ctx,
		`SELECT id, name, start_dt, end_dt, notify_dt, status, notification_sent
		 FROM queues WHERE id = ?`, id))
}

// ListQueuesByStatus returns queues with the given status in id order.
func (s *Store) ListQueuesByStatus(ctx context.Context, status Status) ([]Queue, error) {
	return s.listQueues(ctx,
		`SELECT id, name, start_dt, end_dt, notify_dt, status, notification_sent
		 FROM queues WHERE status = ? ORDER BY id`, string(status))
}

// ListUnarchived returns every queue that may still own pending timers.
func (s *Store) ListUnarchived(ctx context.Context) ([]Queue, error) {
	return s.listQueues(ctx,
		`SELECT id, name, start_dt, end_dt, notify_dt, status, notification_sent
		 FROM queues WHERE status != ? ORDER BY id`, string(StatusArchived))
}

// CountQueuesByStatus reports how many queues are in each lifecycle state.
func (s *Store) CountQueuesByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queues GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[Status(st)] = n
	}
	return counts, rows.Err()
}

// MarkNotified flips notification_sent false->true. It reports whether the
// flip was applied; false means it had already been sent (or the queue is
// gone), so the caller must not broadcast again.
func (s *Store) MarkNotified(ctx context.Context, id int64) (bool, error) {
	return s.guardedUpdate(ctx,
		`UPDATE queues SET notification_sent = 1 WHERE id = ? AND notification_sent = 0`, id)
}

// OpenQueue transitions planned -> active. Reports whether the transition
// was applied; false means the guard failed (already active/archived or gone).
func (s *Store) OpenQueue(ctx context.Context, id int64) (bool, error) {
	return s.guardedUpdate(ctx,
		`UPDATE queues SET status = 'active' WHERE id = ? AND status = 'planned'`, id)
}

// CloseQueue transitions active -> archived. Reports whether the transition
// was applied.
func (s *Store) CloseQueue(ctx context.Context, id int64) (bool, error) {
	return s.guardedUpdate(ctx,
		`UPDATE queues SET status = 'archived' WHERE id = ? AND status = 'active'`, id)
}

func (s *Store) guardedUpdate(ctx context.Context, query string, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) listQueues(ctx context.Context, query string, args ...any) ([]Queue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Queue
	for rows.Next() {
		q, err := scanQueueRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanQueue(row rowScanner) (Queue, error) {
	q, err := scanQueueRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Queue{}, ErrNotFound
	}
	return q, err
}

func scanQueueRow(row rowScanner) (Queue, error) {
	var q Queue
	var start, end, notify int64
	var status string
	var sent int
	if err := row.Scan(&q.ID, &q.Name, &start, &end, &notify, &status, &sent); err != nil {
		return Queue{}, err
	}
	q.StartAt = time.Unix(start, 0).UTC()
	q.EndAt = time.Unix(end, 0).UTC()
	q.NotifyAt = time.Unix(notify, 0).UTC()
	q.Status = Status(status)
	q.NotificationSent = sent != 0
	return q, nil
}
