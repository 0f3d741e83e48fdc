package store

import (
	"context"
	"database/sql"
	"errors"
)

// JoinQueue appends the user to the queue's attendant list, assigning the
// next 1-based position. It runs in one transaction so a join and a
// concurrent Close cannot interleave: the join either completes against an
// active queue or fails with ErrNotOpen.
//
// Outcomes: position on success, ErrNotFound (queue gone), ErrNotOpen
// (queue not active), ErrAlreadyJoined (duplicate (user, queue) pair).
func (s *Store) JoinQueue(ctx context.Context, userID, queueID int64) (int, error) {
	var position int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM queues WHERE id = ?`, queueID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if Status(status) != StatusActive {
			return ErrNotOpen
		}

		var one int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM attendants WHERE user_id = ? AND queue_id = ?`, userID, queueID,
		).Scan(&one)
		if err == nil {
			return ErrAlreadyJoined
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM attendants WHERE queue_id = ?`, queueID,
		).Scan(&count); err != nil {
			return err
		}
		position = count + 1

		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendants(user_id, queue_id, position) VALUES(?,?,?)`,
			userID, queueID, position,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return position, nil
}

// ListAttendants returns the queue's attendants in position order, with user
// names joined in for rendering.
func (s *Store) ListAttendants(ctx context.Context, queueID int64) ([]Attendant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.queue_id, a.position, u.name, u.surname
		 FROM attendants a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.queue_id = ?
		 ORDER BY a.position`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attendant
	for rows.Next() {
		var a Attendant
		if err := rows.Scan(&a.ID, &a.UserID, &a.QueueID, &a.Position, &a.Name, &a.Surname); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasJoined reports whether the user already has an attendant record for the
// queue.
func (s *Store) HasJoined(ctx context.Context, userID, queueID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attendants WHERE user_id = ? AND queue_id = ?`, userID, queueID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
