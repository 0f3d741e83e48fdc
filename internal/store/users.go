package store

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, name, surname, is_admin) VALUES(?,?,?,?)`,
		u.ID, u.Name, u.Surname, boolToInt(u.IsAdmin),
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	var admin int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, surname, is_admin FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Surname, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.IsAdmin = admin != 0
	return u, nil
}

// UserExistsByName reports whether any user has exactly this (name, surname)
// pair. The comparison is case-sensitive.
func (s *Store) UserExistsByName(ctx context.Context, name, surname string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE name = ? AND surname = ? LIMIT 1`, name, surname,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUserIDs returns the ids of all registered users (broadcast recipients).
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
