package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// GetSession loads the user's conversation state. ok=false means the user
// has no in-flight conversation (implicitly at the initial state).
func (s *Store) GetSession(ctx context.Context, userID int64) (Session, bool, error) {
	var state, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state, data FROM sessions WHERE user_id = ?`, userID,
	).Scan(&state, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	sess := Session{UserID: userID, State: state, Data: map[string]string{}}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &sess.Data); err != nil {
			// Corrupt form data is not worth crashing a conversation over;
			// the state label alone still lets the flow resume.
			s.log.Warn("session data corrupt, resetting form")
			sess.Data = map[string]string{}
		}
	}
	return sess, true, nil
}

// PutSession durably overwrites the user's conversation state. The session
// engine calls this before any outbound effect is delivered.
func (s *Store) PutSession(ctx context.Context, sess Session) error {
	data := "{}"
	if len(sess.Data) > 0 {
		b, err := json.Marshal(sess.Data)
		if err != nil {
			return err
		}
		data = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(user_id, state, data) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET state=excluded.state, data=excluded.data`,
		sess.UserID, sess.State, data,
	)
	return err
}

// DeleteSession removes the user's conversation state (flow completed or
// abandoned).
func (s *Store) DeleteSession(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}
