package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/session"
)

// DocStore implements session.Store on libSQL. The session document lives
// as JSONB in rooms; votes are rows in their own table so a re-tally reads
// the persisted set.
type DocStore struct {
	db *sql.DB
	// Writers in this process queue here instead of failing on a busy
	// database; the transaction still guards other processes.
	mu sync.Mutex
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

var _ session.Store = (*DocStore)(nil)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *DocStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	data, err := encodeRoom(sess)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (code, status, scene_id, data, updated_at)
		 VALUES (?, ?, ?, jsonb(?), ?)
		 ON CONFLICT(code) DO NOTHING`,
		sess.Code, string(sess.Status), sess.SceneID, data, formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: room %s exists", coopquest.ErrConflict, sess.Code)
	}
	if err := writeVotes(ctx, tx, sess); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *DocStore) Get(ctx context.Context, code string) (*session.Session, error) {
	return loadRoom(ctx, s.db, code)
}

// Modify loads a room, applies fn, and saves it in a transaction.
func (s *DocStore) Modify(ctx context.Context, code string, fn func(*session.Session) error) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := loadRoom(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}
	session.Normalize(sess)

	data, err := encodeRoom(sess)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, scene_id = ?, data = jsonb(?), updated_at = ? WHERE code = ?`,
		string(sess.Status), sess.SceneID, data, formatTime(sess.UpdatedAt), code,
	)
	if err != nil {
		return nil, fmt.Errorf("updating room: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE room_code = ?`, code); err != nil {
		return nil, fmt.Errorf("clearing votes: %w", err)
	}
	if err := writeVotes(ctx, tx, sess); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *DocStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE room_code = ?`, code); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: room %s", coopquest.ErrNotFound, code)
	}
	return tx.Commit()
}

func loadRoom(ctx context.Context, q querier, code string) (*session.Session, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT json(data) FROM rooms WHERE code = ?`, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %s", coopquest.ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decoding room %s: %w", code, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT scene_id, voter_id, choice_id, cast_at FROM votes
		 WHERE room_code = ? ORDER BY seq`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Votes = nil
	for rows.Next() {
		var v session.Vote
		var castAt string
		if err := rows.Scan(&v.SceneID, &v.VoterID, &v.ChoiceID, &castAt); err != nil {
			return nil, err
		}
		v.CastAt, _ = time.Parse(time.RFC3339Nano, castAt)
		sess.Votes = append(sess.Votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	session.Normalize(&sess)
	return &sess, nil
}

// encodeRoom marshals the session without its votes, which live in rows.
func encodeRoom(sess *session.Session) (string, error) {
	doc := *sess
	doc.Votes = nil
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding room %s: %w", sess.Code, err)
	}
	return string(b), nil
}

func writeVotes(ctx context.Context, x execer, sess *session.Session) error {
	for i, v := range sess.Votes {
		_, err := x.ExecContext(ctx,
			`INSERT INTO votes (room_code, seq, scene_id, voter_id, choice_id, cast_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.Code, i, v.SceneID, v.VoterID, v.ChoiceID, formatTime(v.CastAt),
		)
		if err != nil {
			return fmt.Errorf("inserting vote: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
