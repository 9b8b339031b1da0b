package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// canonicalRoot is the form spokes are keyed by.
func canonicalRoot(root string) string {
	return paths.New(root).Root()
}

// RegisterSpoke returns the id of the spoke for root, creating it on first
// use. Idempotent by canonical root path.
func (s *Store) RegisterSpoke(root string) (int64, error) {
	id, err := registerSpoke(context.Background(), s.db, canonicalRoot(root))
	if err != nil {
		return 0, fmt.Errorf("%w: register spoke: %w", ErrStore, err)
	}
	return id, nil
}

func registerSpoke(ctx context.Context, q querier, root string) (int64, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO spokes (name, root_path) VALUES (?, ?) ON CONFLICT(root_path) DO NOTHING`,
		path.Base(root), root,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM spokes WHERE root_path = ?`, root).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SavePing records a ping against the spoke for root. The agent id is
// sanitized and the action coerced. The ping joins the agent's latest
// session on that spoke that started at most SessionWindow before the ping
// and not after it, otherwise a new session is opened. A zero timestamp means now.
func (s *Store) SavePing(ctx context.Context, ping model.Ping, root string) (model.Ping, error) {
	out := model.Ping{
		AgentID:    SanitizeAgent(ping.AgentID),
		Action:     CoerceAction(string(ping.Action)),
		TargetPath: ping.TargetPath,
		Timestamp:  ping.Timestamp,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = s.now()
	}
	out.Timestamp = out.Timestamp.UTC().Truncate(time.Millisecond)
	ts := toMillis(out.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Ping{}, fmt.Errorf("%w: begin: %w", ErrStore, err)
	}
	defer tx.Rollback()

	spokeID, err := registerSpoke(ctx, tx, canonicalRoot(root))
	if err != nil {
		return model.Ping{}, fmt.Errorf("%w: register spoke: %w", ErrStore, err)
	}

	var sessionID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM sessions
		 WHERE agent_id = ? AND spoke_id = ? AND start_timestamp > ? AND start_timestamp <= ?
		 ORDER BY start_timestamp DESC, id DESC LIMIT 1`,
		out.AgentID, spokeID, ts-SessionWindow.Milliseconds(), ts,
	).Scan(&sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (spoke_id, agent_id, start_timestamp, end_timestamp) VALUES (?, ?, ?, ?)`,
			spokeID, out.AgentID, ts, ts,
		)
		if err != nil {
			return model.Ping{}, fmt.Errorf("%w: create session: %w", ErrStore, err)
		}
		if sessionID, err = res.LastInsertId(); err != nil {
			return model.Ping{}, fmt.Errorf("%w: create session: %w", ErrStore, err)
		}
	case err != nil:
		return model.Ping{}, fmt.Errorf("%w: find session: %w", ErrStore, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pings (session_id, agent_id, action, target_path, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, out.AgentID, string(out.Action), out.TargetPath, ts,
	)
	if err != nil {
		return model.Ping{}, fmt.Errorf("%w: insert ping: %w", ErrStore, err)
	}
	if out.ID, err = res.LastInsertId(); err != nil {
		return model.Ping{}, fmt.Errorf("%w: insert ping: %w", ErrStore, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET total_pings = total_pings + 1, end_timestamp = MAX(COALESCE(end_timestamp, 0), ?)
		 WHERE id = ?`,
		ts, sessionID,
	); err != nil {
		return model.Ping{}, fmt.Errorf("%w: update session: %w", ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Ping{}, fmt.Errorf("%w: commit: %w", ErrStore, err)
	}

	out.SessionID = sessionID
	s.logger.Debug("ping saved", "agent", out.AgentID, "action", out.Action, "session", sessionID)
	return out, nil
}

// Gravity returns the number of pings whose target is target.
func (s *Store) Gravity(target string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pings WHERE target_path = ?`, target).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: gravity: %w", ErrStore, err)
	}
	return n, nil
}

// GravityFor returns ping counts for the given paths. Paths without pings
// are absent from the map.
func (s *Store) GravityFor(targets []string) (map[string]int, error) {
	out := make(map[string]int, len(targets))
	if len(targets) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(
		`SELECT target_path, COUNT(*) FROM pings WHERE target_path IN (`+placeholderList(len(targets))+`) GROUP BY target_path`,
		stringsToArgs(targets)...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: gravity: %w", ErrStore, err)
	}
	return scanGravity(rows, out)
}

// GravityMap returns ping counts per target for every session of the spoke
// at root.
func (s *Store) GravityMap(root string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT p.target_path, COUNT(*)
		 FROM pings p
		 JOIN sessions se ON p.session_id = se.id
		 JOIN spokes sp ON se.spoke_id = sp.id
		 WHERE sp.root_path = ?
		 GROUP BY p.target_path`,
		canonicalRoot(root),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: gravity map: %w", ErrStore, err)
	}
	return scanGravity(rows, make(map[string]int))
}

func scanGravity(rows *sql.Rows, out map[string]int) (map[string]int, error) {
	defer rows.Close()
	for rows.Next() {
		var target string
		var n int
		if err := rows.Scan(&target, &n); err != nil {
			return nil, fmt.Errorf("%w: scan gravity: %w", ErrStore, err)
		}
		out[target] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: gravity rows: %w", ErrStore, err)
	}
	return out, nil
}
