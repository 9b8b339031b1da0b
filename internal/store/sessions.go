package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jward/pennyone/internal/atomicfile"
	"github.com/jward/pennyone/internal/model"
)

const sessionColumns = `s.id, s.spoke_id, s.agent_id, s.start_timestamp, COALESCE(s.end_timestamp, s.start_timestamp), s.total_pings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner, extra ...any) (model.Session, error) {
	var sess model.Session
	var start, end int64
	dest := append([]any{&sess.ID, &sess.SpokeID, &sess.AgentID, &start, &end, &sess.TotalPings}, extra...)
	if err := r.Scan(dest...); err != nil {
		return model.Session{}, err
	}
	sess.Start = fromMillis(start)
	sess.End = fromMillis(end)
	return sess, nil
}

// SessionsWithSummaries returns every session of the spoke at root, newest
// first, each with a generated one-line summary.
func (s *Store) SessionsWithSummaries(root string) ([]model.SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+`, sp.name,
		  COALESCE((SELECT target_path FROM pings
		            WHERE session_id = s.id
		            GROUP BY target_path
		            ORDER BY COUNT(*) DESC, MIN(id) ASC
		            LIMIT 1), '')
		FROM sessions s
		JOIN spokes sp ON s.spoke_id = sp.id
		WHERE sp.root_path = ?
		ORDER BY s.start_timestamp DESC, s.id DESC`,
		canonicalRoot(root),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", ErrStore, err)
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		var spokeName, primary string
		sess, err := scanSession(rows, &spokeName, &primary)
		if err != nil {
			return nil, fmt.Errorf("%w: scan session: %w", ErrStore, err)
		}
		out = append(out, model.SessionSummary{
			Session:       sess,
			SpokeName:     spokeName,
			PrimaryTarget: primary,
			Summary:       summarize(sess, primary),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: session rows: %w", ErrStore, err)
	}
	return out, nil
}

// Session returns one session by id. A missing session wraps ErrNotFound.
func (s *Store) Session(id int64) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %w", ErrStore, err)
	}
	return &sess, nil
}

// SessionPings returns a session's pings in chronological order.
func (s *Store) SessionPings(id int64) ([]model.Ping, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, agent_id, action, target_path, timestamp
		 FROM pings WHERE session_id = ?
		 ORDER BY timestamp ASC, id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: session pings: %w", ErrStore, err)
	}
	defer rows.Close()

	var out []model.Ping
	for rows.Next() {
		var p model.Ping
		var action string
		var ts int64
		if err := rows.Scan(&p.ID, &p.SessionID, &p.AgentID, &action, &p.TargetPath, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan ping: %w", ErrStore, err)
		}
		p.Action = model.Action(action)
		p.Timestamp = fromMillis(ts)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ping rows: %w", ErrStore, err)
	}
	return out, nil
}

// SessionExport is the document ExportSession writes.
type SessionExport struct {
	Session    model.Session `json:"session"`
	Pings      []model.Ping  `json:"pings"`
	ExportedAt time.Time     `json:"exportedAt"`
}

// ExportSession writes session_<id>.json (metadata and pings) into dir
// atomically and returns the file's path.
func (s *Store) ExportSession(id int64, dir string) (string, error) {
	sess, err := s.Session(id)
	if err != nil {
		return "", err
	}
	pings, err := s.SessionPings(id)
	if err != nil {
		return "", err
	}
	if pings == nil {
		pings = []model.Ping{}
	}

	data, err := json.MarshalIndent(SessionExport{Session: *sess, Pings: pings, ExportedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: marshal session %d: %w", id, err)
	}
	out := filepath.Join(dir, fmt.Sprintf("session_%d.json", id))
	if err := atomicfile.Write(out, data, 0o644); err != nil {
		return "", fmt.Errorf("store: export session %d: %w", id, err)
	}
	return out, nil
}
