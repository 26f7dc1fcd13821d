package snapshot

import (
	"database/sql"
	"embed"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

// Store keeps the latest JSON snapshot of each lobby so the server can
// rehydrate running games after a restart.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema() error {
	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(strings.TrimSpace(string(b)))
	return err
}

func (s *Store) Save(lobbyID string, state []byte, at time.Time) error {
	_, err := s.db.Exec(`
INSERT INTO lobby_snapshots(lobby_id, state, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(lobby_id) DO UPDATE SET
    state = excluded.state,
    updated_at = excluded.updated_at
`, lobbyID, state, at)
	return err
}

func (s *Store) Load(lobbyID string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRow(`SELECT state FROM lobby_snapshots WHERE lobby_id = ?`, lobbyID).Scan(&state)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return state, nil
}

func (s *Store) LoadAll() (map[string][]byte, error) {
	rows, err := s.db.Query(`SELECT lobby_id, state FROM lobby_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var state []byte
		if err := rows.Scan(&id, &state); err != nil {
			return nil, err
		}
		out[id] = state
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(lobbyID string) error {
	_, err := s.db.Exec(`DELETE FROM lobby_snapshots WHERE lobby_id = ?`, lobbyID)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
