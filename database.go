package main

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// AccountRow represents an account record
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow aggregates an account's recorded rounds
type StatsRow struct {
	AccountID string `json:"accountId"`
	Matches   int    `json:"matches"`
	Score     int    `json:"score"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
}

// MatchHistoryRow is one round played by an account
type MatchHistoryRow struct {
	MatchID string    `json:"matchId"`
	Mode    string    `json:"mode"`
	Team    int       `json:"team,omitempty"`
	Score   int       `json:"score"`
	Kills   int       `json:"kills"`
	Deaths  int       `json:"deaths"`
	EndedAt time.Time `json:"endedAt"`
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_key TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT '',
		duration REAL NOT NULL DEFAULT 0,
		ended_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		team INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE TABLE IF NOT EXISTS kill_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_key TEXT NOT NULL,
		killer TEXT NOT NULL DEFAULT '',
		victim TEXT NOT NULL,
		killer_name TEXT NOT NULL DEFAULT '',
		victim_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_account ON match_players(account_id);
	CREATE INDEX IF NOT EXISTS idx_kill_events_match ON kill_events(match_key);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateAccount inserts an account and returns its id
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO accounts (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAccountByUsername returns an account, or nil when none matches
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE username = ?",
		username,
	)
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetSetting returns a stored setting, or "" when it is missing
func (db *DB) GetSetting(key string) string {
	var value string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value); err != nil {
		return ""
	}
	return value
}

// SetSetting upserts a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// insertKill writes one kill-feed entry
func insertKill(ex execer, k KillRecord) error {
	_, err := ex.Exec(
		`INSERT INTO kill_events (match_key, killer, victim, killer_name, victim_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		k.MatchID, k.Killer, k.Victim, k.KillerName, k.VictimName, k.At.UTC(),
	)
	return err
}

// insertMatch writes a finished round and its scoreboard
func insertMatch(ex execer, m MatchResult) error {
	res, err := ex.Exec(
		"INSERT INTO matches (match_key, mode, duration, ended_at) VALUES (?, ?, ?, ?)",
		m.MatchID, m.Mode, m.Duration.Seconds(), m.EndedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, p := range m.Players {
		_, err := ex.Exec(
			`INSERT INTO match_players (match_id, player_id, account_id, name, team, score, kills, deaths)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.ID, p.AccountID, p.Name, int(p.Team), p.Score, p.Kills, p.Deaths,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetStats sums an account's recorded rounds. XP is the total score.
func (db *DB) GetStats(accountID string) (StatsRow, error) {
	s := StatsRow{AccountID: accountID}
	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(score), 0), COALESCE(SUM(kills), 0), COALESCE(SUM(deaths), 0)
		FROM match_players WHERE account_id = ?`,
		accountID,
	).Scan(&s.Matches, &s.Score, &s.Kills, &s.Deaths)
	if err != nil {
		return s, err
	}
	s.XP = s.Score
	s.Level = CalculateLevel(s.XP)
	return s, nil
}

// GetMatchHistory returns recent rounds for an account, newest first
func (db *DB) GetMatchHistory(accountID string, limit int) ([]MatchHistoryRow, error) {
	rows, err := db.conn.Query(`
		SELECT m.match_key, m.mode, mp.team, mp.score, mp.kills, mp.deaths, m.ended_at
		FROM match_players mp
		JOIN matches m ON m.id = mp.match_id
		WHERE mp.account_id = ?
		ORDER BY m.ended_at DESC, m.id DESC
		LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []MatchHistoryRow{}
	for rows.Next() {
		var r MatchHistoryRow
		if err := rows.Scan(&r.MatchID, &r.Mode, &r.Team, &r.Score, &r.Kills, &r.Deaths, &r.EndedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// XPForLevel returns the total XP required to reach a given level.
// Level 1 requires 0 XP, level 2 requires 100, etc.
// Formula: sum of 100 * i^1.5 for i in 1..level-1
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100.0 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// CalculateLevel returns the level for a given total XP amount
func CalculateLevel(totalXP int) int {
	level := 1
	for {
		needed := XPForLevel(level + 1)
		if totalXP < needed {
			return level
		}
		level++
		if level > 100 { // cap at 100
			return 100
		}
	}
}

func accountKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
