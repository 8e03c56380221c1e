package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mckinnonit/mckinnonville/internal/services"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS citizens (
    email            TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    plot             TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    space_id         TEXT NOT NULL,
    house            TEXT NOT NULL,
    occupation       TEXT NOT NULL,
    occupation_level INTEGER NOT NULL,
    gold             INTEGER NOT NULL,
    quiz_week        INTEGER NOT NULL DEFAULT 0,
    quiz_attempts    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS votes (
    email  TEXT NOT NULL,
    week   INTEGER NOT NULL,
    option TEXT NOT NULL,
    PRIMARY KEY (email, week)
);
CREATE TABLE IF NOT EXISTS plots (
    ref    TEXT PRIMARY KEY,
    marker TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS houses (
    username TEXT PRIMARY KEY,
    house    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS villages (
    name       TEXT PRIMARY KEY,
    population INTEGER NOT NULL DEFAULT 0,
    gold       INTEGER NOT NULL DEFAULT 0,
    education  REAL NOT NULL DEFAULT 0,
    health     REAL NOT NULL DEFAULT 0,
    happiness  REAL NOT NULL DEFAULT 0,
    tax_rate   REAL NOT NULL DEFAULT 0,
    prosperity REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS occupations (
    name         TEXT PRIMARY KEY,
    icon         TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    subjects     TEXT NOT NULL DEFAULT '[]',
    education    REAL NOT NULL DEFAULT 0,
    health       REAL NOT NULL DEFAULT 0,
    happiness    REAL NOT NULL DEFAULT 0,
    image_url    TEXT NOT NULL DEFAULT '',
    salary_lower REAL NOT NULL DEFAULT 0,
    salary_upper REAL NOT NULL DEFAULT 0,
    salary_steps TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS questions (
    id      TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    level   INTEGER NOT NULL,
    text    TEXT NOT NULL,
    options TEXT NOT NULL,
    answer  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vote_options (
    week        INTEGER NOT NULL,
    id          TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (week, id)
);
CREATE TABLE IF NOT EXISTS week_schedule (
    week        INTEGER PRIMARY KEY,
    start_date  TEXT NOT NULL,
    notify_time TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is a local Store backend for development deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetCitizen(email string) (*services.Citizen, error) {
	row := s.db.QueryRow(`SELECT name, email, plot, user_id, space_id, house, occupation, occupation_level, gold
        FROM citizens WHERE email = ?`, emailKey(email))
	c, err := scanCitizen(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, upstream(err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCitizens() ([]*services.Citizen, error) {
	rows, err := s.db.Query(`SELECT name, email, plot, user_id, space_id, house, occupation, occupation_level, gold
        FROM citizens ORDER BY email`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	var out []*services.Citizen
	for rows.Next() {
		c, err := scanCitizen(rows)
		if err != nil {
			return nil, upstream(err)
		}
		out = append(out, c)
	}
	return out, upstreamOrNil(rows.Err())
}

func (s *SQLiteStore) AppendCitizen(c *services.Citizen) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO citizens
        (email, name, plot, user_id, space_id, house, occupation, occupation_level, gold)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		emailKey(c.Email), c.Name, c.Plot, c.UserID, c.SpaceID, c.House, c.Occupation, c.OccupationLevel, c.Gold)
	return upstreamOrNil(err)
}

func (s *SQLiteStore) UpdateCitizenProgress(email string, level, gold int) error {
	_, err := s.db.Exec(`UPDATE citizens SET occupation_level = ?, gold = ? WHERE email = ?`,
		level, gold, emailKey(email))
	return upstreamOrNil(err)
}

func (s *SQLiteStore) GetQuizAttempts(email string, week int) (int, error) {
	var recordedWeek, count int
	err := s.db.QueryRow(`SELECT quiz_week, quiz_attempts FROM citizens WHERE email = ?`,
		emailKey(email)).Scan(&recordedWeek, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, services.NewNotFoundError(fmt.Sprintf("no citizen row for %s", email))
	}
	if err != nil {
		return 0, upstream(err)
	}
	if recordedWeek != week {
		return 0, nil
	}
	return count, nil
}

func (s *SQLiteStore) SetQuizAttempts(email string, week, count int) error {
	_, err := s.db.Exec(`UPDATE citizens SET quiz_week = ?, quiz_attempts = ? WHERE email = ?`,
		week, count, emailKey(email))
	return upstreamOrNil(err)
}

func (s *SQLiteStore) GetHouse(username string) (string, error) {
	var house string
	err := s.db.QueryRow(`SELECT house FROM houses WHERE username = ?`, strings.ToLower(username)).Scan(&house)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", upstream(err)
	}
	return house, nil
}

func (s *SQLiteStore) GetVillage(name string) (*services.Village, error) {
	v := &services.Village{}
	err := s.db.QueryRow(`SELECT name, population, gold, education, health, happiness, tax_rate, prosperity
        FROM villages WHERE name = ?`, name).
		Scan(&v.Name, &v.Population, &v.Gold, &v.Education, &v.Health, &v.Happiness, &v.TaxRate, &v.Prosperity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, upstream(err)
	}
	return v, nil
}

func (s *SQLiteStore) ListOccupations() ([]*services.Occupation, error) {
	rows, err := s.db.Query(`SELECT name, icon, description, subjects, education, health, happiness,
        image_url, salary_lower, salary_upper, salary_steps FROM occupations ORDER BY name`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	var out []*services.Occupation
	for rows.Next() {
		var o services.Occupation
		var subjects, steps string
		if err := rows.Scan(&o.Name, &o.Icon, &o.Description, &subjects, &o.Education, &o.Health,
			&o.Happiness, &o.ImageURL, &o.Salary.Lower, &o.Salary.Upper, &steps); err != nil {
			return nil, upstream(err)
		}
		o.Subjects = decodeStringList(subjects)
		o.Salary.Steps = decodeIntList(steps)
		out = append(out, &o)
	}
	return out, upstreamOrNil(rows.Err())
}

func (s *SQLiteStore) ListPlotMarkers() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT ref, marker FROM plots`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var ref, marker string
		if err := rows.Scan(&ref, &marker); err != nil {
			return nil, upstream(err)
		}
		out[ref] = marker
	}
	return out, upstreamOrNil(rows.Err())
}

func (s *SQLiteStore) GetPlotMarker(ref string) (string, error) {
	var marker string
	err := s.db.QueryRow(`SELECT marker FROM plots WHERE ref = ?`, ref).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", upstream(err)
	}
	return marker, nil
}

func (s *SQLiteStore) SetPlotMarker(ref, marker string) error {
	_, err := s.db.Exec(`INSERT INTO plots (ref, marker) VALUES (?, ?)
        ON CONFLICT(ref) DO UPDATE SET marker = excluded.marker`, ref, marker)
	return upstreamOrNil(err)
}

func (s *SQLiteStore) CompareAndSetPlotMarker(ref, old, marker string) (bool, error) {
	res, err := s.db.Exec(`UPDATE plots SET marker = ? WHERE ref = ? AND marker = ?`, marker, ref, old)
	if err != nil {
		return false, upstream(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, upstream(err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListQuestions() ([]*services.Question, error) {
	rows, err := s.db.Query(`SELECT id, subject, level, text, options, answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	var out []*services.Question
	for rows.Next() {
		var q services.Question
		var options string
		if err := rows.Scan(&q.ID, &q.Subject, &q.Level, &q.Text, &options, &q.Answer); err != nil {
			return nil, upstream(err)
		}
		q.Options = decodeStringList(options)
		out = append(out, &q)
	}
	return out, upstreamOrNil(rows.Err())
}

func (s *SQLiteStore) ListVoteOptions() ([]*services.VoteOption, error) {
	rows, err := s.db.Query(`SELECT week, id, name, description FROM vote_options ORDER BY week, id`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	var out []*services.VoteOption
	for rows.Next() {
		var o services.VoteOption
		if err := rows.Scan(&o.Week, &o.ID, &o.Name, &o.Description); err != nil {
			return nil, upstream(err)
		}
		out = append(out, &o)
	}
	return out, upstreamOrNil(rows.Err())
}

func (s *SQLiteStore) GetVote(email string, week int) (string, error) {
	var option string
	err := s.db.QueryRow(`SELECT option FROM votes WHERE email = ? AND week = ?`,
		emailKey(email), week).Scan(&option)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", upstream(err)
	}
	return option, nil
}

func (s *SQLiteStore) SetVote(email string, week int, option string) error {
	// INSERT only: a second vote for the same week fails the primary key
	// rather than overwriting the first.
	_, err := s.db.Exec(`INSERT INTO votes (email, week, option) VALUES (?, ?, ?)`,
		emailKey(email), week, option)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return services.NewConflictError("you have already submitted a vote for this ordinance")
	}
	return upstreamOrNil(err)
}

func (s *SQLiteStore) ListWeekSchedule() ([]services.WeekEntry, error) {
	rows, err := s.db.Query(`SELECT week, start_date, notify_time, message FROM week_schedule ORDER BY week`)
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()
	var out []services.WeekEntry
	for rows.Next() {
		var e services.WeekEntry
		if err := rows.Scan(&e.Week, &e.StartDate, &e.NotifyTime, &e.Message); err != nil {
			return nil, upstream(err)
		}
		out = append(out, e)
	}
	return out, upstreamOrNil(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCitizen(row rowScanner) (*services.Citizen, error) {
	var c services.Citizen
	err := row.Scan(&c.Name, &c.Email, &c.Plot, &c.UserID, &c.SpaceID, &c.House,
		&c.Occupation, &c.OccupationLevel, &c.Gold)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeStringList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("sqlite store: decode string list: %v", err)
		return nil
	}
	return out
}

func decodeIntList(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("sqlite store: decode int list: %v", err)
		return nil
	}
	return out
}

func upstreamOrNil(err error) error {
	if err == nil {
		return nil
	}
	return upstream(err)
}
