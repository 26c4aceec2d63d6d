package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/caffix/pipesh/lazy"
	_ "modernc.org/sqlite" // database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	name    TEXT PRIMARY KEY,
	display TEXT NOT NULL DEFAULT '',
	email   TEXT NOT NULL DEFAULT '',
	active  INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS issues (
	key      TEXT PRIMARY KEY,
	project  TEXT NOT NULL,
	summary  TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	assignee TEXT NOT NULL DEFAULT '',
	reporter TEXT NOT NULL DEFAULT '',
	created  TEXT NOT NULL,
	updated  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_key TEXT NOT NULL,
	author    TEXT NOT NULL,
	body      TEXT NOT NULL,
	created   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS watchers (
	issue_key TEXT NOT NULL,
	user      TEXT NOT NULL,
	PRIMARY KEY (issue_key, user)
);
CREATE TABLE IF NOT EXISTS links (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_key TEXT NOT NULL,
	kind      TEXT NOT NULL,
	target    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_key TEXT NOT NULL,
	author    TEXT NOT NULL DEFAULT '',
	field     TEXT NOT NULL,
	old       TEXT NOT NULL DEFAULT '',
	new       TEXT NOT NULL DEFAULT '',
	changed   TEXT NOT NULL
);`

const issueColumns = `key, project, summary, status, priority, assignee, reporter, created, updated`

// Store is a Client backed by a SQLite database.
type Store struct {
	db *sql.DB
	// queries counts the statements sent to the database
	queries atomic.Int64
	now     func() time.Time
}

// Open opens, and creates when missing, the SQLite database at path. Use
// ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tracker store %s: %w", path, err)
	}
	// One connection keeps in-memory databases alive and shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tracker store %s: schema: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Queries returns the number of statements sent to the database so far.
func (s *Store) Queries() int64 {
	return s.queries.Load()
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	s.queries.Add(1)
	return s.db.QueryContext(ctx, q, args...)
}

func (s *Store) exec(ctx context.Context, ex execer, q string, args ...any) (sql.Result, error) {
	s.queries.Add(1)
	return ex.ExecContext(ctx, q, args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Issues implements Client.
func (s *Store) Issues(ctx context.Context, keys []string, hints lazy.Hints) ([]*Issue, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	found, err := s.selectIssues(ctx, "WHERE key IN ("+placeholders(len(keys))+")", toArgs(keys)...)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*Issue, len(found))
	for _, i := range found {
		byKey[i.ID] = i
	}

	out := make([]*Issue, 0, len(keys))
	for _, k := range keys {
		i, ok := byKey[k]
		if !ok {
			return nil, fmt.Errorf("issue %s: %w", k, ErrNotFound)
		}
		out = append(out, i)
	}

	if err := s.Load(ctx, out, hints); err != nil {
		return nil, err
	}
	return out, nil
}

// Search implements Client.
func (s *Store) Search(ctx context.Context, q Query, offset, limit int, hints lazy.Hints) ([]*Issue, error) {
	var conds []string
	var args []any

	if q.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, q.Project)
	}
	if q.Status != "" {
		conds = append(conds, "status = ? COLLATE NOCASE")
		args = append(args, q.Status)
	}
	if q.Assignee != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, q.Assignee)
	}
	if q.Text != "" {
		conds = append(conds, "summary LIKE ?")
		args = append(args, "%"+q.Text+"%")
	}

	var where string
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)

	issues, err := s.selectIssues(ctx, where+" ORDER BY rowid LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, issues, hints); err != nil {
		return nil, err
	}
	return issues, nil
}

func (s *Store) selectIssues(ctx context.Context, clause string, args ...any) ([]*Issue, error) {
	rows, err := s.query(ctx, "SELECT "+issueColumns+" FROM issues "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker store: select issues: %w", err)
	}
	defer rows.Close()

	var out []*Issue
	for rows.Next() {
		var i Issue
		var created, updated string

		if err := rows.Scan(&i.ID, &i.Project, &i.Summary, &i.Status, &i.Priority,
			&i.Assignee, &i.Reporter, &created, &updated); err != nil {
			return nil, fmt.Errorf("tracker store: scan issue: %w", err)
		}
		i.Created = parseTime(created)
		i.Updated = parseTime(updated)
		out = append(out, &i)
	}
	return out, rows.Err()
}

// Load implements Client. Each requested section costs one query for all of
// the issues together.
func (s *Store) Load(ctx context.Context, issues []*Issue, hints lazy.Hints) error {
	for _, h := range hints.Slice() {
		byKey := make(map[string]*Issue)
		for _, i := range issues {
			if !i.Loaded().Has(h) {
				byKey[i.ID] = i
			}
		}
		if len(byKey) == 0 {
			continue
		}

		if err := s.loadSection(ctx, h, byKey); err != nil {
			return fmt.Errorf("tracker store: load %s: %w", h, err)
		}
		for _, i := range byKey {
			i.MarkLoaded(lazy.NewHints(h))
		}
	}
	return nil
}

func (s *Store) loadSection(ctx context.Context, h lazy.Hint, byKey map[string]*Issue) error {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	in := "(" + placeholders(len(keys)) + ")"

	var q string
	switch h {
	case lazy.Comments:
		q = "SELECT issue_key, author, body, created FROM comments WHERE issue_key IN " + in + " ORDER BY id"
	case lazy.Watchers:
		q = "SELECT issue_key, user FROM watchers WHERE issue_key IN " + in + " ORDER BY user"
	case lazy.Links:
		q = "SELECT issue_key, kind, target FROM links WHERE issue_key IN " + in + " ORDER BY id"
	case lazy.History:
		q = "SELECT issue_key, author, field, old, new, changed FROM history WHERE issue_key IN " + in + " ORDER BY id"
	default:
		return fmt.Errorf("unsupported hint %v", h)
	}

	rows, err := s.query(ctx, q, toArgs(keys)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for _, i := range byKey {
		switch h {
		case lazy.Comments:
			i.Comments = nil
		case lazy.Watchers:
			i.Watchers = nil
		case lazy.Links:
			i.Links = nil
		case lazy.History:
			i.History = nil
		}
	}

	for rows.Next() {
		var key string

		switch h {
		case lazy.Comments:
			var c Comment
			var created string
			if err := rows.Scan(&key, &c.Author, &c.Body, &created); err != nil {
				return err
			}
			c.Created = parseTime(created)
			byKey[key].Comments = append(byKey[key].Comments, c)
		case lazy.Watchers:
			var user string
			if err := rows.Scan(&key, &user); err != nil {
				return err
			}
			byKey[key].Watchers = append(byKey[key].Watchers, user)
		case lazy.Links:
			var l Link
			if err := rows.Scan(&key, &l.Kind, &l.Target); err != nil {
				return err
			}
			byKey[key].Links = append(byKey[key].Links, l)
		case lazy.History:
			var c Change
			var changed string
			if err := rows.Scan(&key, &c.Author, &c.Field, &c.From, &c.To, &changed); err != nil {
				return err
			}
			c.Changed = parseTime(changed)
			byKey[key].History = append(byKey[key].History, c)
		}
	}
	return rows.Err()
}

// Update implements Client.
func (s *Store) Update(ctx context.Context, key string, change Change) error {
	if !slices.Contains(Editable, change.Field) {
		return fmt.Errorf("field %q cannot be edited", change.Field)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var old string
	s.queries.Add(1)
	// the column name comes from the Editable allow list
	err = tx.QueryRowContext(ctx, "SELECT "+change.Field+" FROM issues WHERE key = ?", key).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("issue %s: %w", key, ErrNotFound)
	} else if err != nil {
		return err
	}

	now := formatTime(s.now())
	if _, err := s.exec(ctx, tx, "UPDATE issues SET "+change.Field+" = ?, updated = ? WHERE key = ?",
		change.To, now, key); err != nil {
		return err
	}
	if _, err := s.exec(ctx, tx, "INSERT INTO history (issue_key, author, field, old, new, changed) VALUES (?, ?, ?, ?, ?, ?)",
		key, change.Author, change.Field, old, change.To, now); err != nil {
		return err
	}
	return tx.Commit()
}

// AddComment implements Client.
func (s *Store) AddComment(ctx context.Context, key, author, body string) error {
	res, err := s.exec(ctx, s.db, "UPDATE issues SET updated = ? WHERE key = ?", formatTime(s.now()), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("issue %s: %w", key, ErrNotFound)
	}

	_, err = s.exec(ctx, s.db, "INSERT INTO comments (issue_key, author, body, created) VALUES (?, ?, ?, ?)",
		key, author, body, formatTime(s.now()))
	return err
}

// User implements Client.
func (s *Store) User(ctx context.Context, name string) (*User, error) {
	users, err := s.selectUsers(ctx, "WHERE name = ?", name)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", name, ErrNotFound)
	}
	return users[0], nil
}

// Users implements Client.
func (s *Store) Users(ctx context.Context) ([]*User, error) {
	return s.selectUsers(ctx, "ORDER BY name")
}

func (s *Store) selectUsers(ctx context.Context, clause string, args ...any) ([]*User, error) {
	rows, err := s.query(ctx, "SELECT name, display, email, active FROM users "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker store: select users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Name, &u.Display, &u.Email, &u.Active); err != nil {
			return nil, fmt.Errorf("tracker store: scan user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
