package tracker

import (
	"context"
	"fmt"
	"io"

	"github.com/caffix/pipesh/lazy"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document format used to import and export a store.
type Fixture struct {
	Users  []*User  `yaml:"users"`
	Issues []*Issue `yaml:"issues"`
}

var allSections = lazy.NewHints(lazy.Comments, lazy.Watchers, lazy.Links, lazy.History)

// Import loads the users and issues of a YAML fixture into the store,
// replacing records with the same key. Invalid records are skipped and
// reported together; valid records are still imported.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("tracker fixture: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var result error
	for i, u := range f.Users {
		if u == nil || u.Name == "" {
			result = multierror.Append(result, fmt.Errorf("user %d: missing name", i))
			continue
		}
		if _, err := s.exec(ctx, tx, "INSERT OR REPLACE INTO users (name, display, email, active) VALUES (?, ?, ?, ?)",
			u.Name, u.Display, u.Email, u.Active); err != nil {
			return err
		}
	}

	for i, is := range f.Issues {
		if is == nil || is.ID == "" || is.Project == "" {
			result = multierror.Append(result, fmt.Errorf("issue %d: missing key or project", i))
			continue
		}
		if err := s.importIssue(ctx, tx, is); err != nil {
			return fmt.Errorf("issue %s: %w", is.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return result
}

func (s *Store) importIssue(ctx context.Context, tx execer, is *Issue) error {
	created := is.Created
	if created.IsZero() {
		created = s.now()
	}
	updated := is.Updated
	if updated.IsZero() {
		updated = created
	}

	if _, err := s.exec(ctx, tx, "INSERT OR REPLACE INTO issues ("+issueColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		is.ID, is.Project, is.Summary, is.Status, is.Priority, is.Assignee, is.Reporter,
		formatTime(created), formatTime(updated)); err != nil {
		return err
	}

	for _, table := range []string{"comments", "watchers", "links", "history"} {
		if _, err := s.exec(ctx, tx, "DELETE FROM "+table+" WHERE issue_key = ?", is.ID); err != nil {
			return err
		}
	}
	for _, c := range is.Comments {
		if _, err := s.exec(ctx, tx, "INSERT INTO comments (issue_key, author, body, created) VALUES (?, ?, ?, ?)",
			is.ID, c.Author, c.Body, formatTime(c.Created)); err != nil {
			return err
		}
	}
	for _, w := range is.Watchers {
		if _, err := s.exec(ctx, tx, "INSERT OR IGNORE INTO watchers (issue_key, user) VALUES (?, ?)", is.ID, w); err != nil {
			return err
		}
	}
	for _, l := range is.Links {
		if _, err := s.exec(ctx, tx, "INSERT INTO links (issue_key, kind, target) VALUES (?, ?, ?)",
			is.ID, l.Kind, l.Target); err != nil {
			return err
		}
	}
	for _, c := range is.History {
		if _, err := s.exec(ctx, tx, "INSERT INTO history (issue_key, author, field, old, new, changed) VALUES (?, ?, ?, ?, ?, ?)",
			is.ID, c.Author, c.Field, c.From, c.To, formatTime(c.Changed)); err != nil {
			return err
		}
	}
	return nil
}

// Export writes every user and issue, with all auxiliary sections, as a YAML
// fixture.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	users, err := s.Users(ctx)
	if err != nil {
		return err
	}

	issues, err := s.selectIssues(ctx, "ORDER BY rowid")
	if err != nil {
		return err
	}
	if err := s.Load(ctx, issues, allSections); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&Fixture{Users: users, Issues: issues}); err != nil {
		return fmt.Errorf("tracker fixture: %w", err)
	}
	return enc.Close()
}
