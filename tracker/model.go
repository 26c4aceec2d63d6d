// Package tracker holds the issue tracker domain model, the Client interface
// the shell commands talk to, and a SQLite backed implementation of it.
package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/caffix/pipesh/lazy"
)

// Issue is a tracked unit of work.
type Issue struct {
	ID       string    `yaml:"key" json:"key"`
	Project  string    `yaml:"project" json:"project"`
	Summary  string    `yaml:"summary" json:"summary"`
	Status   string    `yaml:"status" json:"status"`
	Priority string    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Assignee string    `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Reporter string    `yaml:"reporter,omitempty" json:"reporter,omitempty"`
	Created  time.Time `yaml:"created" json:"created"`
	Updated  time.Time `yaml:"updated" json:"updated"`

	// Auxiliary sections, only populated when loaded
	Comments []Comment `yaml:"comments,omitempty" json:"comments,omitempty"`
	Watchers []string  `yaml:"watchers,omitempty" json:"watchers,omitempty"`
	Links    []Link    `yaml:"links,omitempty" json:"links,omitempty"`
	History  []Change  `yaml:"history,omitempty" json:"history,omitempty"`

	loaded lazy.Hints
}

// Comment is a remark left on an issue.
type Comment struct {
	Author  string    `yaml:"author" json:"author"`
	Body    string    `yaml:"body" json:"body"`
	Created time.Time `yaml:"created" json:"created"`
}

// Link relates an issue to another one.
type Link struct {
	Kind   string `yaml:"kind" json:"kind"`
	Target string `yaml:"target" json:"target"`
}

// Change is an edit of one issue field. Applied changes are recorded in the
// issue history.
type Change struct {
	Field   string    `yaml:"field" json:"field"`
	From    string    `yaml:"from,omitempty" json:"from,omitempty"`
	To      string    `yaml:"to" json:"to"`
	Author  string    `yaml:"author,omitempty" json:"author,omitempty"`
	Changed time.Time `yaml:"changed" json:"changed"`
}

// User is an account known to the tracker.
type User struct {
	Name    string `yaml:"name" json:"name"`
	Display string `yaml:"display,omitempty" json:"display,omitempty"`
	Email   string `yaml:"email,omitempty" json:"email,omitempty"`
	Active  bool   `yaml:"active" json:"active"`
}

// Query selects issues in a search. Empty fields match everything.
type Query struct {
	Project  string
	Status   string
	Assignee string
	// Text is matched against the summary, case-insensitively.
	Text string
}

// Key returns the issue key.
func (i *Issue) Key() string {
	return i.ID
}

// Loaded returns the auxiliary sections that have been fetched.
func (i *Issue) Loaded() lazy.Hints {
	return i.loaded
}

// MarkLoaded records that the sections named by hints have been fetched.
func (i *Issue) MarkLoaded(hints lazy.Hints) {
	i.loaded = i.loaded.Combine(hints)
}

// Lines renders the issue. Auxiliary sections appear when they are both
// requested by hints and loaded.
func (i *Issue) Lines(hints lazy.Hints) []string {
	head := fmt.Sprintf("%s [%s] %s", i.ID, i.Status, i.Summary)
	if i.Assignee != "" {
		head += fmt.Sprintf(" (%s)", i.Assignee)
	}
	lines := []string{head}

	show := func(h lazy.Hint) bool {
		return hints.Has(h) && i.loaded.Has(h)
	}
	if show(lazy.Watchers) && len(i.Watchers) > 0 {
		lines = append(lines, "  watchers: "+strings.Join(i.Watchers, ", "))
	}
	if show(lazy.Links) {
		for _, l := range i.Links {
			lines = append(lines, fmt.Sprintf("  %s %s", l.Kind, l.Target))
		}
	}
	if show(lazy.Comments) {
		for _, c := range i.Comments {
			lines = append(lines, fmt.Sprintf("  %s: %s", c.Author, c.Body))
		}
	}
	if show(lazy.History) {
		for _, c := range i.History {
			lines = append(lines, fmt.Sprintf("  %s %s changed %s: %q -> %q",
				c.Changed.Format(time.DateOnly), c.Author, c.Field, c.From, c.To))
		}
	}
	return lines
}

func (u *User) String() string {
	if u.Display == "" {
		return u.Name
	}
	return fmt.Sprintf("%s (%s)", u.Name, u.Display)
}
