package tracker

import (
	"context"
	"errors"

	"github.com/caffix/pipesh/lazy"
)

// ErrNotFound is returned when a requested issue or user does not exist.
var ErrNotFound = errors.New("not found")

// Editable lists the issue fields Update accepts.
var Editable = []string{"summary", "status", "priority", "assignee"}

// Client is the tracker service the shell commands operate on. Methods
// taking hints also fetch the auxiliary sections the hints name, in bulk.
type Client interface {
	// Issues returns the issues with the provided keys, in the same order.
	Issues(ctx context.Context, keys []string, hints lazy.Hints) ([]*Issue, error)

	// Search returns at most limit issues matching q, skipping the first
	// offset matches.
	Search(ctx context.Context, q Query, offset, limit int, hints lazy.Hints) ([]*Issue, error)

	// Load fetches the auxiliary sections named by hints for issues that
	// have not loaded them yet.
	Load(ctx context.Context, issues []*Issue, hints lazy.Hints) error

	// Update applies change to the issue and records it in its history.
	Update(ctx context.Context, key string, change Change) error

	// AddComment appends a comment to the issue.
	AddComment(ctx context.Context, key, author, body string) error

	// User returns the user with the provided name.
	User(ctx context.Context, name string) (*User, error)

	// Users returns all users ordered by name.
	Users(ctx context.Context) ([]*User, error)
}
