package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/lazy"
	"github.com/caffix/pipesh/tracker"
)

// set changes one field of every issue passing through it. Each issue is
// updated when it is pulled downstream.
type set struct {
	field string
	value string
	opts  Options
}

func newSet(args []string, opts Options) (pipesh.Command, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected FIELD VALUE, got %d arguments", len(args))
	}
	if !slices.Contains(tracker.Editable, args[0]) {
		return nil, fmt.Errorf("field %q is not one of %s", args[0], strings.Join(tracker.Editable, ", "))
	}
	return &set{field: args[0], value: args[1], opts: opts}, nil
}

// Input implements pipesh.Command.
func (s *set) Input() pipesh.Kind {
	return pipesh.Objects
}

// Execute implements pipesh.Command.
func (s *set) Execute(ctx context.Context, env *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	c, err := client(env)
	if err != nil {
		return nil, err
	}

	if s.field == "assignee" && s.value != "" {
		u, err := lookupUser(ctx, env, s.opts, s.value)
		if err != nil {
			return nil, err
		}
		if !u.Active {
			return nil, fmt.Errorf("user %s is inactive", u.Name)
		}
	}

	change := tracker.Change{Field: s.field, To: s.value, Author: s.opts.User}
	return pipesh.NewObjects(lazy.Map(input.(pipesh.ObjectsData).Items,
		func(ctx context.Context, item pipesh.Item, _ lazy.Hints) (pipesh.Item, error) {
			is, err := asIssue(item)
			if err != nil {
				return nil, err
			}
			if err := c.Update(ctx, is.ID, change); err != nil {
				return nil, err
			}

			switch s.field {
			case "summary":
				is.Summary = s.value
			case "status":
				is.Status = s.value
			case "priority":
				is.Priority = s.value
			case "assignee":
				is.Assignee = s.value
			}
			return is, nil
		})), nil
}

type comment struct {
	body string
	opts Options
}

func newComment(args []string, opts Options) (pipesh.Command, error) {
	if len(args) == 0 {
		return nil, errMissingArgs
	}
	return &comment{body: strings.Join(args, " "), opts: opts}, nil
}

// Input implements pipesh.Command.
func (cm *comment) Input() pipesh.Kind {
	return pipesh.Objects
}

// Execute implements pipesh.Command.
func (cm *comment) Execute(_ context.Context, env *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	c, err := client(env)
	if err != nil {
		return nil, err
	}

	return pipesh.NewObjects(lazy.Map(input.(pipesh.ObjectsData).Items,
		func(ctx context.Context, item pipesh.Item, _ lazy.Hints) (pipesh.Item, error) {
			is, err := asIssue(item)
			if err != nil {
				return nil, err
			}
			if err := c.AddComment(ctx, is.ID, cm.opts.User, cm.body); err != nil {
				return nil, err
			}
			if is.Loaded().Has(lazy.Comments) {
				is.Comments = append(is.Comments, tracker.Comment{Author: cm.opts.User, Body: cm.body})
			}
			return is, nil
		})), nil
}

type refresh struct {
	opts Options
}

func newRefresh(args []string, opts Options) (pipesh.Command, error) {
	if len(args) != 0 {
		return nil, errNoArgs
	}
	return &refresh{opts: opts}, nil
}

// Input implements pipesh.Command.
func (r *refresh) Input() pipesh.Kind {
	return pipesh.Nothing
}

// Execute implements pipesh.Command.
func (r *refresh) Execute(context.Context, *pipesh.Env, pipesh.Data) (pipesh.Data, error) {
	if r.opts.Users != nil {
		r.opts.Users.Clear()
	}
	return pipesh.None, nil
}
