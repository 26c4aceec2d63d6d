package commands

import (
	"context"
	"strings"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/lazy"
	"github.com/caffix/pipesh/tracker"
	"github.com/caffix/stringset"
)

type echo struct {
	words []string
}

func newEcho(args []string) (pipesh.Command, error) {
	return &echo{words: args}, nil
}

// Input implements pipesh.Command.
func (e *echo) Input() pipesh.Kind {
	return pipesh.Nothing
}

// Execute implements pipesh.Command.
func (e *echo) Execute(context.Context, *pipesh.Env, pipesh.Data) (pipesh.Data, error) {
	return pipesh.TextList(e.words...), nil
}

// read fetches issues by key. The keys come from the arguments, or from the
// upstream texts when no arguments are given.
type read struct {
	keys  []string
	batch int
}

func newRead(args []string, opts Options) (pipesh.Command, error) {
	fs := newFlags("read")
	batch := fs.Int("batch", opts.BatchSize, "number of issues fetched per request")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *batch <= 0 {
		return nil, errBadBatch
	}

	var keys []string
	if fs.NArg() > 0 {
		seen := stringset.New()
		defer seen.Close()

		for _, k := range fs.Args() {
			if !seen.Has(k) {
				seen.Insert(k)
				keys = append(keys, k)
			}
		}
	}
	return &read{keys: keys, batch: *batch}, nil
}

// Input implements pipesh.Command.
func (r *read) Input() pipesh.Kind {
	if len(r.keys) > 0 {
		return pipesh.Nothing
	}
	return pipesh.Texts
}

// Execute implements pipesh.Command.
func (r *read) Execute(_ context.Context, env *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	c, err := client(env)
	if err != nil {
		return nil, err
	}

	keys := lazy.FromSlice(r.keys...)
	if len(r.keys) == 0 {
		keys = distinct(input.(pipesh.TextsData).Items)
	}

	issues := lazy.Batches[*tracker.Issue](lazy.BatchProducerFunc[*tracker.Issue](
		func(ctx context.Context, hints lazy.Hints) ([]*tracker.Issue, bool, error) {
			var batch []string

			for len(batch) < r.batch {
				k, ok, err := keys.Next(ctx, lazy.Hints{})
				if err != nil {
					return nil, false, err
				}
				if !ok {
					break
				}
				if k = strings.TrimSpace(k); k != "" {
					batch = append(batch, k)
				}
			}
			if len(batch) == 0 {
				return nil, false, nil
			}

			found, err := c.Issues(ctx, batch, hints)
			if err != nil {
				return nil, false, err
			}
			return found, true, nil
		}))
	return pipesh.NewObjects(lazy.Map(issues, toItem)), nil
}

// search pages through the issues matching a query.
type search struct {
	query tracker.Query
	limit int
	batch int
}

func newSearch(args []string, opts Options) (pipesh.Command, error) {
	var s search

	fs := newFlags("search")
	fs.IntVar(&s.limit, "limit", 0, "maximum number of issues, 0 for all")
	fs.IntVar(&s.batch, "batch", opts.BatchSize, "number of issues fetched per request")
	fs.StringVar(&s.query.Project, "project", "", "project key")
	fs.StringVar(&s.query.Status, "status", "", "issue status")
	fs.StringVar(&s.query.Assignee, "assignee", "", "assignee name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if s.batch <= 0 {
		return nil, errBadBatch
	}
	if s.limit < 0 {
		return nil, errBadLimit
	}

	s.query.Text = strings.Join(fs.Args(), " ")
	return &s, nil
}

// Input implements pipesh.Command.
func (s *search) Input() pipesh.Kind {
	return pipesh.Nothing
}

// Execute implements pipesh.Command.
func (s *search) Execute(_ context.Context, env *pipesh.Env, _ pipesh.Data) (pipesh.Data, error) {
	c, err := client(env)
	if err != nil {
		return nil, err
	}

	var offset int
	var last bool
	issues := lazy.Batches[*tracker.Issue](lazy.BatchProducerFunc[*tracker.Issue](
		func(ctx context.Context, hints lazy.Hints) ([]*tracker.Issue, bool, error) {
			size := s.batch
			if s.limit > 0 {
				size = min(size, s.limit-offset)
			}
			if last || size <= 0 {
				return nil, false, nil
			}

			page, err := c.Search(ctx, s.query, offset, size, hints)
			if err != nil {
				return nil, false, err
			}
			if len(page) == 0 {
				return nil, false, nil
			}
			// a short page is the final one
			last = len(page) < size
			offset += len(page)
			return page, true, nil
		}))
	return pipesh.NewObjects(lazy.Map(issues, toItem)), nil
}

type users struct {
	opts Options
}

func newUsers(args []string, opts Options) (pipesh.Command, error) {
	if len(args) != 0 {
		return nil, errNoArgs
	}
	return &users{opts: opts}, nil
}

// Input implements pipesh.Command.
func (u *users) Input() pipesh.Kind {
	return pipesh.Nothing
}

// Execute implements pipesh.Command. Listed users seed the user cache.
func (u *users) Execute(ctx context.Context, env *pipesh.Env, _ pipesh.Data) (pipesh.Data, error) {
	c, err := client(env)
	if err != nil {
		return nil, err
	}

	all, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(all))
	for _, user := range all {
		if u.opts.Users != nil {
			u.opts.Users.PutIfAbsent(user.Name, user)
		}

		line := user.String()
		if !user.Active {
			line += " [inactive]"
		}
		lines = append(lines, line)
	}
	return pipesh.TextList(lines...), nil
}

type help struct {
	names func() []string
}

// Input implements pipesh.Command.
func (h *help) Input() pipesh.Kind {
	return pipesh.Nothing
}

// Execute implements pipesh.Command.
func (h *help) Execute(context.Context, *pipesh.Env, pipesh.Data) (pipesh.Data, error) {
	return pipesh.TextList(h.names()...), nil
}
