// Package commands implements the built-in shell commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/cache"
	"github.com/caffix/pipesh/lazy"
	"github.com/caffix/pipesh/tracker"
	"github.com/spf13/pflag"
)

// DefaultBatchSize is the number of issues fetched per round trip when
// Options does not set one.
const DefaultBatchSize = 50

// Options holds the collaborators and settings shared by the built-in
// commands.
type Options struct {
	// BatchSize is the number of issues requested per tracker round trip.
	BatchSize int

	// User is recorded as the author of comments and changes.
	User string

	// Users memoizes user lookups. When nil, every lookup goes to the
	// tracker.
	Users *cache.Cache[*tracker.User]
}

// NewUserCache returns a cache that looks users up through c.
func NewUserCache(c tracker.Client, opts ...cache.Option) (*cache.Cache[*tracker.User], error) {
	return cache.New(func(ctx context.Context, name string) (*tracker.User, error) {
		return c.User(ctx, name)
	}, opts...)
}

// NewRegistry returns a registry holding every built-in command.
func NewRegistry(opts Options) (*pipesh.Registry, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	var reg *pipesh.Registry
	factories := []pipesh.Factory{
		pipesh.FactoryFunc("echo", newEcho),
		pipesh.FactoryFunc("read", func(args []string) (pipesh.Command, error) {
			return newRead(args, opts)
		}),
		pipesh.FactoryFunc("search", func(args []string) (pipesh.Command, error) {
			return newSearch(args, opts)
		}),
		pipesh.FactoryFunc("print", newPrint),
		pipesh.FactoryFunc("keys", newKeys),
		pipesh.FactoryFunc("grep", newGrep),
		pipesh.FactoryFunc("head", newHead),
		pipesh.FactoryFunc("uniq", newUniq),
		pipesh.FactoryFunc("count", newCount),
		pipesh.FactoryFunc("set", func(args []string) (pipesh.Command, error) {
			return newSet(args, opts)
		}),
		pipesh.FactoryFunc("comment", func(args []string) (pipesh.Command, error) {
			return newComment(args, opts)
		}),
		pipesh.FactoryFunc("users", func(args []string) (pipesh.Command, error) {
			return newUsers(args, opts)
		}),
		pipesh.FactoryFunc("refresh", func(args []string) (pipesh.Command, error) {
			return newRefresh(args, opts)
		}),
		pipesh.FactoryFunc("help", func(args []string) (pipesh.Command, error) {
			if len(args) != 0 {
				return nil, errNoArgs
			}
			return &help{names: reg.Names}, nil
		}),
	}

	reg, err := pipesh.NewRegistry(factories...)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

var (
	errNoArgs      = errors.New("takes no arguments")
	errNoTracker   = errors.New("no tracker is configured")
	errNotAnIssue  = errors.New("item is not an issue")
	errMissingArgs = errors.New("missing arguments")
	errBadBatch    = errors.New("batch size must be positive")
	errBadLimit    = errors.New("limit must not be negative")
)

// newFlags returns a flag set that reports, rather than prints, its errors.
func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

func client(env *pipesh.Env) (tracker.Client, error) {
	if env == nil || env.Tracker == nil {
		return nil, errNoTracker
	}
	return env.Tracker, nil
}

func lookupUser(ctx context.Context, env *pipesh.Env, opts Options, name string) (*tracker.User, error) {
	if opts.Users != nil {
		return opts.Users.Get(ctx, name)
	}

	c, err := client(env)
	if err != nil {
		return nil, err
	}
	return c.User(ctx, name)
}

func asIssue(item pipesh.Item) (*tracker.Issue, error) {
	is, ok := item.(*tracker.Issue)
	if !ok {
		return nil, fmt.Errorf("%s: %w", item.Key(), errNotAnIssue)
	}
	return is, nil
}

func toItem(_ context.Context, is *tracker.Issue, _ lazy.Hints) (pipesh.Item, error) {
	return is, nil
}

// distinct returns a Supplier yielding the first occurrence of each element
// of s. Downstream stages may stop pulling at any point, so the seen set
// must not hold resources that need releasing.
func distinct(s lazy.Supplier[string]) lazy.Supplier[string] {
	seen := make(map[string]struct{})

	return lazy.SupplierFunc(func(ctx context.Context, hints lazy.Hints) (string, bool, error) {
		for {
			v, ok, err := s.Next(ctx, hints)
			if err != nil || !ok {
				return v, false, err
			}
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				return v, true, nil
			}
		}
	})
}
