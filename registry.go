package pipesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/caffix/stringset"
	"github.com/hashicorp/go-multierror"
)

// Registry maps command names to the factories that create them. It is
// assembled once and never modified afterwards.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry holding the provided factories. Empty and
// duplicate names are rejected, and all such problems are reported together.
func NewRegistry(factories ...Factory) (*Registry, error) {
	seen := stringset.New()
	defer seen.Close()

	var err error
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for i, f := range factories {
		if f == nil {
			err = multierror.Append(err, fmt.Errorf("factory %d is nil", i))
			continue
		}

		name := f.Name()
		if name == "" {
			err = multierror.Append(err, fmt.Errorf("factory %d has an empty name", i))
			continue
		}
		if seen.Has(name) {
			err = multierror.Append(err, fmt.Errorf("command %s registered more than once", name))
			continue
		}

		seen.Insert(name)
		r.factories[name] = f
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the factory registered under name, or an
// *UnknownCommandError.
func (r *Registry) Lookup(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	return f, nil
}

// Create returns the Command described by ref.
func (r *Registry) Create(ref Reference) (Command, error) {
	f, err := r.Lookup(ref.Name)
	if err != nil {
		return nil, err
	}

	cmd, err := f.Create(ref.Args)
	if err != nil {
		var aerr *ArgumentError
		if !errors.As(err, &aerr) {
			err = &ArgumentError{Command: ref.Name, Err: err}
		}
		return nil, err
	}
	if _, ok := cmd.(Named); !ok {
		cmd = &namedCommand{Command: cmd, name: ref.Name}
	}
	return cmd, nil
}

type namedCommand struct {
	Command
	name string
}

// Name implements Named.
func (c *namedCommand) Name() string {
	return c.name
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
