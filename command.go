package pipesh

import (
	"context"
	"io"

	"github.com/caffix/pipesh/tracker"
	"go.uber.org/zap"
)

// Env is the bag of ambient collaborators handed to every command. The
// pipeline passes it through without looking inside.
type Env struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Tracker tracker.Client
	Logger  *zap.Logger
}

// Command is an operation bound to its arguments, ready to be executed as a
// pipeline stage.
type Command interface {
	// Input returns the kind the command requires its input converted to.
	Input() Kind

	// Execute runs the command against input, which has already been
	// converted to the kind returned by Input.
	Execute(ctx context.Context, env *Env, input Data) (Data, error)
}

// CommandFunc adapts a plain function and its input kind into a Command.
func CommandFunc(input Kind, fn func(context.Context, *Env, Data) (Data, error)) Command {
	return &funcCommand{input: input, fn: fn}
}

type funcCommand struct {
	input Kind
	fn    func(context.Context, *Env, Data) (Data, error)
}

// Input implements Command.
func (c *funcCommand) Input() Kind {
	return c.input
}

// Execute implements Command.
func (c *funcCommand) Execute(ctx context.Context, env *Env, input Data) (Data, error) {
	return c.fn(ctx, env, input)
}

// Factory creates configured Commands from raw argument strings.
type Factory interface {
	// Name returns the command name the factory is registered under.
	Name() string

	// Create returns a Command bound to args. Arguments the command cannot
	// accept are reported as an *ArgumentError.
	Create(args []string) (Command, error)
}

// FactoryFunc is an adapter to allow the use of plain functions as Factory
// instances.
func FactoryFunc(name string, create func(args []string) (Command, error)) Factory {
	return &funcFactory{name: name, create: create}
}

type funcFactory struct {
	name   string
	create func([]string) (Command, error)
}

// Name implements Factory.
func (f *funcFactory) Name() string {
	return f.name
}

// Create implements Factory.
func (f *funcFactory) Create(args []string) (Command, error) {
	return f.create(args)
}
