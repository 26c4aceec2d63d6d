package pipesh

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// State is the lifecycle position of a Pipeline.
type State int

// The Pipeline states. Completed and Failed are terminal.
const (
	Building State = iota
	Executing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrExecuted is returned when Execute is called on a pipeline that has
// already run.
var ErrExecuted = errors.New("pipeline has already been executed")

// Pipeline is an ordered chain of Commands executed sequentially, each stage
// consuming the output of the previous one. Kind compatibility between stages
// is only established during execution, since the input a command requires
// can depend on its arguments.
type Pipeline struct {
	stages []Command
	state  State
	stage  int
}

// NewPipeline returns a new pipeline instance where data traverses each of
// the provided Command instances.
func NewPipeline(cmds ...Command) *Pipeline {
	return &Pipeline{stages: cmds}
}

// Build creates the commands referenced by stmt using reg and chains them into
// a Pipeline. Any lookup or argument error aborts the build.
func Build(reg *Registry, stmt Statement) (*Pipeline, error) {
	p := NewPipeline()

	for _, ref := range stmt {
		cmd, err := reg.Create(ref)
		if err != nil {
			return nil, err
		}
		p.Add(cmd)
	}
	return p, nil
}

// Add appends cmd to the end of the chain.
func (p *Pipeline) Add(cmd Command) {
	p.stages = append(p.stages, cmd)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// State returns the lifecycle state and, while executing or after a failure,
// the 1-based position of the current stage.
func (p *Pipeline) State() (State, int) {
	return p.state, p.stage
}

// Execute runs each stage in order, starting from None. Before a stage runs,
// the output of the previous stage is converted to the kind the stage
// requires; a failed conversion aborts the pipeline before the stage runs.
// The output of the last stage is returned as is. A pipeline without stages
// returns None.
func (p *Pipeline) Execute(ctx context.Context, env *Env) (Data, error) {
	if p.state != Building {
		return nil, ErrExecuted
	}
	p.state = Executing

	logger := zap.NewNop()
	if env != nil && env.Logger != nil {
		logger = env.Logger
	}

	current := None
	for i, cmd := range p.stages {
		p.stage = i + 1

		if err := ctx.Err(); err != nil {
			return p.fail(fmt.Errorf("pipeline stage %d: %w", p.stage, err))
		}

		converted, err := current.ConvertTo(cmd.Input())
		if err != nil {
			var cerr *ConversionError
			if errors.As(err, &cerr) {
				cerr.Stage = p.stage
			}
			return p.fail(err)
		}

		logger.Debug("executing stage",
			zap.Int("stage", p.stage),
			zap.String("command", commandName(cmd)),
			zap.Stringer("input", converted.Kind()),
		)
		out, err := cmd.Execute(ctx, env, converted)
		if err != nil {
			return p.fail(&ExecutionError{Stage: p.stage, Command: commandName(cmd), Err: err})
		}
		if out == nil {
			out = None
		}
		current = out
	}

	p.state = Completed
	return current, nil
}

func (p *Pipeline) fail(err error) (Data, error) {
	p.state = Failed
	return nil, err
}

// Named is implemented by commands that know the name they were created
// under, so that errors and logs can refer to it.
type Named interface {
	Name() string
}

func commandName(cmd Command) string {
	if n, ok := cmd.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", cmd)
}
