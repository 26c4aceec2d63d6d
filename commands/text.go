package commands

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/lazy"
)

type issueKeys struct{}

func newKeys(args []string) (pipesh.Command, error) {
	if len(args) != 0 {
		return nil, errNoArgs
	}
	return issueKeys{}, nil
}

// Input implements pipesh.Command.
func (issueKeys) Input() pipesh.Kind {
	return pipesh.Objects
}

// Execute implements pipesh.Command.
func (issueKeys) Execute(_ context.Context, _ *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	return pipesh.NewTexts(lazy.Map(input.(pipesh.ObjectsData).Items,
		func(_ context.Context, item pipesh.Item, _ lazy.Hints) (string, error) {
			return item.Key(), nil
		})), nil
}

// grep keeps the lines matching a regular expression.
type grep struct {
	re     *regexp.Regexp
	invert bool
}

func newGrep(args []string) (pipesh.Command, error) {
	fs := newFlags("grep")
	invert := fs.BoolP("invert-match", "v", false, "keep the lines that do not match")
	fold := fs.BoolP("ignore-case", "i", false, "match case-insensitively")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected one pattern, got %d arguments", fs.NArg())
	}

	expr := fs.Arg(0)
	if *fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &grep{re: re, invert: *invert}, nil
}

// Input implements pipesh.Command.
func (g *grep) Input() pipesh.Kind {
	return pipesh.Texts
}

// Execute implements pipesh.Command.
func (g *grep) Execute(_ context.Context, _ *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	return pipesh.NewTexts(lazy.Filter(input.(pipesh.TextsData).Items, func(line string) bool {
		return g.re.MatchString(line) != g.invert
	})), nil
}

type head struct {
	n int
}

func newHead(args []string) (pipesh.Command, error) {
	switch len(args) {
	case 0:
		return &head{n: 10}, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid line count %q", args[0])
		}
		return &head{n: n}, nil
	}
	return nil, fmt.Errorf("expected at most one argument, got %d", len(args))
}

// Input implements pipesh.Command.
func (h *head) Input() pipesh.Kind {
	return pipesh.Texts
}

// Execute implements pipesh.Command.
func (h *head) Execute(_ context.Context, _ *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	return pipesh.NewTexts(lazy.Limit(input.(pipesh.TextsData).Items, h.n)), nil
}

type uniq struct{}

func newUniq(args []string) (pipesh.Command, error) {
	if len(args) != 0 {
		return nil, errNoArgs
	}
	return uniq{}, nil
}

// Input implements pipesh.Command.
func (uniq) Input() pipesh.Kind {
	return pipesh.Texts
}

// Execute implements pipesh.Command.
func (uniq) Execute(_ context.Context, _ *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	return pipesh.NewTexts(distinct(input.(pipesh.TextsData).Items)), nil
}

type count struct{}

func newCount(args []string) (pipesh.Command, error) {
	if len(args) != 0 {
		return nil, errNoArgs
	}
	return count{}, nil
}

// Input implements pipesh.Command.
func (count) Input() pipesh.Kind {
	return pipesh.Texts
}

// Execute implements pipesh.Command. The whole input is pulled.
func (count) Execute(ctx context.Context, _ *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	var n int

	err := lazy.Drain(ctx, input.(pipesh.TextsData).Items, lazy.Hints{}, func(string) error {
		n++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pipesh.NewText(strconv.Itoa(n)), nil
}
