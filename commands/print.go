package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/lazy"
	"github.com/caffix/pipesh/tracker"
	"gopkg.in/yaml.v3"
)

// printer writes its input to the console. It is where lazy sequences are
// finally pulled, with the hints for the sections it was asked to show.
type printer struct {
	format string
	hints  lazy.Hints
}

func newPrint(args []string) (pipesh.Command, error) {
	var p printer

	fs := newFlags("print")
	fs.StringVarP(&p.format, "format", "f", "text", "output format: text, json or yaml")
	sections := make(map[lazy.Hint]*bool)
	for _, h := range []lazy.Hint{lazy.Comments, lazy.Watchers, lazy.Links, lazy.History} {
		sections[h] = fs.Bool(h.String(), false, "show the issue "+h.String())
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("unexpected arguments %v", fs.Args())
	}

	switch p.format {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown format %q", p.format)
	}
	for h, on := range sections {
		if *on {
			p.hints = p.hints.Combine(lazy.NewHints(h))
		}
	}
	return &p, nil
}

// Input implements pipesh.Command. Plain text output of unhinted input
// accepts anything that presents itself as texts.
func (p *printer) Input() pipesh.Kind {
	if p.format == "text" && p.hints.Empty() {
		return pipesh.Texts
	}
	return pipesh.Objects
}

// Execute implements pipesh.Command.
func (p *printer) Execute(ctx context.Context, env *pipesh.Env, input pipesh.Data) (pipesh.Data, error) {
	var out io.Writer = os.Stdout
	if env != nil && env.Stdout != nil {
		out = env.Stdout
	}

	if texts, ok := input.(pipesh.TextsData); ok {
		return pipesh.None, lazy.Drain(ctx, texts.Items, lazy.Hints{}, func(line string) error {
			_, err := fmt.Fprintln(out, line)
			return err
		})
	}

	var write func(pipesh.Item) error
	switch p.format {
	case "json":
		enc := json.NewEncoder(out)
		write = func(item pipesh.Item) error { return enc.Encode(item) }
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		write = func(item pipesh.Item) error { return enc.Encode(item) }
	default:
		write = func(item pipesh.Item) error {
			for _, line := range item.Lines(p.hints) {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		}
	}

	items := input.(pipesh.ObjectsData).Items
	return pipesh.None, lazy.Drain(ctx, items, p.hints, func(item pipesh.Item) error {
		if err := p.complete(ctx, env, item); err != nil {
			return err
		}
		return write(item)
	})
}

// complete fetches the requested sections an upstream source did not
// prefetch.
func (p *printer) complete(ctx context.Context, env *pipesh.Env, item pipesh.Item) error {
	is, ok := item.(*tracker.Issue)
	if !ok || p.hints.Empty() {
		return nil
	}

	for _, h := range p.hints.Slice() {
		if !is.Loaded().Has(h) {
			c, err := client(env)
			if err != nil {
				return err
			}
			return c.Load(ctx, []*tracker.Issue{is}, p.hints)
		}
	}
	return nil
}
