// Package shell implements the read, parse and execute loop of pipesh.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/caffix/pipesh"
	"github.com/google/uuid"
	"github.com/peterh/liner"
	"go.uber.org/zap"
)

// DefaultPrompt is shown before each line read from a terminal.
const DefaultPrompt = "pipesh> "

// Shell reads lines, parses them into statements and executes each
// statement as a pipeline.
type Shell struct {
	reg     *pipesh.Registry
	env     pipesh.Env
	logger  *zap.Logger
	prompt  string
	history string
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger used for statement and stage diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithPrompt sets the terminal prompt.
func WithPrompt(prompt string) Option {
	return func(s *Shell) { s.prompt = prompt }
}

// WithHistory sets the file terminal history is loaded from and saved to.
func WithHistory(path string) Option {
	return func(s *Shell) { s.history = path }
}

// New returns a Shell creating commands from reg and executing them with env.
func New(reg *pipesh.Registry, env *pipesh.Env, opts ...Option) *Shell {
	s := &Shell{
		reg:    reg,
		logger: zap.NewNop(),
		prompt: DefaultPrompt,
	}
	if env != nil {
		s.env = *env
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.env.Stdout == nil {
		s.env.Stdout = os.Stdout
	}
	if s.env.Stderr == nil {
		s.env.Stderr = os.Stderr
	}
	return s
}

// Exec parses line and executes its statements in order. The first failure
// stops the line and is returned.
func (s *Shell) Exec(ctx context.Context, line string) error {
	stmts, err := pipesh.Parse(line)
	if err != nil {
		return err
	}

	for i, stmt := range stmts {
		if err := s.execStatement(ctx, i+1, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) execStatement(ctx context.Context, n int, stmt pipesh.Statement) error {
	logger := s.logger.With(zap.String("run", uuid.NewString()), zap.Int("statement", n))

	p, err := pipesh.Build(s.reg, stmt)
	if err != nil {
		return err
	}

	env := s.env
	env.Logger = logger

	start := time.Now()
	logger.Debug("executing statement", zap.Int("stages", p.Len()))
	if _, err := p.Execute(ctx, &env); err != nil {
		return err
	}
	logger.Debug("statement completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Run executes the lines read from r until EOF or a line reading exit. Errors
// are reported and the loop moves on to the next line.
func (s *Shell) Run(ctx context.Context, r io.Reader) error {
	return s.loop(ctx, &scanSource{scanner: bufio.NewScanner(r)})
}

// RunTerminal runs the loop on an interactive terminal, with line editing and
// history. An interrupt cancels the line being executed.
func (s *Shell) RunTerminal(ctx context.Context) error {
	state := liner.NewLiner()
	defer state.Close()

	state.SetCtrlCAborts(true)
	state.SetCompleter(s.complete)
	s.loadHistory(state)
	defer s.saveHistory(state)

	return s.loop(ctx, &terminalSource{state: state, prompt: s.prompt})
}

// Interactive reports whether standard input is a terminal.
func Interactive() bool {
	mode, err := liner.TerminalMode()
	return err == nil && mode != nil
}

func (s *Shell) loop(ctx context.Context, src lineSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := src.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit":
			return nil
		}

		lctx, cancel := src.lineContext(ctx)
		err = s.Exec(lctx, line)
		cancel()
		if err != nil {
			s.report(line, err)
		}
	}
}

func (s *Shell) report(line string, err error) {
	s.logger.Debug("line failed", zap.String("line", line), zap.Error(err))
	fmt.Fprintf(s.env.Stderr, "Error: %v\n", err)
}

// complete offers command names for the word being typed.
func (s *Shell) complete(line string) []string {
	start := strings.LastIndexAny(line, "|;") + 1
	word := strings.TrimLeft(line[start:], " \t")
	if strings.ContainsAny(word, " \t") {
		return nil
	}
	prefix := line[:len(line)-len(word)]

	var out []string
	for _, name := range s.reg.Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, prefix+name)
		}
	}
	return out
}

func (s *Shell) loadHistory(state *liner.State) {
	if s.history == "" {
		return
	}

	f, err := os.Open(s.history)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := state.ReadHistory(f); err != nil {
		s.logger.Debug("failed to read the history", zap.String("file", s.history), zap.Error(err))
	}
}

func (s *Shell) saveHistory(state *liner.State) {
	if s.history == "" {
		return
	}

	f, err := os.Create(s.history)
	if err != nil {
		s.logger.Debug("failed to save the history", zap.String("file", s.history), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := state.WriteHistory(f); err != nil {
		s.logger.Debug("failed to save the history", zap.String("file", s.history), zap.Error(err))
	}
}

type lineSource interface {
	// readLine returns io.EOF once input ends.
	readLine() (string, error)

	// lineContext returns the context a single line is executed under.
	lineContext(ctx context.Context) (context.Context, context.CancelFunc)
}

type scanSource struct {
	scanner *bufio.Scanner
}

func (src *scanSource) readLine() (string, error) {
	if src.scanner.Scan() {
		return src.scanner.Text(), nil
	}
	if err := src.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (src *scanSource) lineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

type terminalSource struct {
	state  *liner.State
	prompt string
}

func (src *terminalSource) readLine() (string, error) {
	line, err := src.state.Prompt(src.prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		// Ctrl-C discards the line being typed
		return "", nil
	} else if err != nil {
		return "", err
	}

	if strings.TrimSpace(line) != "" {
		src.state.AppendHistory(line)
	}
	return line, nil
}

func (src *terminalSource) lineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}
