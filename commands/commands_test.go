package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/caffix/pipesh"
	"github.com/caffix/pipesh/commands"
	"github.com/caffix/pipesh/internal/trackertest"
	"github.com/caffix/pipesh/lazy"
	"github.com/caffix/pipesh/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	store  *tracker.Store
	reg    *pipesh.Registry
	opts   commands.Options
	stdout bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{store: trackertest.New(t)}
	users, err := commands.NewUserCache(h.store)
	require.NoError(t, err)

	h.opts = commands.Options{BatchSize: 2, User: "tester", Users: users}
	h.reg, err = commands.NewRegistry(h.opts)
	require.NoError(t, err)
	return h
}

// run executes every statement of line and returns what was printed.
func (h *harness) run(t *testing.T, line string) (string, error) {
	t.Helper()

	stmts, err := pipesh.Parse(line)
	require.NoError(t, err)

	h.stdout.Reset()
	env := &pipesh.Env{Stdout: &h.stdout, Tracker: h.store}
	for _, stmt := range stmts {
		p, err := pipesh.Build(h.reg, stmt)
		if err != nil {
			return h.stdout.String(), err
		}
		if _, err := p.Execute(context.Background(), env); err != nil {
			return h.stdout.String(), err
		}
	}
	return h.stdout.String(), nil
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestEchoPrint(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "echo a 'b c' | print")
	require.NoError(t, err)
	assert.Equal(t, lines("a", "b c"), out)
}

func TestReadKeys(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read WEB-1 API-1 WEB-1 | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1", "API-1"), out)

	out, err = h.run(t, "echo WEB-2 WEB-2 WEB-3 | read | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-2", "WEB-3"), out)
}

func TestReadKeepsRequestOrder(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read API-2 WEB-3 WEB-1 API-1 WEB-2 --batch 5 | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("API-2", "WEB-3", "WEB-1", "API-1", "WEB-2"), out)

	out, err = h.run(t, "echo WEB-1 WEB-2 WEB-3 API-1 API-2 | read --batch 50 | print")
	require.NoError(t, err)
	assert.Equal(t, lines(
		"WEB-1 [Open] Login page rejects valid passwords (alice)",
		"WEB-2 [Done] Add dark mode (bob)",
		"WEB-3 [Open] Release 2.0",
		"API-1 [In Progress] Rate limit login endpoint (alice)",
		"API-2 [Open] Document pagination",
	), out)
}

func TestEarlyStopReleasesDedupe(t *testing.T) {
	h := newHarness(t)
	ignore := goleak.IgnoreCurrent()

	for _, line := range []string{
		"echo a b c | uniq | head 1 | print",
		"echo a b | uniq",
		"echo WEB-1 WEB-2 WEB-3 | read | head 1 | print",
	} {
		_, err := h.run(t, line)
		require.NoError(t, err, line)
	}
	goleak.VerifyNone(t, ignore)
}

func TestPrintConvertsIssues(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read WEB-1 WEB-3 | print")
	require.NoError(t, err)
	assert.Equal(t, lines(
		"WEB-1 [Open] Login page rejects valid passwords (alice)",
		"WEB-3 [Open] Release 2.0",
	), out)
}

func TestPrintHintsPrefetch(t *testing.T) {
	h := newHarness(t)
	before := h.store.Queries()

	out, err := h.run(t, "read WEB-1 WEB-2 | print --watchers --comments")
	require.NoError(t, err)
	assert.Equal(t, lines(
		"WEB-1 [Open] Login page rejects valid passwords (alice)",
		"  watchers: bob, carol",
		"  bob: Reproduced on staging",
		"  alice: Looking into it",
		"WEB-2 [Done] Add dark mode (bob)",
	), out)
	// one batch: the issues plus one query per requested section
	assert.Equal(t, int64(3), h.store.Queries()-before)
}

func TestSearchPages(t *testing.T) {
	h := newHarness(t)
	before := h.store.Queries()

	out, err := h.run(t, "search | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1", "WEB-2", "WEB-3", "API-1", "API-2"), out)
	// pages of two, the short third page is the last
	assert.Equal(t, int64(3), h.store.Queries()-before)

	out, err = h.run(t, "search --limit 3 --batch 10 | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1", "WEB-2", "WEB-3"), out)
}

func TestSearchFilters(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "search --project WEB --status open | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1", "WEB-3"), out)

	out, err = h.run(t, "search login | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1", "API-1"), out)

	out, err = h.run(t, "search --assignee alice --status 'in progress' | keys | print")
	require.NoError(t, err)
	assert.Equal(t, lines("API-1"), out)
}

func TestSourcesAreLazy(t *testing.T) {
	h := newHarness(t)
	before := h.store.Queries()

	out, err := h.run(t, "read WEB-1 WEB-2 WEB-3 --batch 1 | head 1 | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-1 [Open] Login page rejects valid passwords (alice)"), out)
	assert.Equal(t, int64(1), h.store.Queries()-before)
}

func TestTextFilters(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		line string
		want string
	}{
		{line: "search | keys | grep -v WEB | print", want: lines("API-1", "API-2")},
		{line: "search | keys | grep -i 'web-[12]' | print", want: lines("WEB-1", "WEB-2")},
		{line: "search | keys | head 2 | count | print", want: lines("2")},
		{line: "echo b a b c a | uniq | print", want: lines("b", "a", "c")},
		{line: "echo a b c | head 0 | count | print", want: lines("0")},
		{line: "search | count | print", want: lines("5")},
	}

	for _, tt := range tests {
		out, err := h.run(t, tt.line)
		if assert.NoError(t, err, tt.line) {
			assert.Equal(t, tt.want, out, tt.line)
		}
	}
}

func TestSetAssignee(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read WEB-3 | set assignee bob | print")
	require.NoError(t, err)
	assert.Equal(t, lines("WEB-3 [Open] Release 2.0 (bob)"), out)

	issues, err := h.store.Issues(context.Background(), []string{"WEB-3"}, lazy.NewHints(lazy.History))
	require.NoError(t, err)
	assert.Equal(t, "bob", issues[0].Assignee)
	require.Len(t, issues[0].History, 1)
	assert.Equal(t, "tester", issues[0].History[0].Author)
	assert.Equal(t, "", issues[0].History[0].From)
}

func TestSetRejectsUsers(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "read WEB-3 | set assignee carol | print")
	var eerr *pipesh.ExecutionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, 2, eerr.Stage)
	assert.Contains(t, err.Error(), "inactive")

	_, err = h.run(t, "read WEB-3 | set assignee nobody | print")
	require.ErrorIs(t, err, tracker.ErrNotFound)

	_, err = h.run(t, "read WEB-3 | set reporter bob")
	var aerr *pipesh.ArgumentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "set", aerr.Command)
}

func TestComment(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read API-2 | comment Looks good | print --comments")
	require.NoError(t, err)
	assert.Equal(t, lines("API-2 [Open] Document pagination", "  tester: Looks good"), out)

	issues, err := h.store.Issues(context.Background(), []string{"API-2"}, lazy.NewHints(lazy.Comments))
	require.NoError(t, err)
	require.Len(t, issues[0].Comments, 1)
	assert.Equal(t, "Looks good", issues[0].Comments[0].Body)
}

func TestUsersSeedCache(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "users | print")
	require.NoError(t, err)
	assert.Equal(t, lines("alice (Alice Archer)", "bob (Bob Baker)", "carol (Carol Cole) [inactive]"), out)
	assert.Equal(t, 3, h.opts.Users.Len())

	_, err = h.run(t, "refresh")
	require.NoError(t, err)
	assert.Equal(t, 0, h.opts.Users.Len())
}

func TestHelp(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "help | print")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(h.reg.Names(), "\n")+"\n", out)
	assert.Contains(t, out, "search\n")
}

func TestPrintFormats(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read WEB-3 | print -f json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "WEB-3", decoded["key"])

	out, err = h.run(t, "read WEB-1 | print --format yaml --links")
	require.NoError(t, err)
	var issue tracker.Issue
	require.NoError(t, yaml.Unmarshal([]byte(out), &issue))
	assert.Equal(t, "WEB-1", issue.ID)
	assert.Equal(t, []tracker.Link{{Kind: "blocks", Target: "WEB-3"}}, issue.Links)
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "read WEB-1 | frobnicate")
	var uerr *pipesh.UnknownCommandError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "frobnicate", uerr.Name)

	_, err = h.run(t, "read WEB-1 NOPE-1 | print")
	require.ErrorIs(t, err, tracker.ErrNotFound)

	_, err = h.run(t, "echo a | keys")
	var cerr *pipesh.ConversionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 2, cerr.Stage)

	for _, line := range []string{"head -1", "head x", "grep", "print -f xml", "read --batch 0 WEB-1", "search --limit -1", "count x"} {
		_, err := h.run(t, line)
		var aerr *pipesh.ArgumentError
		assert.ErrorAs(t, err, &aerr, line)
	}
}

func TestStatementsRunInOrder(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "read WEB-2 | set status Open; search --status open | count | print")
	require.NoError(t, err)
	// set is lazy: the first statement pulls nothing, so nothing changes
	assert.Equal(t, lines("3"), out)

	out, err = h.run(t, "read WEB-2 | set status Open | count; search --status open | count | print")
	require.NoError(t, err)
	assert.Equal(t, lines("4"), out)
}
