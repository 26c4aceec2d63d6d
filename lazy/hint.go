package lazy

import (
	"fmt"
	"strings"
)

// Hint is a capability tag a consumer attaches to a pull, announcing
// auxiliary data it will read from elements not yet produced.
type Hint uint8

// The closed hint vocabulary.
const (
	Comments Hint = 1 << iota
	Watchers
	Links
	History
)

var hintNames = []struct {
	hint Hint
	name string
}{
	{Comments, "comments"},
	{Watchers, "watchers"},
	{Links, "links"},
	{History, "history"},
}

func (h Hint) String() string {
	for _, n := range hintNames {
		if n.hint == h {
			return n.name
		}
	}
	return fmt.Sprintf("hint(%d)", uint8(h))
}

// ParseHint returns the Hint with the provided name.
func ParseHint(name string) (Hint, error) {
	for _, n := range hintNames {
		if strings.EqualFold(n.name, name) {
			return n.hint, nil
		}
	}
	return 0, fmt.Errorf("unknown hint %q", name)
}

// Hints is an immutable set of Hint values. The zero value is the empty set.
type Hints struct {
	bits Hint
}

// NewHints returns the set containing the provided hints.
func NewHints(hints ...Hint) Hints {
	var s Hints
	for _, h := range hints {
		s.bits |= h
	}
	return s
}

// Has reports whether h is a member of the set.
func (s Hints) Has(h Hint) bool {
	return h != 0 && s.bits&h == h
}

// Combine returns the union of s and other. Neither operand is modified.
func (s Hints) Combine(other Hints) Hints {
	return Hints{bits: s.bits | other.bits}
}

// Empty reports whether the set has no members.
func (s Hints) Empty() bool {
	return s.bits == 0
}

// Slice returns the members in vocabulary order.
func (s Hints) Slice() []Hint {
	var out []Hint
	for _, n := range hintNames {
		if s.Has(n.hint) {
			out = append(out, n.hint)
		}
	}
	return out
}

func (s Hints) String() string {
	var names []string
	for _, h := range s.Slice() {
		names = append(names, h.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
