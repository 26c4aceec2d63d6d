package pipesh

import (
	"strings"
	"unicode"
)

// Reference names a command and the raw arguments it should be created with.
type Reference struct {
	Name string
	Args []string
}

func (r Reference) String() string {
	return strings.Join(append([]string{r.Name}, r.Args...), " ")
}

// Statement is an ordered, non-empty chain of command references separated
// by '|' in the input line.
type Statement []Reference

var escapes = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'0':  0,
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
}

type lineParser struct {
	line  string
	runes []rune
	// offsets maps rune indexes to byte offsets in line
	offsets []int

	stmts   []Statement
	stmt    Statement
	words   []string
	word    strings.Builder
	inWord  bool
	segment int // byte offset where the current reference began
}

// Parse splits a raw input line into statements. References within a
// statement are separated by '|', and statements by ';'. Arguments are
// separated by whitespace unless enclosed in single or double quotes, inside
// which backslash escapes are decoded. A blank line yields no statements.
func Parse(line string) ([]Statement, error) {
	p := &lineParser{line: line}
	for off, r := range line {
		p.runes = append(p.runes, r)
		p.offsets = append(p.offsets, off)
	}
	p.offsets = append(p.offsets, len(line))

	if err := p.run(); err != nil {
		return nil, err
	}
	return p.stmts, nil
}

func (p *lineParser) run() error {
	var separated bool

	for i := 0; i < len(p.runes); i++ {
		switch r := p.runes[i]; {
		case r == '\'' || r == '"':
			end, err := p.quoted(i)
			if err != nil {
				return err
			}
			i = end
		case r == '|':
			p.endWord()
			if err := p.endReference(i); err != nil {
				return err
			}
			separated = true
		case r == ';':
			p.endWord()
			if err := p.endReference(i); err != nil {
				return err
			}
			p.stmts = append(p.stmts, p.stmt)
			p.stmt = nil
			separated = true
		case unicode.IsSpace(r):
			p.endWord()
		default:
			p.word.WriteRune(r)
			p.inWord = true
		}
	}

	p.endWord()
	if len(p.words) == 0 {
		if !separated {
			// blank line
			return nil
		}
		return p.errorf(len(p.runes), p.fragment(len(p.runes)), "missing command after separator")
	}
	if err := p.endReference(len(p.runes)); err != nil {
		return err
	}
	p.stmts = append(p.stmts, p.stmt)
	return nil
}

// quoted consumes the quoted section starting at rune index start and
// returns the index of the closing quote.
func (p *lineParser) quoted(start int) (int, error) {
	quote := p.runes[start]
	p.inWord = true

	for i := start + 1; i < len(p.runes); i++ {
		r := p.runes[i]

		switch {
		case r == quote:
			return i, nil
		case r == '\\' && i+1 < len(p.runes):
			i++
			if dec, ok := escapes[p.runes[i]]; ok {
				p.word.WriteRune(dec)
			} else {
				p.word.WriteRune(p.runes[i])
			}
		default:
			p.word.WriteRune(r)
		}
	}

	return 0, p.errorf(start, p.line[p.offsets[start]:], "unterminated quote")
}

func (p *lineParser) endWord() {
	if p.inWord {
		p.words = append(p.words, p.word.String())
		p.word.Reset()
		p.inWord = false
	}
}

// endReference closes the reference ending at rune index sep.
func (p *lineParser) endReference(sep int) error {
	if len(p.words) == 0 {
		return p.errorf(sep, p.fragment(sep), "empty command")
	}

	p.stmt = append(p.stmt, Reference{Name: p.words[0], Args: p.words[1:]})
	p.words = nil
	if sep < len(p.runes) {
		p.segment = p.offsets[sep+1]
	}
	return nil
}

// fragment returns the text of the current segment through rune index end.
func (p *lineParser) fragment(end int) string {
	stop := p.offsets[end]
	if end < len(p.runes) {
		stop = p.offsets[end+1]
	}

	start := p.segment
	// include the separator that opened the segment
	if start > 0 {
		start--
	}
	if frag := strings.TrimSpace(p.line[start:stop]); frag != "" {
		return frag
	}
	return p.line[start:stop]
}

func (p *lineParser) errorf(pos int, fragment, reason string) error {
	return &ParseError{
		Offset:   p.offsets[pos],
		Fragment: fragment,
		Reason:   reason,
	}
}
