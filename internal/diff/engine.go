// internal/diff/engine.go
package diff

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Op identifies the kind of a diff operation
type Op int8

const (
	Equal Op = iota
	Insert
	Delete
)

func (o Op) String() string {
	switch o {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int8(o))
}

// Operation is a single edit over a text fragment
type Operation struct {
	Op   Op
	Text string
}

func (o Operation) String() string {
	return fmt.Sprintf("%s(%q)", o.Op, o.Text)
}

// Delta is the serialized form of an operation sequence
type Delta string

// Granularity controls the smallest unit an edit may cover
type Granularity string

const (
	Char Granularity = "char"
	Word Granularity = "word"
	Line Granularity = "line"
)

// ParseGranularity maps a config or flag value to a Granularity
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(s)); g {
	case "", Char:
		return Char, nil
	case Word, Line:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// MatchMaxBits is the pattern width of the bitap matcher
const MatchMaxBits = 32

// MaxPatchMargin bounds PatchMargin. Context on both sides of a split
// patch must leave room for at least one edit within MatchMaxBits.
const MaxPatchMargin = MatchMaxBits / 4

// Options tunes diffing and fuzzy patch application. Zero values mean
// unset and take the DefaultOptions value.
type Options struct {
	Granularity Granularity
	// Highest bitap score still accepted as a match (0 exact, 1 anything)
	MatchThreshold float64
	// Runes of drift from the expected location that cost a full score point
	MatchDistance int
	// Context runes kept around each patch, at most MaxPatchMargin
	PatchMargin int
	// Highest Levenshtein ratio accepted when a long patch only matched fuzzily
	DeleteThreshold float64
}

// DefaultOptions returns the tolerances used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Granularity:     Char,
		MatchThreshold:  0.5,
		MatchDistance:   1000,
		PatchMargin:     4,
		DeleteThreshold: 0.5,
	}
}

// Differ is the contract the rest of the system depends on
type Differ interface {
	Compute(oldText, newText string) []Operation
	Encode(ops []Operation) Delta
	Decode(base string, delta Delta) ([]Operation, error)
	ApplyDelta(text string, delta Delta) (*ApplyResult, error)
	RenderHTML(oldText, newText string) string
}

// Engine provides diffing capabilities. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	opts Options
}

var _ Differ = (*Engine)(nil)

// NewEngine creates a diff engine, filling unset options with defaults.
// PatchMargin is clamped to MaxPatchMargin.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Granularity == "" {
		opts.Granularity = def.Granularity
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = def.MatchThreshold
	}
	if opts.MatchDistance <= 0 {
		opts.MatchDistance = def.MatchDistance
	}
	if opts.PatchMargin <= 0 {
		opts.PatchMargin = def.PatchMargin
	}
	if opts.PatchMargin > MaxPatchMargin {
		opts.PatchMargin = MaxPatchMargin
	}
	if opts.DeleteThreshold <= 0 {
		opts.DeleteThreshold = def.DeleteThreshold
	}
	return &Engine{opts: opts}
}

// Options returns the engine's effective options
func (e *Engine) Options() Options {
	return e.opts
}

// Compute returns the operations turning oldText into newText, cleaned up
// so edits align with human-meaningful boundaries.
func (e *Engine) Compute(oldText, newText string) []Operation {
	switch e.opts.Granularity {
	case Word:
		if ops, ok := diffTokens(oldText, newText, splitWords); ok {
			return ops
		}
	case Line:
		if ops, ok := diffTokens(oldText, newText, splitLines); ok {
			return ops
		}
	}
	return cleanupSemantic(diffRunes([]rune(oldText), []rune(newText)))
}

// OldText rebuilds the source text of an operation sequence
func OldText(ops []Operation) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Op != Insert {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

// NewText rebuilds the destination text of an operation sequence
func NewText(ops []Operation) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Op != Delete {
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

// Stats summarizes an operation sequence in runes
type Stats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Changes   int `json:"changes"`
}

// ComputeStats counts inserted and deleted runes
func ComputeStats(ops []Operation) Stats {
	var s Stats
	for _, op := range ops {
		switch op.Op {
		case Insert:
			s.Additions += utf8.RuneCountInString(op.Text)
		case Delete:
			s.Deletions += utf8.RuneCountInString(op.Text)
		}
	}
	s.Changes = s.Additions + s.Deletions
	return s
}
