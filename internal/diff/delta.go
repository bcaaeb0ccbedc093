// internal/diff/delta.go
package diff

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Punctuation that survives percent-encoding untouched, keeping deltas of
// prose readable
var unescaper = strings.NewReplacer(
	"%21", "!", "%7E", "~", "%27", "'",
	"%28", "(", "%29", ")", "%3B", ";",
	"%2F", "/", "%3F", "?", "%3A", ":",
	"%40", "@", "%26", "&", "%3D", "=",
	"%2B", "+", "%24", "$", "%2C", ",",
	"%23", "#", "%2A", "*",
)

func escapeText(s string) string {
	return unescaper.Replace(strings.ReplaceAll(url.QueryEscape(s), "+", " "))
}

func unescapeText(s string) (string, error) {
	// A literal plus is a plus, not a space
	text, err := url.QueryUnescape(strings.ReplaceAll(s, "+", "%2B"))
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(text) {
		return "", errors.New("escaped text is not valid UTF-8")
	}
	return text, nil
}

// ApplyResult is the outcome of applying a delta. Applied has one entry per
// patch in the delta.
type ApplyResult struct {
	Text    string
	Applied []bool
}

// Failed returns the indices of patches that could not be applied
func (r *ApplyResult) Failed() []int {
	var failed []int
	for i, ok := range r.Applied {
		if !ok {
			failed = append(failed, i)
		}
	}
	return failed
}

// Encode serializes ops as patches anchored with context from the old text.
// Unchanged text away from the edits is not stored.
func (e *Engine) Encode(ops []Operation) Delta {
	return Delta(formatPatches(e.makePatches(ops)))
}

// Decode reconstructs the operation sequence of delta against base, the text
// the delta was computed from. Both the patch format written by Encode and
// the legacy count format are accepted.
func (e *Engine) Decode(base string, delta Delta) ([]Operation, error) {
	if delta == "" {
		if base == "" {
			return nil, nil
		}
		return []Operation{{Equal, base}}, nil
	}
	if !isPatchFormat(delta) {
		return decodeCounts(base, string(delta))
	}

	patches, err := parsePatches(string(delta))
	if err != nil {
		return nil, err
	}

	runes := []rune(base)
	var ops []Operation
	pos, drift := 0, 0
	for i, p := range patches {
		start := p.Start2 - drift
		old := []rune(OldText(p.Ops))
		if start < 0 || start+len(old) > len(runes) {
			return nil, deltaErrorf("patch %d lies outside the base text", i)
		}
		if !runesEqual(runes[start:start+len(old)], old) {
			return nil, deltaErrorf("patch %d does not match the base text", i)
		}

		patchOps := p.Ops
		if start < pos {
			// Context shared with the previous patch
			skip := pos - start
			if len(patchOps) == 0 || patchOps[0].Op != Equal || runeLen(patchOps[0].Text) < skip {
				return nil, deltaErrorf("patch %d overlaps an edit of patch %d", i, i-1)
			}
			patchOps = append([]Operation{{Equal, string([]rune(patchOps[0].Text)[skip:])}}, patchOps[1:]...)
		} else if start > pos {
			ops = append(ops, Operation{Equal, string(runes[pos:start])})
		}
		ops = append(ops, patchOps...)

		pos = start + len(old)
		drift += p.Length2 - p.Length1
	}
	if pos < len(runes) {
		ops = append(ops, Operation{Equal, string(runes[pos:])})
	}
	return compact(ops), nil
}

// ApplyDelta applies delta to text, which may have drifted from the text the
// delta was computed against. When some patches cannot be placed the
// best-effort result is returned along with a *PatchApplicationError.
func (e *Engine) ApplyDelta(text string, delta Delta) (*ApplyResult, error) {
	var patches []Patch
	switch {
	case delta == "":
	case isPatchFormat(delta):
		var err error
		if patches, err = parsePatches(string(delta)); err != nil {
			return nil, err
		}
	default:
		// Count deltas carry no context and only fit their exact base
		ops, err := decodeCounts(text, string(delta))
		if err != nil {
			return nil, err
		}
		patches = e.makePatches(ops)
	}

	out, applied := e.applyPatches(patches, text)
	res := &ApplyResult{Text: out, Applied: applied}
	if failed := res.Failed(); len(failed) > 0 {
		return res, &PatchApplicationError{Failed: failed, Total: len(applied)}
	}
	return res, nil
}

func isPatchFormat(delta Delta) bool {
	return strings.HasPrefix(string(delta), "@@ ")
}

// EncodeLegacy writes the count format: tab separated "=n" and "-n" rune
// counts and "+text" insertions.
func EncodeLegacy(ops []Operation) Delta {
	tokens := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case Insert:
			tokens = append(tokens, "+"+escapeText(op.Text))
		case Delete:
			tokens = append(tokens, "-"+strconv.Itoa(runeLen(op.Text)))
		case Equal:
			tokens = append(tokens, "="+strconv.Itoa(runeLen(op.Text)))
		}
	}
	return Delta(strings.Join(tokens, "\t"))
}

func decodeCounts(base, delta string) ([]Operation, error) {
	runes := []rune(base)
	pos := 0
	var ops []Operation
	for _, token := range strings.Split(delta, "\t") {
		if token == "" {
			continue
		}
		param := token[1:]
		switch token[0] {
		case '+':
			text, err := unescapeText(param)
			if err != nil {
				return nil, &DeltaFormatError{Msg: "insertion " + strconv.Quote(token), Err: err}
			}
			ops = append(ops, Operation{Insert, text})
		case '-', '=':
			n, err := strconv.Atoi(param)
			if err != nil {
				return nil, &DeltaFormatError{Msg: "count " + strconv.Quote(token), Err: err}
			}
			if n < 0 {
				return nil, deltaErrorf("negative count %q", token)
			}
			if pos+n > len(runes) {
				return nil, deltaErrorf("delta covers more than the %d runes of the base text", len(runes))
			}
			op := Equal
			if token[0] == '-' {
				op = Delete
			}
			ops = append(ops, Operation{op, string(runes[pos : pos+n])})
			pos += n
		default:
			return nil, deltaErrorf("invalid operation %q", token[:1])
		}
	}
	if pos != len(runes) {
		return nil, deltaErrorf("delta covers %d runes, base text has %d", pos, len(runes))
	}
	return ops, nil
}
