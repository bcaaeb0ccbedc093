// internal/diff/patch.go
package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Patch is a context-anchored edit. Start1/Length1 cover the text the patch
// expects, Start2/Length2 the text it produces. Coordinates are runes.
type Patch struct {
	Ops     []Operation
	Start1  int
	Start2  int
	Length1 int
	Length2 int
}

// String renders the patch in unified hunk notation with escaped lines
func (p *Patch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "@@ -%s +%s @@\n", hunkCoords(p.Start1, p.Length1), hunkCoords(p.Start2, p.Length2))
	for _, op := range p.Ops {
		switch op.Op {
		case Insert:
			b.WriteByte('+')
		case Delete:
			b.WriteByte('-')
		case Equal:
			b.WriteByte(' ')
		}
		b.WriteString(escapeText(op.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

func hunkCoords(start, length int) string {
	switch length {
	case 0:
		return strconv.Itoa(start) + ",0"
	case 1:
		return strconv.Itoa(start + 1)
	}
	return strconv.Itoa(start+1) + "," + strconv.Itoa(length)
}

func (p *Patch) clone() Patch {
	c := *p
	c.Ops = append([]Operation(nil), p.Ops...)
	return c
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+),?(\d*) \+(\d+),?(\d*) @@$`)

// parsePatches reads the textual form produced by Patch.String
func parsePatches(text string) ([]Patch, error) {
	var patches []Patch
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		if lines[i] == "" {
			i++
			continue
		}
		m := hunkHeader.FindStringSubmatch(lines[i])
		if m == nil {
			return nil, deltaErrorf("invalid hunk header %q", lines[i])
		}
		var p Patch
		p.Start1, p.Length1 = parseCoords(m[1], m[2])
		p.Start2, p.Length2 = parseCoords(m[3], m[4])
		i++

		for i < len(lines) {
			line := lines[i]
			if line == "" {
				i++
				continue
			}
			if line[0] == '@' {
				break
			}
			text, err := unescapeText(line[1:])
			if err != nil {
				return nil, &DeltaFormatError{Msg: fmt.Sprintf("line %d", i+1), Err: err}
			}
			switch line[0] {
			case '-':
				p.Ops = append(p.Ops, Operation{Delete, text})
			case '+':
				p.Ops = append(p.Ops, Operation{Insert, text})
			case ' ':
				p.Ops = append(p.Ops, Operation{Equal, text})
			default:
				return nil, deltaErrorf("invalid operation %q on line %d", line[0], i+1)
			}
			i++
		}

		// The header has to agree with the body
		old, updated := runeLen(OldText(p.Ops)), runeLen(NewText(p.Ops))
		if old != p.Length1 || updated != p.Length2 {
			return nil, deltaErrorf("hunk %d covers %d/%d runes, header says %d/%d",
				len(patches)+1, old, updated, p.Length1, p.Length2)
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func parseCoords(start, length string) (int, int) {
	s, _ := strconv.Atoi(start)
	switch length {
	case "":
		return s - 1, 1
	case "0":
		return s, 0
	}
	l, _ := strconv.Atoi(length)
	return s - 1, l
}

func formatPatches(patches []Patch) string {
	var b strings.Builder
	for i := range patches {
		b.WriteString(patches[i].String())
	}
	return b.String()
}

// makePatches groups the edits of ops into patches. Edits separated by no
// more than two margins of equal text share a patch. Context is taken from
// the equal text around each group and grown until the patch is unique in
// the source, without reaching into a neighbouring group's edits.
func (e *Engine) makePatches(ops []Operation) []Patch {
	type group struct {
		first, last    int
		start1, start2 int
		end1           int
	}

	margin := e.opts.PatchMargin
	base := []rune(OldText(ops))

	var groups []group
	c1, c2, gap := 0, 0, 0
	for i, op := range ops {
		n := runeLen(op.Text)
		if op.Op == Equal {
			gap += n
		} else {
			if len(groups) == 0 || gap > 2*margin {
				groups = append(groups, group{first: i, start1: c1, start2: c2})
			}
			groups[len(groups)-1].last = i
			gap = 0
		}
		if op.Op != Insert {
			c1 += n
		}
		if op.Op != Delete {
			c2 += n
		}
		if op.Op != Equal {
			groups[len(groups)-1].end1 = c1
		}
	}

	patches := make([]Patch, 0, len(groups))
	for k, g := range groups {
		lo, hi := 0, len(base)
		if k > 0 {
			lo = groups[k-1].end1
		}
		if k+1 < len(groups) {
			hi = groups[k+1].start1
		}

		p := Patch{
			Ops:    append([]Operation(nil), ops[g.first:g.last+1]...),
			Start1: g.start1,
			Start2: g.start2,
		}
		for _, op := range p.Ops {
			n := runeLen(op.Text)
			if op.Op != Insert {
				p.Length1 += n
			}
			if op.Op != Delete {
				p.Length2 += n
			}
		}
		e.addContext(&p, base, lo, hi)
		patches = append(patches, p)
	}
	return patches
}

// addContext surrounds p with equal text from base[lo:hi]
func (e *Engine) addContext(p *Patch, base []rune, lo, hi int) {
	margin := e.opts.PatchMargin
	start, end := p.Start1, p.Start1+p.Length1

	pattern := base[start:end]
	padding := 0
	for len(pattern) < MatchMaxBits-2*margin && !isUnique(base, pattern) {
		padding += margin
		grown := base[max(lo, start-padding):min(hi, end+padding)]
		if len(grown) == len(pattern) {
			break
		}
		pattern = grown
	}
	padding += margin

	prefix := base[max(lo, start-padding):start]
	suffix := base[end:min(hi, end+padding)]

	if len(prefix) > 0 {
		p.Ops = append([]Operation{{Equal, string(prefix)}}, p.Ops...)
	}
	if len(suffix) > 0 {
		p.Ops = append(p.Ops, Operation{Equal, string(suffix)})
	}
	p.Start1 -= len(prefix)
	p.Start2 -= len(prefix)
	p.Length1 += len(prefix) + len(suffix)
	p.Length2 += len(prefix) + len(suffix)
}

func isUnique(text, pattern []rune) bool {
	first := runesIndex(text, pattern)
	return first == -1 || runesIndexFrom(text, pattern, first+1) == -1
}

// applyPatches applies patches in order, tolerating drift and small changes
// around each anchor. applied has one entry per input patch.
func (e *Engine) applyPatches(patches []Patch, text string) (string, []bool) {
	applied := make([]bool, len(patches))
	if len(patches) == 0 {
		return text, applied
	}

	work := make([]Patch, len(patches))
	origin := make([]int, len(patches))
	unanchored := make([]bool, len(patches))
	for i := range patches {
		work[i] = patches[i].clone()
		origin[i] = i
		applied[i] = true
		unanchored[i] = !anchoredAtEdges(patches[i], text)
	}

	padding := e.addPadding(work)
	runes := []rune(padding + text + padding)
	work, origin = e.splitMax(work, origin)

	// Offset between where a patch was expected and where it was found
	delta := 0
	for x := range work {
		p := &work[x]
		expected := p.Start2 + delta
		text1 := []rune(OldText(p.Ops))

		start, end := -1, -1
		switch {
		case unanchored[origin[x]]:
			// a side without context must not float into the text
		case len(text1) > MatchMaxBits:
			// Too long for the matcher: anchor both ends separately
			start = e.match(runes, text1[:MatchMaxBits], expected)
			if start != -1 {
				end = e.match(runes, text1[len(text1)-MatchMaxBits:], expected+len(text1)-MatchMaxBits)
				if end == -1 || start >= end {
					start = -1
				}
			}
		default:
			start = e.match(runes, text1, expected)
		}

		if start == -1 {
			applied[origin[x]] = false
			// Later patches were computed with this one applied
			delta -= p.Length2 - p.Length1
			continue
		}

		delta = start - expected
		var text2 []rune
		if end == -1 {
			text2 = runes[start:min(start+len(text1), len(runes))]
		} else {
			text2 = runes[start:min(end+MatchMaxBits, len(runes))]
		}

		if runesEqual(text1, text2) {
			runes = replaceRunes(runes, start, start+len(text1), []rune(NewText(p.Ops)))
			continue
		}

		// Imperfect match: map the patch's edits through a diff between the
		// expected and the found text
		ops := diffRunes(text1, text2)
		if len(text1) > MatchMaxBits && float64(levenshtein(ops))/float64(len(text1)) > e.opts.DeleteThreshold {
			applied[origin[x]] = false
			continue
		}
		ops = cleanupSemanticLossless(ops)
		index1 := 0
		for _, op := range p.Ops {
			n := runeLen(op.Text)
			if op.Op != Equal {
				index2 := xIndex(ops, index1)
				if op.Op == Insert {
					at := start + index2
					runes = replaceRunes(runes, at, at, []rune(op.Text))
				} else {
					to := xIndex(ops, index1+n)
					runes = replaceRunes(runes, start+index2, start+to, nil)
				}
			}
			if op.Op != Delete {
				index1 += n
			}
		}
	}

	runes = runes[len([]rune(padding)) : len(runes)-len([]rune(padding))]
	return string(runes), applied
}

// anchoredAtEdges reports whether each side of p without context lies on
// the same edge of text. Encode only omits context at the ends of a text,
// so a patch with neither side is a whole-text replacement.
func anchoredAtEdges(p Patch, text string) bool {
	n := len(p.Ops)
	leading := n > 0 && p.Ops[0].Op == Equal
	trailing := n > 0 && p.Ops[n-1].Op == Equal
	old := OldText(p.Ops)
	switch {
	case !leading && !trailing:
		return text == old
	case !leading:
		return strings.HasPrefix(text, old)
	case !trailing:
		return strings.HasSuffix(text, old)
	}
	return true
}

func replaceRunes(s []rune, from, to int, with []rune) []rune {
	out := make([]rune, 0, len(s)-(to-from)+len(with))
	out = append(out, s[:from]...)
	out = append(out, with...)
	return append(out, s[to:]...)
}

// addPadding extends the first and last patch with sentinel runes so edits
// at either end of the text still have context. The returned padding must be
// added to both ends of the text.
func (e *Engine) addPadding(patches []Patch) string {
	n := e.opts.PatchMargin
	pad := make([]rune, n)
	for i := range pad {
		pad[i] = rune(i + 1)
	}

	for i := range patches {
		patches[i].Start1 += n
		patches[i].Start2 += n
	}

	first := &patches[0]
	if len(first.Ops) == 0 || first.Ops[0].Op != Equal {
		first.Ops = append([]Operation{{Equal, string(pad)}}, first.Ops...)
		first.Start1 -= n
		first.Start2 -= n
		first.Length1 += n
		first.Length2 += n
	} else if have := runeLen(first.Ops[0].Text); n > have {
		extra := n - have
		first.Ops[0].Text = string(pad[have:]) + first.Ops[0].Text
		first.Start1 -= extra
		first.Start2 -= extra
		first.Length1 += extra
		first.Length2 += extra
	}

	last := &patches[len(patches)-1]
	if len(last.Ops) == 0 || last.Ops[len(last.Ops)-1].Op != Equal {
		last.Ops = append(last.Ops, Operation{Equal, string(pad)})
		last.Length1 += n
		last.Length2 += n
	} else if have := runeLen(last.Ops[len(last.Ops)-1].Text); n > have {
		extra := n - have
		last.Ops[len(last.Ops)-1].Text += string(pad[:extra])
		last.Length1 += extra
		last.Length2 += extra
	}

	return string(pad)
}

// splitMax breaks patches whose source text exceeds the matcher width into
// smaller ones carrying their own context. origin tracks the input index
// each resulting patch came from.
func (e *Engine) splitMax(patches []Patch, origin []int) ([]Patch, []int) {
	size := MatchMaxBits
	margin := e.opts.PatchMargin

	var out []Patch
	var outOrigin []int
	for idx := range patches {
		big := patches[idx]
		if big.Length1 <= size {
			out = append(out, big)
			outOrigin = append(outOrigin, origin[idx])
			continue
		}

		start1, start2 := big.Start1, big.Start2
		var precontext []rune
		ops := append([]Operation(nil), big.Ops...)
		for len(ops) > 0 {
			p := Patch{
				Start1: start1 - len(precontext),
				Start2: start2 - len(precontext),
			}
			empty := true
			if len(precontext) > 0 {
				p.Length1 = len(precontext)
				p.Length2 = len(precontext)
				p.Ops = append(p.Ops, Operation{Equal, string(precontext)})
			}

			for len(ops) > 0 && p.Length1 < size-margin {
				kind := ops[0].Op
				text := []rune(ops[0].Text)
				switch {
				case kind == Insert:
					// Insertions are harmless to the matcher
					p.Length2 += len(text)
					start2 += len(text)
					p.Ops = append(p.Ops, ops[0])
					ops = ops[1:]
					empty = false
				case kind == Delete && len(p.Ops) == 1 && p.Ops[0].Op == Equal && len(text) > 2*size:
					// A huge deletion goes out in one piece
					p.Length1 += len(text)
					start1 += len(text)
					p.Ops = append(p.Ops, ops[0])
					ops = ops[1:]
					empty = false
				default:
					text = text[:min(len(text), size-p.Length1-margin)]
					p.Length1 += len(text)
					start1 += len(text)
					if kind == Equal {
						p.Length2 += len(text)
						start2 += len(text)
					} else {
						empty = false
					}
					p.Ops = append(p.Ops, Operation{kind, string(text)})
					rest := []rune(ops[0].Text)[len(text):]
					if len(rest) == 0 {
						ops = ops[1:]
					} else {
						ops[0].Text = string(rest)
					}
				}
			}

			// Context for the next piece comes from this piece's result
			precontext = []rune(NewText(p.Ops))
			precontext = precontext[max(0, len(precontext)-margin):]

			postcontext := []rune(OldText(ops))
			if len(postcontext) > margin {
				postcontext = postcontext[:margin]
			}
			if len(postcontext) > 0 {
				p.Length1 += len(postcontext)
				p.Length2 += len(postcontext)
				if n := len(p.Ops); n > 0 && p.Ops[n-1].Op == Equal {
					p.Ops[n-1].Text += string(postcontext)
				} else {
					p.Ops = append(p.Ops, Operation{Equal, string(postcontext)})
				}
			}

			if !empty {
				out = append(out, p)
				outOrigin = append(outOrigin, origin[idx])
			}
		}
	}
	return out, outOrigin
}

// xIndex maps a location in the source text of ops to the equivalent
// location in the destination text
func xIndex(ops []Operation, loc int) int {
	chars1, chars2 := 0, 0
	last1, last2 := 0, 0
	var hit *Operation
	for i := range ops {
		n := runeLen(ops[i].Text)
		if ops[i].Op != Insert {
			chars1 += n
		}
		if ops[i].Op != Delete {
			chars2 += n
		}
		if chars1 > loc {
			hit = &ops[i]
			break
		}
		last1, last2 = chars1, chars2
	}
	if hit != nil && hit.Op == Delete {
		// The location was deleted
		return last2
	}
	return last2 + (loc - last1)
}

// levenshtein counts inserted, deleted and substituted runes
func levenshtein(ops []Operation) int {
	total, inserted, deleted := 0, 0, 0
	for _, op := range ops {
		n := runeLen(op.Text)
		switch op.Op {
		case Insert:
			inserted += n
		case Delete:
			deleted += n
		case Equal:
			total += max(inserted, deleted)
			inserted, deleted = 0, 0
		}
	}
	return total + max(inserted, deleted)
}
