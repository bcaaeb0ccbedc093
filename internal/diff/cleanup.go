// internal/diff/cleanup.go
package diff

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// splice removes n operations at index at and inserts the given ones there
func splice(ops []Operation, at, n int, insert ...Operation) []Operation {
	tail := append([]Operation(nil), ops[at+n:]...)
	ops = append(ops[:at], insert...)
	return append(ops, tail...)
}

// cleanupMerge normalizes a sequence: empty operations are dropped,
// adjacent edits are merged with deletions first, common prefixes and
// suffixes of edit runs become equalities, and single edits are slid over
// neighbouring equalities when that removes one of them.
func cleanupMerge(ops []Operation) []Operation {
	clean := make([]Operation, 0, len(ops)+1)
	for _, op := range ops {
		if op.Text != "" {
			clean = append(clean, op)
		}
	}
	// Sentinel equality flushes the last run
	ops = append(clean, Operation{Equal, ""})

	pointer := 0
	countDelete, countInsert := 0, 0
	var textDelete, textInsert []rune

	for pointer < len(ops) {
		switch ops[pointer].Op {
		case Insert:
			countInsert++
			textInsert = append(textInsert, []rune(ops[pointer].Text)...)
			pointer++
		case Delete:
			countDelete++
			textDelete = append(textDelete, []rune(ops[pointer].Text)...)
			pointer++
		case Equal:
			if countDelete+countInsert > 1 {
				if countDelete != 0 && countInsert != 0 {
					// Factor out common prefix
					if n := commonPrefix(textInsert, textDelete); n != 0 {
						x := pointer - countDelete - countInsert
						if x > 0 && ops[x-1].Op == Equal {
							ops[x-1].Text += string(textInsert[:n])
						} else {
							ops = splice(ops, 0, 0, Operation{Equal, string(textInsert[:n])})
							pointer++
						}
						textInsert = textInsert[n:]
						textDelete = textDelete[n:]
					}
					// Factor out common suffix
					if n := commonSuffix(textInsert, textDelete); n != 0 {
						ops[pointer].Text = string(textInsert[len(textInsert)-n:]) + ops[pointer].Text
						textInsert = textInsert[:len(textInsert)-n]
						textDelete = textDelete[:len(textDelete)-n]
					}
				}

				start := pointer - countDelete - countInsert
				var merged []Operation
				if len(textDelete) != 0 {
					merged = append(merged, Operation{Delete, string(textDelete)})
				}
				if len(textInsert) != 0 {
					merged = append(merged, Operation{Insert, string(textInsert)})
				}
				ops = splice(ops, start, countDelete+countInsert, merged...)
				// Revisit the equality so it can join a preceding one
				pointer = start + len(merged)
			} else if pointer != 0 && ops[pointer-1].Op == Equal {
				// Merge with the previous equality
				ops[pointer-1].Text += ops[pointer].Text
				ops = splice(ops, pointer, 1)
			} else {
				pointer++
			}
			countInsert, countDelete = 0, 0
			textDelete, textInsert = nil, nil
		}
	}
	if len(ops) > 0 && ops[len(ops)-1].Text == "" {
		ops = ops[:len(ops)-1]
	}

	// Second pass: shift single edits surrounded by equalities, e.g.
	// A<ins>BA</ins>C -> <ins>AB</ins>AC
	changes := false
	for pointer = 1; pointer < len(ops)-1; pointer++ {
		prev, cur, next := ops[pointer-1], ops[pointer], ops[pointer+1]
		if prev.Op != Equal || next.Op != Equal {
			continue
		}
		switch {
		case strings.HasSuffix(cur.Text, prev.Text):
			ops[pointer].Text = prev.Text + cur.Text[:len(cur.Text)-len(prev.Text)]
			ops[pointer+1].Text = prev.Text + next.Text
			ops = splice(ops, pointer-1, 1)
			changes = true
		case strings.HasPrefix(cur.Text, next.Text):
			ops[pointer-1].Text += next.Text
			ops[pointer].Text = cur.Text[len(next.Text):] + next.Text
			ops = splice(ops, pointer+1, 1)
			changes = true
		}
	}
	if changes {
		return cleanupMerge(ops)
	}
	return ops
}

// cleanupSemantic removes equalities that are cheaper to express as part of
// the surrounding edits, aligns edits with word boundaries and extracts
// overlaps between deletions and insertions.
func cleanupSemantic(ops []Operation) []Operation {
	changes := false
	// Indices of candidate equalities
	var equalities []int
	lastEquality := ""
	hasLast := false
	// Edit lengths before and after the last equality
	ins1, del1, ins2, del2 := 0, 0, 0, 0

	for pointer := 0; pointer < len(ops); pointer++ {
		if ops[pointer].Op == Equal {
			equalities = append(equalities, pointer)
			ins1, del1 = ins2, del2
			ins2, del2 = 0, 0
			lastEquality = ops[pointer].Text
			hasLast = true
			continue
		}

		if ops[pointer].Op == Insert {
			ins2 += runeLen(ops[pointer].Text)
		} else {
			del2 += runeLen(ops[pointer].Text)
		}

		// An equality no longer than the edits on both sides is eliminated
		n := runeLen(lastEquality)
		if hasLast && n <= max(ins1, del1) && n <= max(ins2, del2) {
			at := equalities[len(equalities)-1]
			ops = splice(ops, at, 0, Operation{Delete, lastEquality})
			ops[at+1].Op = Insert

			// Drop this equality and the one before it, which must be
			// re-evaluated
			equalities = equalities[:len(equalities)-1]
			if len(equalities) > 0 {
				equalities = equalities[:len(equalities)-1]
			}
			pointer = -1
			if len(equalities) > 0 {
				pointer = equalities[len(equalities)-1]
			}

			ins1, del1, ins2, del2 = 0, 0, 0, 0
			lastEquality = ""
			hasLast = false
			changes = true
		}
	}

	if changes {
		ops = cleanupMerge(ops)
	}
	ops = cleanupSemanticLossless(ops)

	// Extract overlaps between a deletion and a following insertion, e.g.
	// <del>abcxxx</del><ins>xxxdef</ins> -> <del>abc</del>xxx<ins>def</ins>
	for pointer := 1; pointer < len(ops); pointer++ {
		if ops[pointer-1].Op != Delete || ops[pointer].Op != Insert {
			continue
		}
		deletion := []rune(ops[pointer-1].Text)
		insertion := []rune(ops[pointer].Text)
		overlap1 := commonOverlap(deletion, insertion)
		overlap2 := commonOverlap(insertion, deletion)
		if overlap1 >= overlap2 {
			if 2*overlap1 >= len(deletion) || 2*overlap1 >= len(insertion) {
				ops = splice(ops, pointer, 0, Operation{Equal, string(insertion[:overlap1])})
				ops[pointer-1].Text = string(deletion[:len(deletion)-overlap1])
				ops[pointer+1].Text = string(insertion[overlap1:])
				pointer++
			}
		} else if 2*overlap2 >= len(deletion) || 2*overlap2 >= len(insertion) {
			// Reverse overlap: swap the edits around the shared text
			ops = splice(ops, pointer, 0, Operation{Equal, string(deletion[:overlap2])})
			ops[pointer-1] = Operation{Insert, string(insertion[:len(insertion)-overlap2])}
			ops[pointer+1] = Operation{Delete, string(deletion[overlap2:])}
			pointer++
		}
		pointer++
	}

	return compact(ops)
}

// compact drops empty operations and joins neighbours of the same kind
func compact(ops []Operation) []Operation {
	var out []Operation
	for _, op := range ops {
		if op.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Op == op.Op {
			out[n-1].Text += op.Text
			continue
		}
		out = append(out, op)
	}
	return out
}

// commonOverlap returns the length of the longest suffix of a that is a
// prefix of b
func commonOverlap(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		a = a[la-lb:]
	} else if la < lb {
		b = b[:la]
	}
	n := min(la, lb)
	if runesEqual(a, b) {
		return n
	}

	best := 0
	length := 1
	for length <= n {
		found := runesIndex(b, a[n-length:])
		if found == -1 {
			return best
		}
		length += found
		if found == 0 || runesEqual(a[n-length:], b[:length]) {
			best = length
			length++
		}
	}
	return best
}

// cleanupSemanticLossless slides single edits surrounded by equalities so
// they start and end on the most natural boundary, e.g.
// The c<ins>at c</ins>ame. -> The <ins>cat </ins>came.
func cleanupSemanticLossless(ops []Operation) []Operation {
	for pointer := 1; pointer < len(ops)-1; pointer++ {
		if ops[pointer-1].Op != Equal || ops[pointer+1].Op != Equal {
			continue
		}
		equality1 := ops[pointer-1].Text
		edit := ops[pointer].Text
		equality2 := ops[pointer+1].Text

		// Shift the edit as far left as possible
		if n := commonSuffixBytes(equality1, edit); n > 0 {
			common := edit[len(edit)-n:]
			equality1 = equality1[:len(equality1)-n]
			edit = common + edit[:len(edit)-n]
			equality2 = common + equality2
		}

		// Then step right one rune at a time looking for the best score
		best1, bestEdit, best2 := equality1, edit, equality2
		bestScore := semanticScore(equality1, edit) + semanticScore(edit, equality2)
		for edit != "" && equality2 != "" {
			r1, size1 := utf8.DecodeRuneInString(edit)
			r2, size2 := utf8.DecodeRuneInString(equality2)
			if r1 != r2 {
				break
			}
			equality1 += edit[:size1]
			edit = edit[size1:] + equality2[:size2]
			equality2 = equality2[size2:]
			// >= favours the rightmost of equally good positions
			if score := semanticScore(equality1, edit) + semanticScore(edit, equality2); score >= bestScore {
				bestScore = score
				best1, bestEdit, best2 = equality1, edit, equality2
			}
		}

		if ops[pointer-1].Text == best1 {
			continue
		}
		if best1 != "" {
			ops[pointer-1].Text = best1
		} else {
			ops = splice(ops, pointer-1, 1)
			pointer--
		}
		ops[pointer].Text = bestEdit
		if best2 != "" {
			ops[pointer+1].Text = best2
		} else {
			ops = splice(ops, pointer+1, 1)
			pointer--
		}
	}
	return ops
}

// commonSuffixBytes returns the byte length of the common suffix of a and
// b, cut on a rune boundary
func commonSuffixBytes(a, b string) int {
	n := 0
	for len(a) > n && len(b) > n {
		r1, s1 := utf8.DecodeLastRuneInString(a[:len(a)-n])
		r2, s2 := utf8.DecodeLastRuneInString(b[:len(b)-n])
		if r1 != r2 || s1 != s2 {
			break
		}
		n += s1
	}
	return n
}

// semanticScore rates the boundary between two strings from 6 (edge of
// text) down to 0 (inside a word)
func semanticScore(one, two string) int {
	if one == "" || two == "" {
		return 6
	}

	char1, _ := utf8.DecodeLastRuneInString(one)
	char2, _ := utf8.DecodeRuneInString(two)
	nonAlnum1 := !unicode.IsLetter(char1) && !unicode.IsDigit(char1)
	nonAlnum2 := !unicode.IsLetter(char2) && !unicode.IsDigit(char2)
	space1 := nonAlnum1 && unicode.IsSpace(char1)
	space2 := nonAlnum2 && unicode.IsSpace(char2)
	lineBreak1 := space1 && (char1 == '\n' || char1 == '\r')
	lineBreak2 := space2 && (char2 == '\n' || char2 == '\r')
	blank1 := lineBreak1 && endsWithBlankLine(one)
	blank2 := lineBreak2 && startsWithBlankLine(two)

	switch {
	case blank1 || blank2:
		return 5
	case lineBreak1 || lineBreak2:
		return 4
	case nonAlnum1 && !space1 && space2:
		// End of sentence
		return 3
	case space1 || space2:
		return 2
	case nonAlnum1 || nonAlnum2:
		return 1
	}
	return 0
}

func endsWithBlankLine(s string) bool {
	return strings.HasSuffix(s, "\n\n") || strings.HasSuffix(s, "\n\r\n")
}

func startsWithBlankLine(s string) bool {
	s = strings.TrimPrefix(s, "\r")
	if !strings.HasPrefix(s, "\n") {
		return false
	}
	s = strings.TrimPrefix(s[1:], "\r")
	return strings.HasPrefix(s, "\n")
}
