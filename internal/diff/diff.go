// internal/diff/diff.go
package diff

import "unicode/utf8"

// diffRunes computes a minimal operation sequence between a and b. The
// result is merged but not semantically cleaned.
func diffRunes(a, b []rune) []Operation {
	if runesEqual(a, b) {
		if len(a) == 0 {
			return nil
		}
		return []Operation{{Equal, string(a)}}
	}

	// Trim common prefix and suffix
	n := commonPrefix(a, b)
	prefix := a[:n]
	a, b = a[n:], b[n:]

	n = commonSuffix(a, b)
	suffix := a[len(a)-n:]
	a, b = a[:len(a)-n], b[:len(b)-n]

	ops := computeMiddle(a, b)

	if len(prefix) > 0 {
		ops = append([]Operation{{Equal, string(prefix)}}, ops...)
	}
	if len(suffix) > 0 {
		ops = append(ops, Operation{Equal, string(suffix)})
	}
	return cleanupMerge(ops)
}

// computeMiddle diffs two texts that share no common prefix or suffix
func computeMiddle(a, b []rune) []Operation {
	if len(a) == 0 {
		return []Operation{{Insert, string(b)}}
	}
	if len(b) == 0 {
		return []Operation{{Delete, string(a)}}
	}

	long, short := a, b
	if len(a) < len(b) {
		long, short = b, a
	}

	// Shorter text inside the longer one
	if i := runesIndex(long, short); i != -1 {
		op := Insert
		if len(a) > len(b) {
			op = Delete
		}
		return []Operation{
			{op, string(long[:i])},
			{Equal, string(short)},
			{op, string(long[i+len(short):])},
		}
	}

	// A single rune that is not contained cannot be part of any equality
	if len(short) == 1 {
		return []Operation{{Delete, string(a)}, {Insert, string(b)}}
	}

	return bisect(a, b)
}

// bisect finds the middle snake of the Myers O(ND) algorithm and recurses
// on both halves.
func bisect(a, b []rune) []Operation {
	n, m := len(a), len(b)
	maxD := (n + m + 1) / 2
	vOffset := maxD
	vLength := 2 * maxD

	v1 := make([]int, vLength)
	v2 := make([]int, vLength)
	for i := range v1 {
		v1[i] = -1
		v2[i] = -1
	}
	v1[vOffset+1] = 0
	v2[vOffset+1] = 0

	delta := n - m
	// With an odd delta the forward path collides with the reverse path
	front := delta%2 != 0

	// Offsets for the start and end of k loops, pruning diagonals that
	// ran off the grid
	k1start, k1end := 0, 0
	k2start, k2end := 0, 0

	for d := 0; d < maxD; d++ {
		// Forward path
		for k1 := -d + k1start; k1 <= d-k1end; k1 += 2 {
			k1Offset := vOffset + k1
			var x1 int
			if k1 == -d || (k1 != d && v1[k1Offset-1] < v1[k1Offset+1]) {
				x1 = v1[k1Offset+1]
			} else {
				x1 = v1[k1Offset-1] + 1
			}
			y1 := x1 - k1
			for x1 < n && y1 < m && a[x1] == b[y1] {
				x1++
				y1++
			}
			v1[k1Offset] = x1
			switch {
			case x1 > n:
				k1end += 2
			case y1 > m:
				k1start += 2
			case front:
				k2Offset := vOffset + delta - k1
				if k2Offset >= 0 && k2Offset < vLength && v2[k2Offset] != -1 {
					// Mirror x2 onto the top-left coordinate system
					x2 := n - v2[k2Offset]
					if x1 >= x2 {
						return bisectSplit(a, b, x1, y1)
					}
				}
			}
		}

		// Reverse path
		for k2 := -d + k2start; k2 <= d-k2end; k2 += 2 {
			k2Offset := vOffset + k2
			var x2 int
			if k2 == -d || (k2 != d && v2[k2Offset-1] < v2[k2Offset+1]) {
				x2 = v2[k2Offset+1]
			} else {
				x2 = v2[k2Offset-1] + 1
			}
			y2 := x2 - k2
			for x2 < n && y2 < m && a[n-x2-1] == b[m-y2-1] {
				x2++
				y2++
			}
			v2[k2Offset] = x2
			switch {
			case x2 > n:
				k2end += 2
			case y2 > m:
				k2start += 2
			case !front:
				k1Offset := vOffset + delta - k2
				if k1Offset >= 0 && k1Offset < vLength && v1[k1Offset] != -1 {
					x1 := v1[k1Offset]
					y1 := vOffset + x1 - k1Offset
					x2 = n - x2
					if x1 >= x2 {
						return bisectSplit(a, b, x1, y1)
					}
				}
			}
		}
	}

	// No commonality at all
	return []Operation{{Delete, string(a)}, {Insert, string(b)}}
}

func bisectSplit(a, b []rune, x, y int) []Operation {
	ops := diffRunes(a[:x], b[:y])
	return append(ops, diffRunes(a[x:], b[y:])...)
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func commonSuffix(a, b []rune) int {
	la, lb := len(a), len(b)
	n := min(la, lb)
	for i := 1; i <= n; i++ {
		if a[la-i] != b[lb-i] {
			return i - 1
		}
	}
	return n
}

// runesIndexFrom returns the first index of pattern in text at or after from
func runesIndexFrom(text, pattern []rune, from int) int {
	if from < 0 {
		from = 0
	}
	last := len(text) - len(pattern)
	for i := from; i <= last; i++ {
		if runesEqual(text[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

func runesIndex(text, pattern []rune) int {
	return runesIndexFrom(text, pattern, 0)
}

// runesLastIndex returns the last index of pattern in text that starts at
// or before from
func runesLastIndex(text, pattern []rune, from int) int {
	start := min(from, len(text)-len(pattern))
	for i := start; i >= 0; i-- {
		if runesEqual(text[i:i+len(pattern)], pattern) {
			return i
		}
	}
	return -1
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
