// internal/diff/match.go
package diff

// match locates pattern in text near loc. It returns -1 when no location
// scores within MatchThreshold.
func (e *Engine) match(text, pattern []rune, loc int) int {
	loc = max(0, min(loc, len(text)))
	switch {
	case runesEqual(text, pattern):
		return 0
	case len(text) == 0:
		return -1
	case loc+len(pattern) <= len(text) && runesEqual(text[loc:loc+len(pattern)], pattern):
		return loc
	}
	return e.bitap(text, pattern, loc)
}

// bitap runs the Bitap fuzzy search. pattern must not exceed MatchMaxBits.
func (e *Engine) bitap(text, pattern []rune, loc int) int {
	alphabet := make(map[rune]int, len(pattern))
	for i, r := range pattern {
		alphabet[r] |= 1 << uint(len(pattern)-i-1)
	}

	// Exact matches tighten the threshold up front
	threshold := e.opts.MatchThreshold
	if best := runesIndexFrom(text, pattern, loc); best != -1 {
		threshold = min(e.bitapScore(0, best, loc, pattern), threshold)
		if best = runesLastIndex(text, pattern, loc+len(pattern)); best != -1 {
			threshold = min(e.bitapScore(0, best, loc, pattern), threshold)
		}
	}

	matchMask := 1 << uint(len(pattern)-1)
	bestLoc := -1

	binMax := len(pattern) + len(text)
	var last []int
	for d := 0; d < len(pattern); d++ {
		// Binary search for how far from loc a match with d errors can
		// still score within the threshold
		binMin, binMid := 0, binMax
		for binMin < binMid {
			if e.bitapScore(d, loc+binMid, loc, pattern) <= threshold {
				binMin = binMid
			} else {
				binMax = binMid
			}
			binMid = (binMax-binMin)/2 + binMin
		}
		binMax = binMid

		start := max(1, loc-binMid+1)
		finish := min(loc+binMid, len(text)) + len(pattern)

		rd := make([]int, finish+2)
		rd[finish+1] = (1 << uint(d)) - 1
		for j := finish; j >= start; j-- {
			charMatch := 0
			if j-1 < len(text) {
				charMatch = alphabet[text[j-1]]
			}
			if d == 0 {
				// Exact pass
				rd[j] = ((rd[j+1] << 1) | 1) & charMatch
			} else {
				// Subsequent passes allow one more error
				rd[j] = (((rd[j+1] << 1) | 1) & charMatch) | (((last[j+1] | last[j]) << 1) | 1) | last[j+1]
			}
			if rd[j]&matchMask != 0 {
				score := e.bitapScore(d, j-1, loc, pattern)
				if score <= threshold {
					threshold = score
					bestLoc = j - 1
					if bestLoc > loc {
						// Don't search further right than the mirror of
						// the match on the left
						start = max(1, 2*loc-bestLoc)
					} else {
						break
					}
				}
			}
		}
		// No hope for a better match with more errors
		if e.bitapScore(d+1, loc, loc, pattern) > threshold {
			break
		}
		last = rd
	}
	return bestLoc
}

// bitapScore weighs errors against distance from the expected location
func (e *Engine) bitapScore(errors, x, loc int, pattern []rune) float64 {
	accuracy := float64(errors) / float64(len(pattern))
	proximity := x - loc
	if proximity < 0 {
		proximity = -proximity
	}
	return accuracy + float64(proximity)/float64(e.opts.MatchDistance)
}
