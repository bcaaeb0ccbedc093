package diff

import (
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultOptions())
}

func TestCompute(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		old, new string
		want     []Operation
	}{
		{
			name: "both empty",
		},
		{
			name: "identical",
			old:  "abc",
			new:  "abc",
			want: []Operation{{Equal, "abc"}},
		},
		{
			name: "full insert",
			new:  "B",
			want: []Operation{{Insert, "B"}},
		},
		{
			name: "full delete",
			old:  "A",
			want: []Operation{{Delete, "A"}},
		},
		{
			name: "substitution is a single semantic edit",
			old:  "The quick brown fox",
			new:  "The quick red fox",
			want: []Operation{
				{Equal, "The quick "},
				{Delete, "brown"},
				{Insert, "red"},
				{Equal, " fox"},
			},
		},
		{
			name: "insertion inside a word",
			old:  "abc",
			new:  "ab123c",
			want: []Operation{{Equal, "ab"}, {Insert, "123"}, {Equal, "c"}},
		},
		{
			name: "insertion aligned to word boundary",
			old:  "The came.",
			new:  "The cat came.",
			want: []Operation{{Equal, "The "}, {Insert, "cat "}, {Equal, "came."}},
		},
		{
			name: "multi-byte runes",
			old:  "naïve café",
			new:  "naive café",
			want: []Operation{{Equal, "na"}, {Delete, "ï"}, {Insert, "i"}, {Equal, "ve café"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Compute(tt.old, tt.new)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			if d := cmp.Diff(tt.want, got); d != "" {
				t.Errorf("Compute(%q, %q) mismatch (-want +got):\n%s", tt.old, tt.new, d)
			}
		})
	}
}

func TestComputeReconstructsBothTexts(t *testing.T) {
	e := newTestEngine()
	for _, pair := range samplePairs() {
		ops := e.Compute(pair[0], pair[1])
		assert.Equal(t, pair[0], OldText(ops))
		assert.Equal(t, pair[1], NewText(ops))
		for _, op := range ops {
			assert.NotEmpty(t, op.Text, "empty operation in %v", ops)
		}
	}
}

func TestComputeWordGranularity(t *testing.T) {
	e := NewEngine(Options{Granularity: Word})

	ops := e.Compute("The quick brown fox", "The quick red fox")
	want := []Operation{
		{Equal, "The quick "},
		{Delete, "brown"},
		{Insert, "red"},
		{Equal, " fox"},
	}
	assert.Empty(t, cmp.Diff(want, ops))

	// Words are never split even when they share letters
	ops = e.Compute("a bread loaf", "a broad loaf")
	want = []Operation{
		{Equal, "a "},
		{Delete, "bread"},
		{Insert, "broad"},
		{Equal, " loaf"},
	}
	assert.Empty(t, cmp.Diff(want, ops))
}

func TestComputeLineGranularity(t *testing.T) {
	e := NewEngine(Options{Granularity: Line})

	old := "first line\nsecond line\nthird line\n"
	new := "first line\nsecond line, edited\nthird line\n"
	ops := e.Compute(old, new)
	want := []Operation{
		{Equal, "first line\n"},
		{Delete, "second line\n"},
		{Insert, "second line, edited\n"},
		{Equal, "third line\n"},
	}
	assert.Empty(t, cmp.Diff(want, ops))
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Char, g)

	g, err = ParseGranularity("WORD")
	require.NoError(t, err)
	assert.Equal(t, Word, g)

	_, err = ParseGranularity("sentence")
	assert.Error(t, err)
}

func TestNewEngineOptions(t *testing.T) {
	// Zero fields take the defaults
	assert.Equal(t, DefaultOptions(), NewEngine(Options{}).Options())

	opts := NewEngine(Options{MatchThreshold: 0.1, MatchDistance: 10, PatchMargin: 2, DeleteThreshold: 0.9}).Options()
	assert.Equal(t, Options{Granularity: Char, MatchThreshold: 0.1, MatchDistance: 10, PatchMargin: 2, DeleteThreshold: 0.9}, opts)

	for _, margin := range []int{MaxPatchMargin, MaxPatchMargin + 1, MatchMaxBits / 2, 100} {
		got := NewEngine(Options{PatchMargin: margin}).Options().PatchMargin
		assert.Equal(t, MaxPatchMargin, got, "margin %d", margin)
	}
}

func TestComputeStats(t *testing.T) {
	ops := []Operation{{Equal, "ab"}, {Delete, "ïx"}, {Insert, "y"}, {Equal, "c"}}
	assert.Equal(t, Stats{Additions: 1, Deletions: 2, Changes: 3}, ComputeStats(ops))
}

func TestEngineConcurrentUse(t *testing.T) {
	e := newTestEngine()
	pairs := samplePairs()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, pair := range pairs {
				res, err := e.ApplyDelta(pair[0], e.Encode(e.Compute(pair[0], pair[1])))
				if assert.NoError(t, err) {
					assert.Equal(t, pair[1], res.Text)
				}
			}
		}()
	}
	wg.Wait()
}

// samplePairs covers prose edits, whitespace, multi-byte text and
// degenerate inputs
func samplePairs() [][2]string {
	chapter := strings.Repeat("Each chapter builds on the previous one. ", 6)
	return [][2]string{
		{"", ""},
		{"", "new document"},
		{"old document", ""},
		{"same", "same"},
		{"The quick brown fox", "The quick red fox"},
		{"The quick brown fox jumps over the lazy dog.", "That quick brown fox jumped over a lazy dog."},
		{"abc", "xyz"},
		{"line one\nline two\n", "line one\nline 2\nline three\n"},
		{"Ünïcödé tëxt ✓", "Unicode text ✓✓"},
		{"日本語のテキスト", "日本語の新しいテキスト"},
		{"emoji 😀 here", "emoji 😃 there"},
		{chapter, strings.Replace(chapter, "previous", "next", 3)},
		{chapter + "Conclusion.", "Introduction. " + chapter},
		{"a\tb%c+d e", "a\tb%%c++d  e"},
	}
}

// randomEdit applies a handful of random insertions and deletions
func randomEdit(r *rand.Rand, s string) string {
	const alphabet = "ab c\n.é"
	runes := []rune(s)
	letters := []rune(alphabet)
	for n := r.Intn(5); n >= 0; n-- {
		pos := 0
		if len(runes) > 0 {
			pos = r.Intn(len(runes) + 1)
		}
		if r.Intn(2) == 0 && pos < len(runes) {
			end := min(len(runes), pos+1+r.Intn(6))
			runes = append(runes[:pos:pos], runes[end:]...)
			continue
		}
		ins := make([]rune, 1+r.Intn(6))
		for i := range ins {
			ins[i] = letters[r.Intn(len(letters))]
		}
		runes = append(runes[:pos:pos], append(ins, runes[pos:]...)...)
	}
	return string(runes)
}
