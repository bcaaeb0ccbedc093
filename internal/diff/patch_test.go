package diff

import (
	"strings"
	"testing"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	intro   = "The introduction frames the research question."
	results = "Results are summarised in the final chapter."
)

var filler = strings.Repeat(".", 120)

func twoEditFixture() (string, string) {
	old := intro + filler + results
	new := strings.Replace(intro, "the research", "the central research", 1) +
		filler +
		strings.Replace(results, "summarised", "discussed", 1)
	return old, new
}

func TestApplyDeltaRoundTrip(t *testing.T) {
	e := newTestEngine()
	for _, pair := range samplePairs() {
		delta := e.Encode(e.Compute(pair[0], pair[1]))
		res, err := e.ApplyDelta(pair[0], delta)
		require.NoError(t, err, "delta %q", delta)
		assert.Equal(t, pair[1], res.Text)
		for i, ok := range res.Applied {
			assert.True(t, ok, "patch %d of %q", i, delta)
		}
	}
}

func TestApplyDeltaScenario(t *testing.T) {
	e := newTestEngine()
	old, new := "The quick brown fox", "The quick red fox"

	delta := e.Encode(e.Compute(old, new))
	res, err := e.ApplyDelta(old, delta)
	require.NoError(t, err)
	assert.Equal(t, new, res.Text)
	assert.Equal(t, []bool{true}, res.Applied)
}

func TestApplyDeltaAfterDistantEdit(t *testing.T) {
	e := newTestEngine()
	old, new := twoEditFixture()
	delta := e.Encode(e.Compute(old, new))

	// Someone annotated the middle of the document in the meantime
	mid := len(intro) + 60
	drifted := old[:mid] + "NOTE " + old[mid:]
	want := new[:mid+len(" central")] + "NOTE " + new[mid+len(" central"):]

	res, err := e.ApplyDelta(drifted, delta)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, res.Applied)
	assert.Equal(t, want, res.Text)
}

func TestApplyDeltaPartialFailure(t *testing.T) {
	e := newTestEngine()
	old, new := twoEditFixture()
	delta := e.Encode(e.Compute(old, new))

	// The anchor of the second edit is gone
	replaced := "0123456789 0123456789 0123456789 0123456789."
	broken := intro + filler + replaced

	res, err := e.ApplyDelta(broken, delta)
	require.Error(t, err)

	var patchErr *PatchApplicationError
	require.ErrorAs(t, err, &patchErr)
	assert.Equal(t, []int{1}, patchErr.Failed)
	assert.Equal(t, 2, patchErr.Total)
	assert.Contains(t, patchErr.Error(), "1 of 2 patches")

	require.NotNil(t, res)
	assert.Equal(t, []bool{true, false}, res.Applied)
	assert.Equal(t, []int{1}, res.Failed())
	assert.Equal(t, "The introduction frames the central research question."+filler+replaced, res.Text)
}

func TestApplyDeltaLargeDeletion(t *testing.T) {
	e := newTestEngine()
	old := "abcdefghijklmnopqrstuvwxyz--==" + strings.Repeat("X", 100) + "--==abcdefghijklmnopqrstuvwxyz"
	new := "abcdefghijklmnopqrstuvwxyz--==--==abcdefghijklmnopqrstuvwxyz"

	delta := e.Encode(e.Compute(old, new))
	res, err := e.ApplyDelta(old, delta)
	require.NoError(t, err)
	assert.Equal(t, new, res.Text)
}

func TestApplyDeltaEdgesOfText(t *testing.T) {
	e := newTestEngine()
	pairs := [][2]string{
		{"x", "yx"},
		{"x", "xy"},
		{"middle", "start middle end"},
		{"", "from nothing"},
		{"to nothing", ""},
	}
	for _, pair := range pairs {
		res, err := e.ApplyDelta(pair[0], e.Encode(e.Compute(pair[0], pair[1])))
		require.NoError(t, err)
		assert.Equal(t, pair[1], res.Text)
	}
}

func TestApplyDeltaWideMargin(t *testing.T) {
	old := "The introduction frames the research question and the method."
	new := "The introduction frames the method."

	for _, margin := range []int{1, MaxPatchMargin, MatchMaxBits / 2, MatchMaxBits} {
		e := NewEngine(Options{PatchMargin: margin})
		delta := e.Encode(e.Compute(old, new))

		done := make(chan *ApplyResult, 1)
		go func() {
			res, err := e.ApplyDelta(old, delta)
			assert.NoError(t, err)
			done <- res
		}()

		select {
		case res := <-done:
			require.NotNil(t, res, "margin %d", margin)
			assert.Equal(t, new, res.Text, "margin %d", margin)
		case <-time.After(5 * time.Second):
			t.Fatalf("ApplyDelta with margin %d did not finish", margin)
		}
	}
}

// A side without context only matches the corresponding edge of the text
func TestApplyDeltaWithoutContext(t *testing.T) {
	e := newTestEngine()
	cases := []struct {
		name    string
		text    string
		delta   Delta
		want    string
		applied bool
	}{
		{"replacement of whole text", "a", "@@ -1,1 +1,1 @@\n-a\n+b\n", "b", true},
		{"replacement inside longer text", "abc", "@@ -1,1 +1,1 @@\n-a\n+b\n", "abc", false},
		{"insertion into empty text", "", "@@ -0,0 +1,3 @@\n+new\n", "new", true},
		{"insertion into non-empty text", "abc", "@@ -0,0 +1,3 @@\n+new\n", "abc", false},
		{"prefix edit at start", "abcdef", "@@ -1,3 +1,4 @@\n+x\n abc\n", "xabcdef", true},
		{"prefix edit away from start", "zzabcdef", "@@ -1,3 +1,4 @@\n+x\n abc\n", "zzabcdef", false},
		{"suffix edit at end", "abcdef", "@@ -4,3 +4,4 @@\n def\n+x\n", "abcdefx", true},
		{"suffix edit away from end", "abcdefzz", "@@ -4,3 +4,4 @@\n def\n+x\n", "abcdefzz", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.ApplyDelta(tc.text, tc.delta)
			if tc.applied {
				require.NoError(t, err)
			} else {
				var patchErr *PatchApplicationError
				require.ErrorAs(t, err, &patchErr)
				assert.Equal(t, []int{0}, patchErr.Failed)
			}
			require.NotNil(t, res)
			assert.Equal(t, tc.want, res.Text)
			assert.Equal(t, []bool{tc.applied}, res.Applied)
		})
	}
}

// Patch text must stay readable by the diff-match-patch library
func TestPatchTextInterop(t *testing.T) {
	e := newTestEngine()
	dmp := diffmatchpatch.New()

	old, new := twoEditFixture()
	delta := e.Encode(e.Compute(old, new))

	patches, err := dmp.PatchFromText(string(delta))
	require.NoError(t, err)
	require.Len(t, patches, 2)
	out, applied := dmp.PatchApply(patches, old)
	assert.Equal(t, new, out)
	assert.Equal(t, []bool{true, true}, applied)

	// And patches written by the library apply here
	foreign := Delta(dmp.PatchToText(dmp.PatchMake(old, new)))
	res, err := e.ApplyDelta(old, foreign)
	require.NoError(t, err)
	assert.Equal(t, new, res.Text)
}

func TestPatchString(t *testing.T) {
	p := Patch{
		Start1:  20,
		Start2:  21,
		Length1: 18,
		Length2: 17,
		Ops: []Operation{
			{Equal, "jump"},
			{Delete, "s"},
			{Insert, "ed"},
			{Equal, " over "},
			{Delete, "the"},
			{Insert, "a"},
			{Equal, "\nlaz"},
		},
	}
	want := "@@ -21,18 +22,17 @@\n jump\n-s\n+ed\n  over \n-the\n+a\n %0Alaz\n"
	assert.Equal(t, want, p.String())

	parsed, err := parsePatches(want)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, p, parsed[0])

	assert.Equal(t, "@@ -0,0 +1,3 @@\n+abc\n", (&Patch{Length2: 3, Ops: []Operation{{Insert, "abc"}}}).String())
}

func TestMakePatchesContext(t *testing.T) {
	e := newTestEngine()
	old := "The quick brown fox jumps over the lazy dog."
	new := "The quick brown fox leaps over the lazy dog."

	patches := e.makePatches(e.Compute(old, new))
	require.Len(t, patches, 1)

	p := patches[0]
	assert.Equal(t, Equal, p.Ops[0].Op)
	assert.Equal(t, Equal, p.Ops[len(p.Ops)-1].Op)
	assert.Equal(t, OldText(p.Ops), string([]rune(old)[p.Start1:p.Start1+p.Length1]))
	assert.Equal(t, NewText(p.Ops), string([]rune(new)[p.Start2:p.Start2+p.Length2]))
}

func TestXIndex(t *testing.T) {
	assert.Equal(t, 5, xIndex([]Operation{{Delete, "a"}, {Insert, "1234"}, {Equal, "xyz"}}, 2))
	assert.Equal(t, 1, xIndex([]Operation{{Equal, "a"}, {Delete, "1234"}, {Equal, "xyz"}}, 3))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 4, levenshtein([]Operation{{Delete, "abc"}, {Insert, "1234"}, {Equal, "xyz"}}))
	assert.Equal(t, 4, levenshtein([]Operation{{Equal, "xyz"}, {Delete, "abc"}, {Insert, "1234"}}))
	assert.Equal(t, 7, levenshtein([]Operation{{Delete, "abc"}, {Equal, "xyz"}, {Insert, "1234"}}))
}
