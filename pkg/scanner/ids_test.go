package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanIDSCleanInputPasses(t *testing.T) {
	a := NewAutomaton()
	r := ScanIDS(a, []byte(">seq1\nACGTACGTACGT\n"), 5, 100)
	assert.True(t, r.Passed)
	assert.Equal(t, 0, r.Detail.MatchCount)
}

func TestScanIDSDetectsSQLInjection(t *testing.T) {
	a := NewAutomaton()
	r := ScanIDS(a, []byte("'; DROP TABLE users; OR 1=1 --"), 5, 100)
	assert.False(t, r.Passed)
	assert.Greater(t, r.Detail.MatchCount, 0)
	assert.Greater(t, r.Detail.Score, 5.0)
}

func TestScanIDSCaseInsensitive(t *testing.T) {
	a := NewAutomaton()
	lower := ScanIDS(a, []byte("<SCRIPT>alert(1)</SCRIPT>"), 0, 100)
	assert.Greater(t, lower.Detail.MatchCount, 0)
}

func TestScanIDSOverlappingMatchesAllReported(t *testing.T) {
	a := NewAutomaton()
	r := ScanIDS(a, []byte("rm -rf ; rm "), 0, 100)
	assert.GreaterOrEqual(t, r.Detail.MatchCount, 2)
}

func TestScanIDSScoreCappedAtCeiling(t *testing.T) {
	a := NewAutomaton()
	input := make([]byte, 0)
	for i := 0; i < 200; i++ {
		input = append(input, []byte("rm -rf ")...)
	}
	r := ScanIDS(a, input, 5, 100)
	assert.Equal(t, 100.0, r.Detail.Score)
}

func TestScanIDSSampleOffsetsCappedAtEight(t *testing.T) {
	a := NewAutomaton()
	input := make([]byte, 0)
	for i := 0; i < 50; i++ {
		input = append(input, '\'')
	}
	r := ScanIDS(a, input, 0, 100)
	assert.LessOrEqual(t, len(r.Detail.SampleOffsets), 8)
}

func TestScanIDSTopCategoriesSortedByCount(t *testing.T) {
	a := NewAutomaton()
	r := ScanIDS(a, []byte("rm -rf ; rm && rm | rm ' \" ;"), 0, 100)
	require.NotEmpty(t, r.Detail.TopCategories)
	for i := 1; i < len(r.Detail.TopCategories); i++ {
		assert.GreaterOrEqual(t, r.Detail.TopCategories[i-1].Count, r.Detail.TopCategories[i].Count)
	}
}

func TestScanIDSDefaultScoreCap(t *testing.T) {
	a := NewAutomaton()
	input := make([]byte, 0)
	for i := 0; i < 200; i++ {
		input = append(input, []byte("rm -rf ")...)
	}
	r := ScanIDS(a, input, 5, 0)
	assert.Equal(t, float64(idsScoreCap), r.Detail.Score)
}
