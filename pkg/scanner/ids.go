package scanner

import (
	"sort"

	"github.com/secureai/medgenomics/pkg/types"
)

const (
	idsScoreCap     = 100
	maxSampleOffset = 8
)

type patternSpec struct {
	pattern  string
	category string
	severity types.Severity
}

var idsPatterns = []patternSpec{
	{"drop table", "sql", types.SeverityMedium},
	{"union select", "sql", types.SeverityMedium},
	{"or 1=1", "sql", types.SeverityMedium},
	{"and 1=1", "sql", types.SeverityMedium},
	{"--", "sql", types.SeverityLow},
	{"/*", "sql", types.SeverityLow},
	{"*/", "sql", types.SeverityLow},
	{";--", "sql", types.SeverityMedium},
	{"'", "sql", types.SeverityLow},
	{"\"", "sql", types.SeverityLow},
	{";", "sql", types.SeverityLow},

	{"<script", "script", types.SeverityHigh},
	{"javascript:", "script", types.SeverityHigh},
	{"onload=", "script", types.SeverityMedium},
	{"onerror=", "script", types.SeverityMedium},
	{"<iframe", "script", types.SeverityHigh},
	{"<embed", "script", types.SeverityHigh},

	{"../", "path-traversal", types.SeverityMedium},
	{"..\\", "path-traversal", types.SeverityMedium},
	{"/etc/passwd", "path-traversal", types.SeverityCritical},
	{"c:\\windows", "path-traversal", types.SeverityHigh},
	{"\\\\", "path-traversal", types.SeverityLow},

	{"rm -rf", "shell", types.SeverityCritical},
	{"; rm ", "shell", types.SeverityHigh},
	{"&& rm ", "shell", types.SeverityHigh},
	{"| rm ", "shell", types.SeverityHigh},
	{"`", "shell", types.SeverityMedium},
	{"$(", "shell", types.SeverityMedium},
}

var severityWeight = map[types.Severity]int{
	types.SeverityLow:      1,
	types.SeverityMedium:   3,
	types.SeverityHigh:     6,
	types.SeverityCritical: 12,
}

// acNode is one state of the Aho-Corasick trie.
type acNode struct {
	children map[byte]int
	fail     int
	output   []int // indexes into idsPatterns whose match ends here
}

// Automaton is a built-once, reusable Aho-Corasick matcher over the fixed
// intrusion pattern set.
type Automaton struct {
	nodes []acNode
}

// NewAutomaton builds the goto/fail/output trie for idsPatterns. It is
// built once at startup and is safe for concurrent read-only use.
func NewAutomaton() *Automaton {
	a := &Automaton{nodes: []acNode{{children: map[byte]int{}}}}
	for i, p := range idsPatterns {
		a.insert(normalize(p.pattern), i)
	}
	a.buildFailureLinks()
	return a
}

func (a *Automaton) insert(pattern string, patternIdx int) {
	cur := 0
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		next, ok := a.nodes[cur].children[c]
		if !ok {
			a.nodes = append(a.nodes, acNode{children: map[byte]int{}})
			next = len(a.nodes) - 1
			a.nodes[cur].children[c] = next
		}
		cur = next
	}
	a.nodes[cur].output = append(a.nodes[cur].output, patternIdx)
}

func (a *Automaton) buildFailureLinks() {
	var queue []int
	for c, child := range a.nodes[0].children {
		a.nodes[child].fail = 0
		queue = append(queue, child)
		_ = c
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for c, child := range a.nodes[cur].children {
			queue = append(queue, child)
			f := a.nodes[cur].fail
			for {
				if next, ok := a.nodes[f].children[c]; ok {
					a.nodes[child].fail = next
					break
				}
				if f == 0 {
					a.nodes[child].fail = 0
					break
				}
				f = a.nodes[f].fail
			}
			a.nodes[child].output = append(a.nodes[child].output, a.nodes[a.nodes[child].fail].output...)
		}
	}
}

func normalize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

type idsMatch struct {
	patternIdx int
	offset     int
}

// Scan runs the automaton over input in a single pass, reporting every
// occurrence of every configured pattern (overlapping matches included).
func (a *Automaton) Scan(input []byte) []idsMatch {
	var matches []idsMatch
	cur := 0
	for i, raw := range input {
		c := raw
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		for {
			if next, ok := a.nodes[cur].children[c]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = a.nodes[cur].fail
		}
		for _, idx := range a.nodes[cur].output {
			patLen := len(idsPatterns[idx].pattern)
			matches = append(matches, idsMatch{patternIdx: idx, offset: i - patLen + 1})
		}
	}
	return matches
}

// IDSResult is the IDS scanner's verdict.
type IDSResult struct {
	Passed bool
	Detail types.IDSDetail
}

// ScanIDS matches input against the automaton, scores the hits, and
// reports pass/fail against threshold.
func ScanIDS(a *Automaton, input []byte, threshold int, scoreCap int) IDSResult {
	if scoreCap <= 0 {
		scoreCap = idsScoreCap
	}
	matches := a.Scan(input)

	score := 0
	categoryCounts := map[string]int{}
	var sampleOffsets []int
	for _, m := range matches {
		p := idsPatterns[m.patternIdx]
		score += severityWeight[p.severity]
		categoryCounts[p.category]++
		if len(sampleOffsets) < maxSampleOffset {
			sampleOffsets = append(sampleOffsets, m.offset)
		}
	}
	if score > scoreCap {
		score = scoreCap
	}

	var top []types.CategoryCount
	for cat, count := range categoryCounts {
		top = append(top, types.CategoryCount{Category: cat, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Category < top[j].Category
	})

	detail := types.IDSDetail{
		MatchCount:    len(matches),
		TopCategories: top,
		SampleOffsets: sampleOffsets,
		Score:         float64(score),
	}
	return IDSResult{Passed: score <= threshold, Detail: detail}
}
