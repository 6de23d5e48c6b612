// Package classify maps normalized texture tokens to a PBR channel using a
// declarative, priority-ordered rule table.
package classify

import (
	"sort"
	"strings"

	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/token"
)

// maxGram is the longest run of adjacent tokens joined into one candidate,
// so "ambient occlusion" can still hit "ambientocclusion".
const maxGram = 3

// Outcome describes how a classification was reached.
type Outcome int

const (
	NoMatch Outcome = iota
	Matched
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no_match"
	}
}

// Result is the outcome of classifying one texture name. Channel is
// pbr.Unknown unless Outcome is Matched.
type Result struct {
	Channel    pbr.Channel
	Outcome    Outcome
	Pattern    string        // winning pattern
	Candidate  string        // candidate token the pattern matched
	Contenders []pbr.Channel // channels tied at the top when Ambiguous
}

// Classifier is safe for concurrent use; it holds only an immutable table.
type Classifier struct {
	table *Table
}

// New returns a classifier over table. A nil table means DefaultTable.
func New(table *Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// ClassifyName normalizes each name and classifies them together, e.g. a
// node label and its image file name.
func (c *Classifier) ClassifyName(names ...string) Result {
	groups := make([]token.Tokens, 0, len(names))
	for _, n := range names {
		groups = append(groups, token.Normalize(n))
	}
	return c.Classify(groups...)
}

type match struct {
	rule      int
	channel   pbr.Channel
	priority  int
	pattern   string
	candidate string
}

// better reports whether m outranks o: higher priority first, then the
// longer (more specific) pattern.
func (m match) better(o match) bool {
	if m.priority != o.priority {
		return m.priority > o.priority
	}
	return len(m.pattern) > len(o.pattern)
}

func (m match) ties(o match) bool {
	return m.priority == o.priority && len(m.pattern) == len(o.pattern)
}

// Classify resolves token groups to one channel. Adjacent tokens are only
// joined within a group, never across groups.
func (c *Classifier) Classify(groups ...token.Tokens) Result {
	cands := candidates(groups)
	if len(cands) == 0 {
		return Result{Channel: pbr.Unknown, Outcome: NoMatch}
	}

	var matches []match
	for i, r := range c.table.rules {
		if m, ok := matchRule(i, r, cands); ok {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return Result{Channel: pbr.Unknown, Outcome: NoMatch}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.better(best) {
			best = m
		}
	}

	contenders := map[pbr.Channel]bool{}
	for _, m := range matches {
		if m.channel != best.channel && m.ties(best) {
			contenders[m.channel] = true
		}
	}
	if len(contenders) > 0 {
		contenders[best.channel] = true
		tied := make([]pbr.Channel, 0, len(contenders))
		for ch := range contenders {
			tied = append(tied, ch)
		}
		sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
		return Result{Channel: pbr.Unknown, Outcome: Ambiguous, Contenders: tied}
	}

	return Result{
		Channel:   best.channel,
		Outcome:   Matched,
		Pattern:   best.pattern,
		Candidate: best.candidate,
	}
}

// matchRule returns the rule's strongest hit: the longest pattern that
// matches any candidate, first candidate wins among equals.
func matchRule(idx int, r Rule, cands []string) (match, bool) {
	var (
		found bool
		m     match
	)
	consider := func(pattern, cand string) {
		if !found || len(pattern) > len(m.pattern) {
			m = match{rule: idx, channel: r.Channel, priority: r.Priority, pattern: pattern, candidate: cand}
			found = true
		}
	}
	for _, cand := range cands {
		for _, p := range r.Exact {
			if cand == p {
				consider(p, cand)
			}
		}
		for _, p := range r.Contains {
			if strings.Contains(cand, p) {
				consider(p, cand)
			}
		}
	}
	return m, found
}

// candidates expands each group into single tokens and runs of up to
// maxGram adjacent tokens joined without separator.
func candidates(groups []token.Tokens) []string {
	var out []string
	for _, g := range groups {
		for i := range g {
			for n := 1; n <= maxGram && i+n <= len(g); n++ {
				out = append(out, strings.Join(g[i:i+n], ""))
			}
		}
	}
	return out
}
