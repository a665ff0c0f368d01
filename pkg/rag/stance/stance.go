// Package stance reduces expert answers to comparable positions.
package stance

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Threshold is the Jaccard similarity at which two stances count as compatible.
const Threshold = 0.6

var (
	stanceLine   = regexp.MustCompile(`(?im)^\s*\**stance\**\s*:\s*\**\s*(.+?)\s*$`)
	revisionLine = regexp.MustCompile(`(?i)^\s*\**revision\**\s*:\s*\**\s*(.*)$`)
	noRevision   = regexp.MustCompile(`(?i)^\s*\**no revision\**\s*\.?\s*$`)
	markerRef    = regexp.MustCompile(`\[\d+(?:\s*,\s*\d+)*\]`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "with": true, "by": true, "at": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "it": true,
	"its": true, "this": true, "that": true, "these": true, "those": true, "from": true,
	"which": true, "there": true, "their": true, "has": true, "have": true, "had": true,
	"will": true, "would": true, "should": true, "can": true, "could": true, "may": true,
	"i": true, "we": true, "our": true, "my": true, "so": true, "also": true, "than": true,
}

// Extract returns the last STANCE: line of answer, or the whole answer without
// citation markers when there is none.
func Extract(answer string) string {
	matches := stanceLine.FindAllStringSubmatch(answer, -1)
	if len(matches) > 0 {
		return strings.TrimSpace(matches[len(matches)-1][1])
	}
	return strings.TrimSpace(markerRef.ReplaceAllString(answer, ""))
}

// StripStance removes STANCE: lines from answer.
func StripStance(answer string) string {
	return strings.TrimSpace(stanceLine.ReplaceAllString(answer, ""))
}

// Revision is what an expert declared about its follow-up answer.
type Revision struct {
	Declared bool
	Revised  bool
	Note     string
	Answer   string
}

// ParseRevision reads a leading "REVISION: note" or "NO REVISION" line and
// returns the rest as the answer.
func ParseRevision(reply string) Revision {
	reply = strings.TrimSpace(reply)
	first, rest, _ := strings.Cut(reply, "\n")
	if noRevision.MatchString(first) {
		return Revision{Declared: true, Answer: strings.TrimSpace(rest)}
	}
	if m := revisionLine.FindStringSubmatch(first); m != nil {
		return Revision{Declared: true, Revised: true, Note: strings.TrimSpace(m[1]), Answer: strings.TrimSpace(rest)}
	}
	return Revision{Answer: reply}
}

// Tokens lowercases text and returns its distinct content words, sorted.
func Tokens(text string) []string {
	seen := map[string]bool{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Similarity is the Jaccard index of the token sets of a and b.
// Two empty stances are identical.
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	for _, t := range tb {
		if set[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func Compatible(a, b string) bool {
	return Similarity(a, b) >= Threshold
}

// Cluster groups stances greedily in input order: each stance joins the first
// cluster whose founding stance it is compatible with. Clusters hold indexes.
func Cluster(stances []string) [][]int {
	var clusters [][]int
	for i, s := range stances {
		placed := false
		for c := range clusters {
			if Compatible(stances[clusters[c][0]], s) {
				clusters[c] = append(clusters[c], i)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []int{i})
		}
	}
	return clusters
}
