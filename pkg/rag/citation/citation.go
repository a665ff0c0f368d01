// Package citation checks the [n] markers of a generated answer against the
// excerpts that were supplied to the model.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"ai-plugin-engine/internal/entity"
)

var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

const excerptLimit = 240

// Report is the result of scanning an answer for markers.
type Report struct {
	// Valid holds distinct in-range markers in order of first appearance.
	Valid []int
	// Invalid holds distinct markers with no matching excerpt.
	Invalid []int
	// Coverage is the share of non-empty paragraphs citing at least one valid marker.
	Coverage float64
}

// Validate scans answer for [n] and [n, m] markers; supplied is the number of excerpts.
func Validate(answer string, supplied int) Report {
	var r Report
	seenValid := map[int]bool{}
	seenInvalid := map[int]bool{}

	paragraphs, cited := 0, 0
	for _, para := range strings.Split(answer, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		paragraphs++
		hasValid := false
		for _, n := range markers(para) {
			if n >= 1 && n <= supplied {
				hasValid = true
				if !seenValid[n] {
					seenValid[n] = true
					r.Valid = append(r.Valid, n)
				}
			} else if !seenInvalid[n] {
				seenInvalid[n] = true
				r.Invalid = append(r.Invalid, n)
			}
		}
		if hasValid {
			cited++
		}
	}
	if paragraphs > 0 {
		r.Coverage = float64(cited) / float64(paragraphs)
	}
	return r
}

func markers(text string) []int {
	var out []int
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// Satisfied reports whether the answer meets the plugin's citation mode.
// Mandatory mode needs at least one valid marker and no invalid ones.
func (r Report) Satisfied(mode entity.CitationMode) bool {
	if mode != entity.CitationModeMandatory {
		return true
	}
	return len(r.Valid) > 0 && len(r.Invalid) == 0
}

// Gap describes why a mandatory answer fails; empty when it does not.
func (r Report) Gap() string {
	switch {
	case len(r.Valid) == 0 && len(r.Invalid) == 0:
		return "answer cites no supplied excerpt"
	case len(r.Invalid) > 0:
		sorted := append([]int(nil), r.Invalid...)
		sort.Ints(sorted)
		parts := make([]string, len(sorted))
		for i, n := range sorted {
			parts[i] = "[" + strconv.Itoa(n) + "]"
		}
		return fmt.Sprintf("answer cites excerpts that were not supplied: %s", strings.Join(parts, ", "))
	default:
		return ""
	}
}

// Corrective is the instruction appended when a mandatory answer is regenerated.
func (r Report) Corrective(supplied int) string {
	if supplied == 0 {
		return "Your previous answer did not follow the citation rules. No excerpts are available: say plainly that the knowledge base does not cover this question."
	}
	return fmt.Sprintf(
		"Your previous answer did not follow the citation rules (%s). Rewrite it so every factual claim cites the excerpts by number, using only markers [1] to [%d].",
		r.Gap(), supplied)
}

// Collect turns valid markers into citation entries in marker order.
// Marker n refers to chunks[n-1]; Rank is n.
func Collect(r Report, chunks []*entity.RetrievedChunk) []entity.CitationEntry {
	out := make([]entity.CitationEntry, 0, len(r.Valid))
	for _, n := range r.Valid {
		if n < 1 || n > len(chunks) {
			continue
		}
		out = append(out, Entry(chunks[n-1], n))
	}
	return out
}

// All cites every supplied chunk, used when the plugin does not ask for markers.
func All(chunks []*entity.RetrievedChunk) []entity.CitationEntry {
	out := make([]entity.CitationEntry, len(chunks))
	for i, c := range chunks {
		out[i] = Entry(c, i+1)
	}
	return out
}

func Entry(c *entity.RetrievedChunk, rank int) entity.CitationEntry {
	return entity.CitationEntry{
		ChunkId:      c.Chunk.Id,
		DocumentId:   c.Chunk.DocumentId,
		DocumentName: c.DocumentName,
		PageNumber:   c.Chunk.PageNumber,
		SectionTitle: c.Chunk.SectionTitle,
		Excerpt:      excerpt(c.Chunk.Content),
		Similarity:   c.Similarity,
		Rank:         rank,
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= excerptLimit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:excerptLimit])
	if i := strings.LastIndexAny(cut, " \n\t"); i > excerptLimit/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
