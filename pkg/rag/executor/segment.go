package executor

import (
	"strings"
	"unicode/utf8"
)

// DefaultSegmentSize bounds a review segment in runes.
const DefaultSegmentSize = 2000

// DocumentSegment is a run of whole paragraphs with its 1-based line range.
type DocumentSegment struct {
	Index     int
	LineStart int
	LineEnd   int
	Text      string
}

type paragraph struct {
	start, end int
	lines      []string
}

func (p paragraph) text() string {
	return strings.Join(p.lines, "\n")
}

// SegmentDocument packs paragraphs into segments of at most maxRunes. A
// paragraph longer than maxRunes is split between lines; a single longer line
// stays whole.
func SegmentDocument(doc string, maxRunes int) []DocumentSegment {
	if maxRunes <= 0 {
		maxRunes = DefaultSegmentSize
	}
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	var (
		paragraphs []paragraph
		cur        *paragraph
	)
	for i, line := range strings.Split(doc, "\n") {
		if strings.TrimSpace(line) == "" {
			cur = nil
			continue
		}
		if cur == nil {
			paragraphs = append(paragraphs, paragraph{start: i + 1})
			cur = &paragraphs[len(paragraphs)-1]
		}
		cur.lines = append(cur.lines, strings.TrimRight(line, " \t"))
		cur.end = i + 1
	}

	var (
		out  []DocumentSegment
		acc  []string
		size int
		from int
		to   int
	)
	flush := func() {
		if len(acc) == 0 {
			return
		}
		out = append(out, DocumentSegment{Index: len(out), LineStart: from, LineEnd: to, Text: strings.Join(acc, "\n\n")})
		acc, size = nil, 0
	}
	add := func(text string, start, end int) {
		n := utf8.RuneCountInString(text)
		if size > 0 && size+2+n > maxRunes {
			flush()
		}
		if size == 0 {
			from = start
		} else {
			size += 2
		}
		acc = append(acc, text)
		size += n
		to = end
	}

	for _, p := range paragraphs {
		text := p.text()
		if utf8.RuneCountInString(text) <= maxRunes {
			add(text, p.start, p.end)
			continue
		}
		flush()
		for _, piece := range splitLines(p, maxRunes) {
			add(piece.text(), piece.start, piece.end)
			flush()
		}
	}
	flush()
	return out
}

func splitLines(p paragraph, maxRunes int) []paragraph {
	var (
		out  []paragraph
		cur  paragraph
		size int
	)
	for i, line := range p.lines {
		n := utf8.RuneCountInString(line)
		if len(cur.lines) > 0 && size+1+n > maxRunes {
			out = append(out, cur)
			cur, size = paragraph{}, 0
		}
		if len(cur.lines) == 0 {
			cur.start = p.start + i
		} else {
			size++
		}
		cur.lines = append(cur.lines, line)
		cur.end = p.start + i
		size += n
	}
	if len(cur.lines) > 0 {
		out = append(out, cur)
	}
	return out
}
