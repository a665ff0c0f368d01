// Package chunker splits source documents into ordered, size-bounded segments
// that keep paragraph, section and page structure.
package chunker

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options sizes are measured in runes.
type Options struct {
	TargetSize int
	MinSize    int
	MaxSize    int
}

func DefaultOptions() Options {
	return Options{TargetSize: 1000, MinSize: 200, MaxSize: 1500}
}

// Hints describe the source so header detection can follow its format.
type Hints struct {
	FileName string
	FileType string
}

func (h Hints) markdown() bool {
	ft := strings.ToLower(strings.TrimPrefix(h.FileType, "."))
	if ft == "md" || ft == "markdown" || ft == "text/markdown" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(h.FileName))
	return ext == ".md" || ext == ".markdown"
}

type Segment struct {
	Index        int
	Content      string
	PageNumber   *int
	SectionTitle *string
}

type Chunker struct {
	opts Options
}

func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.TargetSize <= 0 {
		opts.TargetSize = def.TargetSize
	}
	if opts.MaxSize < opts.TargetSize {
		opts.MaxSize = opts.TargetSize + opts.TargetSize/2
	}
	if opts.MinSize <= 0 || opts.MinSize > opts.TargetSize {
		opts.MinSize = opts.TargetSize / 5
	}
	return &Chunker{opts: opts}
}

var (
	markdownHeader = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	numberedHeader = regexp.MustCompile(`^\d+(?:\.\d+)*[.)]?\s+\p{Lu}.{0,78}$`)
	namedHeader    = regexp.MustCompile(`(?i)^(?:chapter|section|article|part)\s+[0-9ivxlc]+\b.{0,70}$`)
	pageMarker     = regexp.MustCompile(`(?i)^(?:-{2,}\s*)?\[?page\s+(\d+)(?:\s+of\s+\d+)?\]?(?:\s*-{2,})?$`)
)

type block struct {
	text         string
	page         *int
	section      *string
	sectionStart bool
}

// Split is deterministic: the same text and hints always produce the same segments.
// Whitespace-only input yields no segments.
func (c *Chunker) Split(text string, hints Hints) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	markdown := hints.markdown()
	if isRichText(text, hints) {
		if md, ok := RichTextToMarkdown(text); ok {
			text, markdown = md, true
		}
	}
	blocks := c.parseBlocks(text, markdown)
	return c.pack(blocks)
}

func (c *Chunker) parseBlocks(text string, markdown bool) []block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var page *int
	if strings.Contains(text, "\f") {
		p := 1
		page = &p
	}

	var (
		blocks       []block
		section      *string
		cur          []string
		curPage      *int
		curSection   *string
		sectionStart bool
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, block{
			text:         strings.Join(cur, "\n"),
			page:         curPage,
			section:      curSection,
			sectionStart: sectionStart,
		})
		cur = nil
		sectionStart = false
	}

	for _, raw := range strings.Split(text, "\n") {
		for i, line := range strings.Split(raw, "\f") {
			if i > 0 {
				flush()
				next := *page + 1
				page = &next
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				flush()
				continue
			}
			if m := pageMarker.FindStringSubmatch(trimmed); m != nil {
				flush()
				if n, err := strconv.Atoi(m[1]); err == nil {
					page = &n
				}
				continue
			}
			if title, ok := detectHeader(trimmed, markdown); ok {
				flush()
				t := title
				section = &t
				curPage, curSection, sectionStart = page, section, true
				cur = []string{trimmed}
				continue
			}
			if len(cur) == 0 {
				curPage, curSection = page, section
			}
			cur = append(cur, strings.TrimRightFunc(line, unicode.IsSpace))
		}
	}
	flush()
	return blocks
}

func detectHeader(line string, markdown bool) (string, bool) {
	if m := markdownHeader.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if markdown {
		return "", false
	}
	if utf8.RuneCountInString(line) > 80 || strings.HasSuffix(line, ".") {
		return "", false
	}
	if numberedHeader.MatchString(line) && len(strings.Fields(line)) <= 10 {
		return line, true
	}
	if namedHeader.MatchString(line) {
		return line, true
	}
	if isAllCaps(line) {
		return line, true
	}
	return "", false
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3 && !strings.ContainsAny(line[len(line)-1:], ".,;")
}

type packer struct {
	opts    Options
	out     []Segment
	parts   []string
	size    int
	page    *int
	section *string
}

func (c *Chunker) pack(blocks []block) []Segment {
	p := &packer{opts: c.opts}
	for _, b := range blocks {
		if b.sectionStart {
			p.emit()
		}
		n := utf8.RuneCountInString(b.text)
		if n > c.opts.MaxSize {
			p.emit()
			for _, piece := range splitLong(b.text, c.opts) {
				p.add(piece, b.page, b.section)
				p.emit()
			}
			continue
		}
		p.add(b.text, b.page, b.section)
	}
	p.emit()
	return p.out
}

func (p *packer) add(text string, page *int, section *string) {
	n := utf8.RuneCountInString(text)
	if p.size > 0 {
		next := p.size + 2 + n
		if next > p.opts.MaxSize || (next > p.opts.TargetSize && p.size >= p.opts.MinSize) {
			p.emit()
		}
	}
	if p.size == 0 {
		p.page, p.section = page, section
	} else {
		p.size += 2
	}
	p.parts = append(p.parts, text)
	p.size += n
}

// emit closes the current segment. A short tail is folded into the previous
// segment of the same section when the result still fits MaxSize.
func (p *packer) emit() {
	if p.size == 0 {
		return
	}
	content := strings.TrimSpace(strings.Join(p.parts, "\n\n"))
	size := p.size
	p.parts, p.size = nil, 0
	if content == "" {
		return
	}

	if size < p.opts.MinSize && len(p.out) > 0 {
		last := &p.out[len(p.out)-1]
		if sameSection(last.SectionTitle, p.section) &&
			utf8.RuneCountInString(last.Content)+2+size <= p.opts.MaxSize {
			last.Content += "\n\n" + content
			return
		}
	}

	p.out = append(p.out, Segment{
		Index:        len(p.out),
		Content:      content,
		PageNumber:   p.page,
		SectionTitle: p.section,
	})
}

func sameSection(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// splitLong breaks an oversized paragraph at sentence boundaries, falling back
// to word boundaries. A single word longer than MaxSize is kept whole.
func splitLong(text string, opts Options) []string {
	var units []string
	for _, s := range splitSentences(text) {
		if utf8.RuneCountInString(s) <= opts.MaxSize {
			units = append(units, s)
			continue
		}
		units = append(units, packWords(strings.Fields(s), opts.TargetSize)...)
	}

	var (
		pieces []string
		cur    strings.Builder
		size   int
	)
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if size > 0 && size+1+n > opts.TargetSize {
			pieces = append(pieces, cur.String())
			cur.Reset()
			size = 0
		}
		if size > 0 {
			cur.WriteByte(' ')
			size++
		}
		cur.WriteString(u)
		size += n
	}
	if size > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

func packWords(words []string, target int) []string {
	var (
		out  []string
		cur  []string
		size int
	)
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if size > 0 && size+1+n > target {
			out = append(out, strings.Join(cur, " "))
			cur, size = nil, 0
		}
		if size > 0 {
			size++
		}
		cur = append(cur, w)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// splitSentences cuts after terminal punctuation followed by whitespace and at line breaks.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	push := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			push(i + 1)
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`"')]`, runes[j]) {
			j++
		}
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			push(j)
			i = j - 1
		}
	}
	push(len(runes))
	return out
}
