package chunker

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// richNode is one node of an editor state tree ({"root": {...}}), as saved
// by the plugin builder's document editor.
type richNode struct {
	Type     string     `json:"type"`
	Children []richNode `json:"children,omitempty"`
	Text     string     `json:"text,omitempty"`
	Tag      string     `json:"tag,omitempty"`
	ListType string     `json:"listType,omitempty"`
	Start    int        `json:"start,omitempty"`
	Checked  bool       `json:"checked,omitempty"`
	URL      string     `json:"url,omitempty"`
}

type richDocument struct {
	Root richNode `json:"root"`
}

func isRichText(text string, hints Hints) bool {
	ft := strings.ToLower(strings.TrimPrefix(hints.FileType, "."))
	if ft == "lexical" || ft == "richtext" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(text), `{"root":`)
}

// RichTextToMarkdown flattens an editor state tree into markdown so headings
// become section titles. Inline formatting is dropped. ok is false when the
// input is not a valid tree.
func RichTextToMarkdown(content string) (string, bool) {
	var doc richDocument
	if err := json.UnmarshalFromString(strings.TrimSpace(content), &doc); err != nil {
		return "", false
	}
	if doc.Root.Type != "root" {
		return "", false
	}

	var sb strings.Builder
	for _, child := range doc.Root.Children {
		writeBlock(&sb, child, 0)
	}
	return strings.TrimSpace(sb.String()), true
}

func writeBlock(sb *strings.Builder, n richNode, depth int) {
	switch n.Type {
	case "heading":
		level := 1
		if len(n.Tag) == 2 && n.Tag[0] == 'h' {
			if l, err := strconv.Atoi(n.Tag[1:]); err == nil && l >= 1 && l <= 6 {
				level = l
			}
		}
		sb.WriteString(strings.Repeat("#", level) + " ")
		writeInline(sb, n.Children)
		sb.WriteString("\n\n")
	case "list":
		writeList(sb, n, depth)
		if depth == 0 {
			sb.WriteString("\n")
		}
	case "quote":
		sb.WriteString("> ")
		writeInline(sb, n.Children)
		sb.WriteString("\n\n")
	case "code":
		sb.WriteString("```\n")
		writeInline(sb, n.Children)
		sb.WriteString("\n```\n\n")
	case "table":
		writeTable(sb, n)
	case "horizontalrule":
		sb.WriteString("---\n\n")
	default:
		writeInline(sb, n.Children)
		if n.Text != "" {
			sb.WriteString(n.Text)
		}
		sb.WriteString("\n\n")
	}
}

func writeInline(sb *strings.Builder, nodes []richNode) {
	for _, n := range nodes {
		switch n.Type {
		case "linebreak":
			sb.WriteString("\n")
		case "link", "autolink":
			sb.WriteString("[")
			writeInline(sb, n.Children)
			sb.WriteString("](" + n.URL + ")")
		default:
			sb.WriteString(n.Text)
			writeInline(sb, n.Children)
		}
	}
}

func writeList(sb *strings.Builder, n richNode, depth int) {
	index := 1
	if n.Start > 0 {
		index = n.Start
	}
	for _, item := range n.Children {
		if item.Type != "listitem" {
			continue
		}

		var nested []richNode
		var inline []richNode
		for _, c := range item.Children {
			if c.Type == "list" {
				nested = append(nested, c)
			} else {
				inline = append(inline, c)
			}
		}

		// Lists nest by wrapping a list in an otherwise empty item.
		if len(inline) > 0 {
			sb.WriteString(strings.Repeat("  ", depth))
			switch n.ListType {
			case "number":
				sb.WriteString(strconv.Itoa(index) + ". ")
				index++
			case "check":
				if item.Checked {
					sb.WriteString("- [x] ")
				} else {
					sb.WriteString("- [ ] ")
				}
			default:
				sb.WriteString("- ")
			}
			writeInline(sb, inline)
			sb.WriteString("\n")
		}
		for _, l := range nested {
			writeList(sb, l, depth+1)
		}
	}
}

func writeTable(sb *strings.Builder, n richNode) {
	var rows [][]string
	cols := 0
	for _, row := range n.Children {
		if row.Type != "tablerow" {
			continue
		}
		var cells []string
		for _, cell := range row.Children {
			var c strings.Builder
			writeInline(&c, cell.Children)
			cells = append(cells, strings.Join(strings.Fields(c.String()), " "))
		}
		rows = append(rows, cells)
		if len(cells) > cols {
			cols = len(cells)
		}
	}
	if len(rows) == 0 {
		return
	}

	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}
	writeRow(rows[0])
	sb.WriteString("|" + strings.Repeat("---|", cols) + "\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	sb.WriteString("\n")
}
