// Package markdown turns assistant message text into display blocks.
//
// Rendering is a fixed pipeline: fenced code is split out first, then pipe
// tables are recognised, then the remaining lines are classified by prefix,
// and finally inline formatting is applied to each text run. Later stages
// never re-read text consumed by an earlier one.
package markdown

import (
	"regexp"
	"strings"
)

// BlockKind identifies the type of a rendered block
type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindHeading   BlockKind = "heading"
	KindBullet    BlockKind = "bullet"
	KindNumbered  BlockKind = "numbered"
	KindTable     BlockKind = "table"
	KindCode      BlockKind = "code"
	KindBreak     BlockKind = "break"
)

// Cell is one table cell
type Cell []Span

// Block is one display segment of a message
type Block struct {
	Kind     BlockKind `json:"kind"`
	Level    int       `json:"level,omitempty"`
	Label    string    `json:"label,omitempty"`
	Language string    `json:"language,omitempty"`
	Code     string    `json:"code,omitempty"`
	Spans    []Span    `json:"spans,omitempty"`
	Header   []Cell    `json:"header,omitempty"`
	Rows     [][]Cell  `json:"rows,omitempty"`
	// HTML holds highlighted code when requested through Highlight
	HTML string `json:"html,omitempty"`
}

const fence = "```"

var numberedItem = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)

// chunk is a run of lines that is either fenced code or ordinary text
type chunk struct {
	fenced bool
	lang   string
	lines  []string
}

// Render converts raw message text into blocks. It never fails: anything it
// does not recognise comes back as literal paragraph text.
func Render(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var blocks []Block
	for _, c := range splitFences(text) {
		if c.fenced {
			blocks = append(blocks, Block{
				Kind:     KindCode,
				Language: canonicalLanguage(c.lang),
				Code:     strings.Join(c.lines, "\n"),
			})
			continue
		}
		blocks = append(blocks, renderLines(trimBlankEdges(c.lines))...)
	}
	return blocks
}

// splitFences separates fenced code from the surrounding text. An unterminated
// fence swallows the remainder of the message.
func splitFences(text string) []chunk {
	lines := strings.Split(text, "\n")

	var chunks []chunk
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, chunk{lines: pending})
			pending = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, fence) {
			pending = append(pending, lines[i])
			continue
		}
		flush()

		rest := strings.TrimPrefix(trimmed, fence)
		// `````` opens and closes on the same line
		if rest == fence {
			chunks = append(chunks, chunk{fenced: true})
			continue
		}
		// ```inline code``` on a single line
		if len(rest) > len(fence) && strings.HasSuffix(rest, fence) {
			chunks = append(chunks, chunk{
				fenced: true,
				lines:  []string{strings.TrimSuffix(rest, fence)},
			})
			continue
		}

		code := chunk{fenced: true, lang: strings.TrimSpace(rest)}
		for i++; i < len(lines); i++ {
			if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
				break
			}
			code.lines = append(code.lines, lines[i])
		}
		chunks = append(chunks, code)
	}
	flush()

	return chunks
}

func trimBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func renderLines(lines []string) []Block {
	var blocks []Block

	for i := 0; i < len(lines); {
		if isTableStart(lines, i) {
			table, next := parseTable(lines, i)
			blocks = append(blocks, table)
			i = next
			continue
		}

		if block, ok := classifyLine(lines[i]); ok {
			blocks = append(blocks, block)
			i++
			continue
		}

		// Consecutive plain lines form one paragraph, kept verbatim.
		para := []string{lines[i]}
		i++
		for i < len(lines) && isPlainLine(lines, i) {
			para = append(para, lines[i])
			i++
		}
		blocks = append(blocks, Block{
			Kind:  KindParagraph,
			Spans: parseInline(strings.Join(para, "\n")),
		})
	}

	return blocks
}

// classifyLine handles blank lines and prefix-marked lines. It returns false
// for plain paragraph text.
func classifyLine(line string) (Block, bool) {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		return Block{Kind: KindBreak}, true
	case strings.HasPrefix(trimmed, "### "):
		return heading(3, trimmed[4:]), true
	case strings.HasPrefix(trimmed, "## "):
		return heading(2, trimmed[3:]), true
	case strings.HasPrefix(trimmed, "# "):
		return heading(1, trimmed[2:]), true
	case strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "- "):
		return Block{
			Kind:  KindBullet,
			Spans: parseInline(strings.TrimSpace(trimmed[2:])),
		}, true
	}

	if m := numberedItem.FindStringSubmatch(trimmed); m != nil {
		return Block{
			Kind:  KindNumbered,
			Label: m[1],
			Spans: parseInline(strings.TrimSpace(m[2])),
		}, true
	}

	return Block{}, false
}

func heading(level int, text string) Block {
	return Block{
		Kind:  KindHeading,
		Level: level,
		Spans: parseInline(strings.TrimSpace(text)),
	}
}

func isPlainLine(lines []string, i int) bool {
	if isTableStart(lines, i) {
		return false
	}
	_, marked := classifyLine(lines[i])
	return !marked
}

func isTableStart(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	sep := lines[i+1]
	return strings.Contains(lines[i], "|") &&
		strings.Contains(sep, "|") &&
		strings.Contains(sep, "-")
}

func parseTable(lines []string, start int) (Block, int) {
	table := Block{
		Kind:   KindTable,
		Header: splitCells(lines[start]),
	}

	i := start + 2
	for i < len(lines) && strings.Contains(lines[i], "|") {
		table.Rows = append(table.Rows, splitCells(lines[i]))
		i++
	}
	return table, i
}

// splitCells splits a pipe row, dropping the empty cells produced by outer pipes.
func splitCells(line string) []Cell {
	parts := strings.Split(strings.TrimSpace(line), "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	cells := make([]Cell, len(parts))
	for i, p := range parts {
		cells[i] = Cell(parseInline(p))
	}
	return cells
}
