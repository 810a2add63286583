package markdown

import (
	"regexp"
	"strings"
)

// SpanKind identifies inline formatting
type SpanKind string

const (
	SpanText   SpanKind = "text"
	SpanBold   SpanKind = "bold"
	SpanItalic SpanKind = "italic"
	SpanCode   SpanKind = "code"
	SpanLink   SpanKind = "link"
)

// Span is a run of inline text with a single formatting
type Span struct {
	Kind SpanKind `json:"kind"`
	Text string   `json:"text"`
	URL  string   `json:"url,omitempty"`
}

var inlineLink = regexp.MustCompile(`^\[([^\]]+)\]\(([^)\s]+)\)`)

// parseInline scans s left to right. Formatted spans are not re-scanned, so
// bold text never contains italics. Unterminated markers stay literal.
func parseInline(s string) []Span {
	var spans []Span
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			spans = append(spans, Span{Kind: SpanText, Text: buf.String()})
			buf.Reset()
		}
	}
	emit := func(span Span) {
		flush()
		spans = append(spans, span)
	}

	for i := 0; i < len(s); {
		switch s[i] {
		case '*':
			if strings.HasPrefix(s[i:], "**") {
				if end := strings.Index(s[i+2:], "**"); end > 0 {
					emit(Span{Kind: SpanBold, Text: s[i+2 : i+2+end]})
					i += end + 4
					continue
				}
				buf.WriteString("**")
				i += 2
				continue
			}
			if end := italicEnd(s, i); end > 0 {
				emit(Span{Kind: SpanItalic, Text: s[i+1 : end]})
				i = end + 1
				continue
			}
		case '`':
			if end := strings.IndexByte(s[i+1:], '`'); end > 0 {
				emit(Span{Kind: SpanCode, Text: s[i+1 : i+1+end]})
				i += end + 2
				continue
			}
		case '[':
			if m := inlineLink.FindStringSubmatch(s[i:]); m != nil {
				emit(Span{Kind: SpanLink, Text: m[1], URL: m[2]})
				i += len(m[0])
				continue
			}
		}
		buf.WriteByte(s[i])
		i++
	}
	flush()

	return spans
}

// italicEnd returns the index of the '*' closing an italic run opened at
// start, or -1. The run must hug its delimiters so "2 * 3 * 4" stays literal.
func italicEnd(s string, start int) int {
	if start+1 >= len(s) || s[start+1] == ' ' || s[start+1] == '*' {
		return -1
	}
	rel := strings.IndexByte(s[start+1:], '*')
	if rel <= 0 {
		return -1
	}
	end := start + 1 + rel
	if s[end-1] == ' ' {
		return -1
	}
	return end
}
