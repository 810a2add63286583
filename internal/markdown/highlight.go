package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// canonicalLanguage maps a fence tag such as "golang" or "js" to the lexer
// name chroma knows it by. Unknown tags are returned unchanged.
func canonicalLanguage(tag string) string {
	if tag == "" {
		return ""
	}
	lexer := lexers.Get(tag)
	if lexer == nil {
		return tag
	}
	return strings.ToLower(lexer.Config().Name)
}

// HighlightHTML renders code as syntax-highlighted HTML using CSS classes.
// When language is empty or unknown the lexer is guessed from the code.
func HighlightHTML(code, language string) (string, error) {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise code: %w", err)
	}

	var buf bytes.Buffer
	formatter := html.New(html.WithClasses(true))
	if err := formatter.Format(&buf, styles.Get("monokai"), iterator); err != nil {
		return "", fmt.Errorf("failed to format code: %w", err)
	}
	return buf.String(), nil
}

// Highlight fills HTML for every code block. Blocks chroma cannot format keep
// only their plain code.
func Highlight(blocks []Block) []Block {
	for i := range blocks {
		if blocks[i].Kind != KindCode {
			continue
		}
		if out, err := HighlightHTML(blocks[i].Code, blocks[i].Language); err == nil {
			blocks[i].HTML = out
		}
	}
	return blocks
}
