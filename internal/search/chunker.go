package search

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// chunkTargetWords bounds the size of one retrieval chunk. Small windows
// keep a chunk's score about one topic instead of diluting it across a
// whole article.
const chunkTargetWords = 120

var markdown = goldmark.New()

// markdownBlocks parses article markdown and returns the plain text of each
// leaf block (paragraphs, headings, list items, code blocks) in document
// order. Markdown syntax never reaches the index tokens.
func markdownBlocks(content string) []string {
	source := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines == nil || lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
			b.WriteByte('\n')
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			blocks = append(blocks, s)
		}
		// Leaf blocks own their lines; do not descend into inline nodes.
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// splitChunks groups consecutive blocks into windows of roughly
// chunkTargetWords words. Deterministic for identical input.
func splitChunks(content string) []string {
	blocks := markdownBlocks(content)
	if len(blocks) == 0 {
		if s := strings.TrimSpace(content); s != "" {
			return []string{s}
		}
		return nil
	}

	var (
		chunks []string
		curr   []string
		count  int
	)
	for _, block := range blocks {
		words := len(strings.Fields(block))
		if count+words > chunkTargetWords && len(curr) > 0 {
			chunks = append(chunks, strings.Join(curr, "\n\n"))
			curr, count = nil, 0
		}
		curr = append(curr, block)
		count += words
	}
	if len(curr) > 0 {
		chunks = append(chunks, strings.Join(curr, "\n\n"))
	}
	return chunks
}
