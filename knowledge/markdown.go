package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The knowledge base is a directory of markdown files. Each heading opens
// a new chunk; the body below it (until the next heading) is the chunk
// content. A "Keywords: a, b, c" line inside a section is lifted out into
// the chunk's keyword list.

var keywordsLineRe = regexp.MustCompile(`(?mi)^keywords:\s*(.+)$`)

// LoadDir parses every .md file under dir into chunks, in file name order
// so chunk order (and therefore search tie-breaking) is stable.
func LoadDir(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	chunks := []Chunk{}
	for _, name := range names {
		source, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fileChunks := ChunkMarkdown(strings.TrimSuffix(name, ".md"), source)
		chunks = append(chunks, fileChunks...)
	}

	slog.Info("knowledge: loaded markdown chunks", "dir", dir, "files", len(names), "chunks", len(chunks))
	return chunks, nil
}

// ChunkMarkdown splits one markdown document into heading-delimited
// chunks. Text before the first heading becomes a chunk titled after the
// document itself.
func ChunkMarkdown(docName string, source []byte) []Chunk {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	chunks := []Chunk{}
	current := Chunk{ID: docName, Title: docName}
	var body strings.Builder

	flush := func() {
		content := strings.TrimSpace(body.String())
		body.Reset()
		if content == "" && current.Title == docName {
			return // nothing before the first heading
		}
		current.Keywords, current.Content = extractKeywords(content)
		if current.Content != "" || len(current.Keywords) > 0 {
			chunks = append(chunks, current)
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			flush()
			title := string(nodeText(heading, source))
			current = Chunk{
				ID:    docName + "#" + slugify(title),
				Title: title,
			}
			continue
		}
		body.WriteString(string(blockText(node, source)))
		body.WriteString("\n")
	}
	flush()

	return chunks
}

func extractKeywords(content string) ([]string, string) {
	match := keywordsLineRe.FindStringSubmatch(content)
	if match == nil {
		return nil, content
	}

	keywords := []string{}
	for _, keyword := range strings.Split(match[1], ",") {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}

	content = strings.TrimSpace(keywordsLineRe.ReplaceAllString(content, ""))
	return keywords, content
}

// blockText collects the raw source lines of a block node and all of its
// descendants (lists nest their text inside item paragraphs).
func blockText(node ast.Node, source []byte) []byte {
	var out []byte
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			out = append(out, segment.Value(source)...)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func nodeText(node ast.Node, source []byte) []byte {
	var out []byte
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			out = append(out, textNode.Segment.Value(source)...)
			continue
		}
		out = append(out, nodeText(child, source)...)
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}
