// Package extract turns uploaded text files into plain text for chunking.
package extract

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

var (
	// one pattern per element: RE2 has no backreferences to pair open and close tags
	hiddenRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
		regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript\s*>`),
		regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head\s*>`),
	}
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTagRe   = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|tr|table|section|article|header|footer|blockquote|pre)\b[^>]*>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRe      = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// FileTypeFromName maps a file extension to a text file type. Binary
// formats are rejected even when the document model knows them.
func FileTypeFromName(name string) (model.FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return model.FileTypeMarkdown, nil
	case ".html", ".htm":
		return model.FileTypeHTML, nil
	case ".txt", ".text":
		return model.FileTypeText, nil
	}
	return "", appErr.Invalidf("unsupported file type %q: only .md, .html and .txt files are accepted", filepath.Ext(name))
}

func Text(fileType model.FileType, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", appErr.Invalid("file is not valid UTF-8 text")
	}
	switch fileType {
	case model.FileTypeMarkdown:
		return Markdown(data), nil
	case model.FileTypeHTML:
		return HTML(string(data)), nil
	case model.FileTypeText:
		return strings.TrimSpace(string(data)), nil
	}
	return "", appErr.Invalidf("cannot extract text from %s files", fileType)
}

// Markdown flattens a markdown document to its text, one block per paragraph.
func Markdown(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					line := lines.At(i)
					sb.Write(line.Value(src))
				}
			} else {
				sb.WriteString("\n\n")
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return normalize(sb.String())
}

func HTML(src string) string {
	out := commentRe.ReplaceAllString(src, "")
	for _, re := range hiddenRes {
		out = re.ReplaceAllString(out, "")
	}
	out = blockTagRe.ReplaceAllString(out, "\n")
	out = tagRe.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	return normalize(out)
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
