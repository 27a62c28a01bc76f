package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"grounder/internal/contextutil"
)

const (
	// minChunkLen is the minimum section length in runes; shorter fragments are dropped.
	minChunkLen = 10
	// maxSectionLen is the hard cap: sections at or above it are re-split by length.
	maxSectionLen = 1024
	// subChunkSize is the target size for the length-bounded splitter.
	subChunkSize = 768
	// subChunkOverlap is the backward overlap between consecutive sub-chunks.
	subChunkOverlap = 32
)

// Chunk is a bounded-length, independently indexable fragment of a source document.
type Chunk struct {
	// Content is the indexable text, prefixed with the active header titles.
	Content string
	// Source is the absolute path of the document the chunk was derived from.
	Source string
	// Header is the space-joined concatenation of active header titles (levels 1-3).
	Header string
}

// Splitter splits markdown documents into header-delimited, length-bounded chunks.
// The header titles active at each section are prepended to the section content
// as a retrieval hint.
type Splitter struct {
	parser goldmark.Markdown
}

// NewSplitter creates a markdown splitter backed by a goldmark parser.
func NewSplitter() *Splitter {
	return &Splitter{parser: goldmark.New()}
}

// section is a header-delimited region of the source text.
type section struct {
	header  string
	content string
}

// SplitHeaderAware splits text by markdown headers (levels 1-3) and emits one
// chunk per section, re-splitting sections of maxSectionLen runes or more with
// the length-bounded splitter. Fragments shorter than minChunkLen runes are
// dropped. Content is lower-cased so matching is case-insensitive; header
// prefixes keep their original case. An empty document yields no chunks.
func (s *Splitter) SplitHeaderAware(ctx context.Context, text, source string) []Chunk {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(text) == "" {
		return nil
	}

	sections := s.splitSections(text)

	var chunks []Chunk
	emit := func(header, content string) {
		body := strings.ToLower(content)
		full := body
		if header != "" {
			full = header + " " + body
		}
		chunks = append(chunks, Chunk{Content: full, Source: source, Header: header})
	}

	for _, sec := range sections {
		content := strings.TrimSpace(sec.content)
		switch {
		case utf8.RuneCountInString(content) >= maxSectionLen:
			for _, sub := range splitByLength(content, subChunkSize, subChunkOverlap) {
				if utf8.RuneCountInString(sub) >= minChunkLen {
					emit(sec.header, sub)
				}
			}
		case utf8.RuneCountInString(content) >= minChunkLen:
			emit(sec.header, content)
		}
	}

	for _, c := range chunks {
		if utf8.RuneCountInString(c.Content) >= maxSectionLen {
			logger.WarnContext(ctx, "chunk exceeds split bound",
				"source", source, "length", utf8.RuneCountInString(c.Content))
		}
	}
	return chunks
}

// splitSections walks the goldmark AST and cuts the raw source at every
// heading of level 1-3, tracking the active header title per level. Deeper
// headings stay inside their section's content.
func (s *Splitter) splitSections(src string) []section {
	raw := []byte(src)
	doc := s.parser.Parser().Parse(gmtext.NewReader(raw))

	// Active header titles, indexed by level 1-3.
	var titles [4]string
	headerLine := func(level int) string {
		var parts []string
		for l := 1; l <= level; l++ {
			if titles[l] != "" {
				parts = append(parts, titles[l])
			}
		}
		return strings.Join(parts, " ")
	}

	var sections []section
	prevStart := 0
	prevHeader := ""

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level > 3 || heading.Lines().Len() == 0 {
			continue
		}
		seg := heading.Lines().At(0)

		// Back up to the start of the heading line so the marker is excluded
		// from the preceding section.
		lineStart := seg.Start
		for lineStart > 0 && raw[lineStart-1] != '\n' {
			lineStart--
		}

		sections = append(sections, section{header: prevHeader, content: src[prevStart:lineStart]})

		title := headingText(heading, raw)
		titles[heading.Level] = title
		for l := heading.Level + 1; l < len(titles); l++ {
			titles[l] = ""
		}

		contentStart := seg.Stop
		if contentStart < len(raw) && raw[contentStart] == '\n' {
			contentStart++
		}
		prevStart = contentStart
		prevHeader = headerLine(heading.Level)
	}

	sections = append(sections, section{header: prevHeader, content: src[prevStart:]})
	return sections
}

// headingText extracts the plain text of a heading node.
func headingText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// splitByLength splits text into pieces of at most size runes, preferring
// paragraph, line and sentence boundaries, with overlap runes of backward
// overlap between consecutive pieces.
func splitByLength(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}

		window := string(runes[start:end])
		split := end
		if i := strings.LastIndex(window, "\n\n"); i > 0 {
			split = start + utf8.RuneCountInString(window[:i+2])
		} else if i := strings.LastIndex(window, "\n"); i > 0 {
			split = start + utf8.RuneCountInString(window[:i+1])
		} else if i := strings.LastIndex(window, ". "); i > 0 {
			split = start + utf8.RuneCountInString(window[:i+2])
		}

		out = append(out, string(runes[start:split]))

		next := split - overlap
		if next <= start {
			next = split
		}
		start = next
	}
	return out
}
