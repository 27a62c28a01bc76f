package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitHeaderAware(t *testing.T) {
	splitter := NewSplitter()
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, chunks []Chunk)
	}{
		{
			name: "empty document",
			text: "",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Fatalf("expected no chunks, got %d", len(chunks))
				}
			},
		},
		{
			name: "single header section",
			text: "# Install\n\nRun the setup script and follow the printed instructions carefully.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("expected 1 chunk, got %d", len(chunks))
				}
				if chunks[0].Header != "Install" {
					t.Errorf("header = %q, want %q", chunks[0].Header, "Install")
				}
				if !strings.HasPrefix(chunks[0].Content, "Install ") {
					t.Errorf("content should be prefixed with header, got %q", chunks[0].Content)
				}
				if !strings.Contains(chunks[0].Content, "run the setup script") {
					t.Errorf("content should be lower-cased, got %q", chunks[0].Content)
				}
			},
		},
		{
			name: "nested headers join titles",
			text: "# Guide\n\nIntro paragraph for the guide section.\n\n## Setup\n\nDetailed setup paragraph with enough content.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("expected 2 chunks, got %d", len(chunks))
				}
				if chunks[1].Header != "Guide Setup" {
					t.Errorf("nested header = %q, want %q", chunks[1].Header, "Guide Setup")
				}
			},
		},
		{
			name: "sibling header replaces same level",
			text: "# Top\n\n## First\n\nFirst section body with some words.\n\n## Second\n\nSecond section body with some words.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("expected 2 chunks, got %d", len(chunks))
				}
				if chunks[1].Header != "Top Second" {
					t.Errorf("header = %q, want %q", chunks[1].Header, "Top Second")
				}
				if strings.Contains(chunks[1].Header, "First") {
					t.Errorf("sibling header should be replaced, got %q", chunks[1].Header)
				}
			},
		},
		{
			name: "deeper header clears stale child titles",
			text: "# A\n\n## B\n\nBody under A B with enough characters.\n\n# C\n\nBody under C with enough characters.",
			check: func(t *testing.T, chunks []Chunk) {
				last := chunks[len(chunks)-1]
				if last.Header != "C" {
					t.Errorf("header = %q, want %q", last.Header, "C")
				}
			},
		},
		{
			name: "level four headers stay in content",
			text: "# Top\n\n#### Detail\n\nParagraph kept inside the top section body.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("expected 1 chunk, got %d", len(chunks))
				}
				if !strings.Contains(chunks[0].Content, "#### detail") {
					t.Errorf("level-4 header should remain in content, got %q", chunks[0].Content)
				}
			},
		},
		{
			name: "tiny fragments dropped",
			text: "# A\n\nhi\n\n# B\n\nA section body that clearly passes the minimum length.",
			check: func(t *testing.T, chunks []Chunk) {
				for _, c := range chunks {
					if strings.Contains(c.Content, "hi") && c.Header == "A" {
						t.Errorf("fragment below minimum length should be dropped: %q", c.Content)
					}
				}
			},
		},
		{
			name: "preamble before first header kept",
			text: "Preamble paragraph before any header appears here.\n\n# Later\n\nSection body following the first header.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("expected 2 chunks, got %d", len(chunks))
				}
				if chunks[0].Header != "" {
					t.Errorf("preamble header = %q, want empty", chunks[0].Header)
				}
				if !strings.HasPrefix(chunks[0].Content, "preamble") {
					t.Errorf("preamble content = %q", chunks[0].Content)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitter.SplitHeaderAware(ctx, tt.text, "/tmp/doc.md")
			for _, c := range chunks {
				if c.Source != "/tmp/doc.md" {
					t.Errorf("chunk source = %q, want %q", c.Source, "/tmp/doc.md")
				}
			}
			tt.check(t, chunks)
		})
	}
}

func TestSplitHeaderAwareOversizedSection(t *testing.T) {
	splitter := NewSplitter()

	// Build a section well past the re-split cap out of repeated sentences.
	var b strings.Builder
	b.WriteString("# Big\n\n")
	for i := 0; i < 120; i++ {
		b.WriteString("This sentence pads the section towards the split limit. ")
	}

	chunks := splitter.SplitHeaderAware(context.Background(), b.String(), "/tmp/big.md")
	if len(chunks) < 2 {
		t.Fatalf("oversized section should be re-split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		body := strings.TrimPrefix(c.Content, c.Header+" ")
		if n := utf8.RuneCountInString(body); n > subChunkSize+subChunkOverlap {
			t.Errorf("chunk %d body has %d runes, want <= %d", i, n, subChunkSize+subChunkOverlap)
		}
		if c.Header != "Big" {
			t.Errorf("chunk %d header = %q, want %q", i, c.Header, "Big")
		}
	}
}

func TestSplitByLength(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon. ", 100)
	pieces := splitByLength(text, 100, 10)

	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for i, p := range pieces {
		if n := utf8.RuneCountInString(p); n > 100 {
			t.Errorf("piece %d has %d runes, want <= 100", i, n)
		}
	}
	// Overlap means consecutive pieces share a suffix/prefix region; the
	// concatenation must still cover the whole input.
	joined := strings.Join(pieces, "")
	if len(joined) < len(text) {
		t.Errorf("pieces lost content: joined %d bytes, input %d bytes", len(joined), len(text))
	}
}

func TestSplitByLengthShortInput(t *testing.T) {
	pieces := splitByLength("short", 100, 10)
	if len(pieces) != 1 || pieces[0] != "short" {
		t.Fatalf("short input should be returned whole, got %v", pieces)
	}
}
