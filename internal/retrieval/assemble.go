package retrieval

import (
	"fmt"
	"os"
	"strings"

	"grounder/internal/vectorindex"
)

// Assembler expands ranked chunk hits into full source-file text bounded by
// a byte budget. The budget is a hard postcondition: the assembled context
// never exceeds it.
type Assembler struct {
	readFile func(string) ([]byte, error)
}

// NewAssembler creates an assembler reading source files from disk.
func NewAssembler() *Assembler {
	return &Assembler{readFile: os.ReadFile}
}

// Assemble processes hits in ranked order. Whole files are appended while
// they fit; the first hit whose file would overflow the budget is truncated
// to a window around its matching chunk, and everything after it is dropped.
func (a *Assembler) Assemble(hits []vectorindex.ScoredHit, maxLength int) (string, error) {
	var context strings.Builder

	for _, hit := range hits {
		data, err := a.readFile(hit.Chunk.Source)
		if err != nil {
			return "", fmt.Errorf("failed to read source %s: %w", hit.Chunk.Source, err)
		}
		fileText := string(data)

		// The separating newline counts toward the budget.
		if context.Len()+1+len(fileText) <= maxLength {
			context.WriteByte('\n')
			context.WriteString(fileText)
			continue
		}

		remaining := maxLength - context.Len()
		if remaining <= 0 {
			break
		}

		chunk := hit.Chunk.Content
		idx := strings.Index(fileText, chunk)
		if idx == -1 {
			// The chunk was cleaned or transformed and no longer appears
			// verbatim. Fall back to the chunk itself plus leading file text.
			frag := chunk + "\n"
			if len(frag) > remaining {
				frag = frag[:remaining]
			}
			context.WriteString(frag)
			rest := remaining - len(frag)
			if rest > len(fileText) {
				rest = len(fileText)
			}
			if rest > 0 {
				context.WriteString(fileText[:rest])
			}
		} else {
			// Window the file around the chunk, biased toward trailing
			// context. Clamp to zero when the budget is smaller than the
			// chunk itself.
			start := idx - (remaining - len(chunk))
			if start < 0 {
				start = 0
			}
			end := start + remaining
			if end > len(fileText) {
				end = len(fileText)
			}
			context.WriteString(fileText[start:end])
		}
		break
	}

	return context.String(), nil
}
