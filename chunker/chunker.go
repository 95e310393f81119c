// Package chunker splits policy documents into overlapping, page/section
// tagged segments for indexing. Chunking is deterministic: the same document
// always yields byte-identical chunks, which keeps audits replayable.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"claimaudit-backend/models"
)

const (
	// DefaultTargetTokens is the per-chunk token budget.
	DefaultTargetTokens = 500
	// DefaultOverlapTokens is carried over between adjacent chunks so a
	// rule spanning a split point stays fully visible in one chunk.
	DefaultOverlapTokens = 50
)

var (
	mdHeading = regexp.MustCompile(`^(#{1,6})\s+(\S.*)$`)
	// Numbered headings like "4.2.1 Coverage Criteria". Long lines and
	// lines ending in a period are treated as list items, not headings.
	numHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+([A-Za-z].*)$`)
)

// Chunker produces fixed-budget overlapping chunks. Tokens are approximated
// by whitespace-delimited words.
type Chunker struct {
	targetTokens  int
	overlapTokens int
}

// New creates a chunker. Non-positive or inconsistent arguments fall back to
// the defaults.
func New(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		overlapTokens = DefaultOverlapTokens
		if overlapTokens >= targetTokens {
			overlapTokens = targetTokens / 10
		}
	}
	return &Chunker{targetTokens: targetTokens, overlapTokens: overlapTokens}
}

type span struct {
	start int
	end   int
}

// Chunk splits the document text into section-aware overlapping segments.
// Trailing partial text is always emitted; chunks never cross policies.
func (c *Chunker) Chunk(doc models.PolicyDocument) []models.Chunk {
	var chunks []models.Chunk
	var sectionTokens []span
	var headingStack []string
	seq := 0

	flush := func() {
		path := "General"
		if len(headingStack) > 0 {
			path = strings.Join(headingStack, " > ")
		}
		chunks = append(chunks, c.emit(doc, sectionTokens, path, &seq)...)
		sectionTokens = nil
	}

	offset := 0
	text := doc.Text
	for offset <= len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[offset:]
			lineEnd = len(text)
		} else {
			line = text[offset : offset+lineEnd]
			lineEnd = offset + lineEnd
		}

		if title, level, ok := headingOf(line); ok {
			flush()
			if level > len(headingStack)+1 {
				level = len(headingStack) + 1
			}
			headingStack = append(headingStack[:level-1], title)
		} else {
			sectionTokens = append(sectionTokens, tokenize(line, offset)...)
		}

		if lineEnd >= len(text) {
			break
		}
		offset = lineEnd + 1
	}
	flush()

	return chunks
}

// emit windows the section's tokens into overlapping chunks.
func (c *Chunker) emit(doc models.PolicyDocument, tokens []span, path string, seq *int) []models.Chunk {
	if len(tokens) == 0 {
		return nil
	}
	step := c.targetTokens - c.overlapTokens
	var out []models.Chunk
	for i := 0; i < len(tokens); i += step {
		end := i + c.targetTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		start := tokens[i].start
		stop := tokens[end-1].end
		out = append(out, models.Chunk{
			ID:          fmt.Sprintf("%s:%04d", doc.ID, *seq),
			PolicyID:    doc.ID,
			PolicyName:  doc.Name,
			Page:        doc.PageAt(start),
			SectionPath: path,
			StartChar:   start,
			EndChar:     stop,
			Text:        doc.Text[start:stop],
		})
		*seq++
		if end == len(tokens) {
			break
		}
	}
	return out
}

func headingOf(line string) (title string, level int, ok bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	if m := mdHeading.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[2]), len(m[1]), true
	}
	if m := numHeading.FindStringSubmatch(trimmed); m != nil {
		if len(trimmed) <= 64 && !strings.HasSuffix(trimmed, ".") {
			return strings.TrimSpace(trimmed), strings.Count(m[1], ".") + 1, true
		}
	}
	return "", 0, false
}

// tokenize returns the spans of whitespace-delimited tokens in line,
// expressed as absolute offsets into the document text.
func tokenize(line string, base int) []span {
	var tokens []span
	inToken := false
	start := 0
	for i := 0; i < len(line); i++ {
		isSpace := line[i] == ' ' || line[i] == '\t' || line[i] == '\r'
		if !isSpace && !inToken {
			inToken = true
			start = i
		} else if isSpace && inToken {
			inToken = false
			tokens = append(tokens, span{start: base + start, end: base + i})
		}
	}
	if inToken {
		tokens = append(tokens, span{start: base + start, end: base + len(line)})
	}
	return tokens
}
