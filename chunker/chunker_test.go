package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"claimaudit-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(text string, pageOffsets []int) models.PolicyDocument {
	return models.PolicyDocument{
		ID:            "pol-1",
		Name:          "Test Coverage Policy",
		Payer:         "Medicare",
		EffectiveDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:        models.PolicyStatusActive,
		Text:          text,
		PageOffsets:   pageOffsets,
	}
}

func TestChunkDeterminism(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Coverage Criteria\n\n")
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&sb, "criterion token%d applies to the service. ", i)
	}
	doc := testDocument(sb.String(), nil)

	c := New(50, 10)
	first := c.Chunk(doc)
	second := c.Chunk(doc)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "chunking the same document twice must yield identical chunks")
}

func TestChunkSpansResolveToSource(t *testing.T) {
	text := "# Policy A\n\nSome introductory text about coverage.\n\n## Criteria\n\nAHI or RDI >= 15 events per hour is required for approval.\n"
	doc := testDocument(text, nil)

	for _, chunk := range New(20, 5).Chunk(doc) {
		require.LessOrEqual(t, chunk.EndChar, len(text))
		assert.Equal(t, text[chunk.StartChar:chunk.EndChar], chunk.Text,
			"chunk span must resolve to a contiguous substring of the document")
		assert.Equal(t, doc.ID, chunk.PolicyID)
	}
}

func TestChunkOverlapKeepsTrailingText(t *testing.T) {
	words := make([]string, 0, 95)
	for i := 0; i < 95; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	doc := testDocument(strings.Join(words, " "), nil)

	chunks := New(40, 10).Chunk(doc)
	require.Len(t, chunks, 3)

	// Overlap: each successive chunk restarts 10 tokens before the
	// previous one ended.
	assert.Contains(t, chunks[1].Text, "w30")
	assert.Contains(t, chunks[0].Text, "w30")

	// Trailing partial text is never dropped.
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(last.Text, "w94"))
}

func TestChunkSectionPathsAndPages(t *testing.T) {
	text := "# Durable Medical Equipment\n\nintro words here\n\n## Coverage Criteria\n\ncoverage body text\n\n## Exclusions\n\nexclusion body text\n"
	pageTwoStart := strings.Index(text, "## Exclusions")
	doc := testDocument(text, []int{0, pageTwoStart})

	chunks := New(100, 10).Chunk(doc)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Durable Medical Equipment", chunks[0].SectionPath)
	assert.Equal(t, "Durable Medical Equipment > Coverage Criteria", chunks[1].SectionPath)
	assert.Equal(t, "Durable Medical Equipment > Exclusions", chunks[2].SectionPath)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
	assert.Equal(t, 2, chunks[2].Page, "chunk records the page containing its start offset")
}

func TestChunkEmptyDocument(t *testing.T) {
	assert.Empty(t, New(0, 0).Chunk(testDocument("", nil)))
	assert.Empty(t, New(0, 0).Chunk(testDocument("   \n\t\n", nil)))
}
