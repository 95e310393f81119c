package index

import (
	"context"
	"testing"

	"claimaudit-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id, policyID, text string) models.Chunk {
	return models.Chunk{ID: id, PolicyID: policyID, Text: text}
}

func TestSearchRanksByHybridScore(t *testing.T) {
	idx := NewMemoryIndex(0.7, 0.3)
	err := idx.Replace(context.Background(), "pol-1",
		[]models.Chunk{
			chunk("pol-1:0000", "pol-1", "coverage criteria for CPAP therapy AHI threshold"),
			chunk("pol-1:0001", "pol-1", "billing address and contact information"),
		},
		[][]float64{
			{1, 0, 0},
			{0, 1, 0},
		})
	require.NoError(t, err)

	hits, err := idx.Search(context.Background(), models.SearchQuery{
		Vector:    []float64{1, 0, 0},
		Text:      "cpap coverage criteria",
		PolicyIDs: []string{"pol-1"},
		K:         2,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "pol-1:0000", hits[0].Chunk.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchFiltersByPolicy(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0.7, 0.3)
	require.NoError(t, idx.Replace(ctx, "pol-1",
		[]models.Chunk{chunk("pol-1:0000", "pol-1", "sleep apnea coverage")},
		[][]float64{{1, 0}}))
	require.NoError(t, idx.Replace(ctx, "pol-2",
		[]models.Chunk{chunk("pol-2:0000", "pol-2", "sleep apnea coverage")},
		[][]float64{{1, 0}}))

	hits, err := idx.Search(ctx, models.SearchQuery{
		Vector:    []float64{1, 0},
		Text:      "sleep apnea",
		PolicyIDs: []string{"pol-2"},
		K:         10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pol-2", hits[0].Chunk.PolicyID)

	hits, err = idx.Search(ctx, models.SearchQuery{
		Vector:    []float64{1, 0},
		Text:      "sleep apnea",
		PolicyIDs: nil,
		K:         10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits, "no allowed policies means no results, not an error")
}

func TestReplaceSwapsWholePolicy(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0.7, 0.3)
	require.NoError(t, idx.Replace(ctx, "pol-1",
		[]models.Chunk{
			chunk("pol-1:0000", "pol-1", "old version chunk one"),
			chunk("pol-1:0001", "pol-1", "old version chunk two"),
		},
		[][]float64{{1, 0}, {0, 1}}))

	require.NoError(t, idx.Replace(ctx, "pol-1",
		[]models.Chunk{chunk("pol-1:0000", "pol-1", "new version chunk")},
		[][]float64{{1, 0}}))

	hits, err := idx.Search(ctx, models.SearchQuery{
		Vector:    []float64{0.5, 0.5},
		Text:      "version chunk",
		PolicyIDs: []string{"pol-1"},
		K:         10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1, "reindex must fully replace the old partition")
	assert.Contains(t, hits[0].Chunk.Text, "new version")
}

func TestReplaceRejectsMismatchedInput(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0.7, 0.3)

	err := idx.Replace(ctx, "pol-1",
		[]models.Chunk{chunk("pol-1:0000", "pol-1", "text")},
		[][]float64{})
	assert.Error(t, err)

	err = idx.Replace(ctx, "pol-1",
		[]models.Chunk{chunk("pol-2:0000", "pol-2", "text")},
		[][]float64{{1}})
	assert.Error(t, err, "chunks are never combined across policies")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0.7, 0.3)
	require.NoError(t, idx.Replace(ctx, "pol-1",
		[]models.Chunk{chunk("pol-1:0000", "pol-1", "text")},
		[][]float64{{1}}))
	require.NoError(t, idx.Delete(ctx, "pol-1"))

	hits, err := idx.Search(ctx, models.SearchQuery{
		Vector: []float64{1}, Text: "text", PolicyIDs: []string{"pol-1"}, K: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
