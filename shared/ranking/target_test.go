package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tutorial-ranker/internal/models"
)

func TestDefaultTargetWeights(t *testing.T) {
	w := DefaultTargetWeights()
	require.Equal(t, 0.3, w.LikeRatio)
	require.Equal(t, 0.2, w.CommentRatio)
	require.Equal(t, 0.4, w.CommentSentiment)
	require.Equal(t, 0.1, w.DescSentiment)
	require.InDelta(t, 1.0, w.LikeRatio+w.CommentRatio+w.CommentSentiment+w.DescSentiment, 1e-12)
	require.False(t, w.IsZero())
	require.True(t, TargetWeights{}.IsZero())
}

func TestTarget(t *testing.T) {
	fv := models.FeatureVector{
		LikeRatio:        0.05,
		CommentRatio:     0.01,
		CommentSentiment: 0.5,
		DescSentiment:    -0.2,
		// Columns outside the target must not influence it.
		ViewCount:   999,
		DurationSec: 9000,
	}
	expected := 0.3*0.05 + 0.2*0.01 + 0.4*0.5 + 0.1*-0.2
	require.InDelta(t, expected, Target(fv, DefaultTargetWeights()), 1e-12)
}

func TestTargetLinearInCommentSentiment(t *testing.T) {
	base := models.FeatureVector{LikeRatio: 0.1, CommentRatio: 0.02, CommentSentiment: 0.1, DescSentiment: 0.3}
	w := DefaultTargetWeights()

	for _, delta := range []float64{-1.1, -0.25, 0.05, 0.7} {
		shifted := base
		shifted.CommentSentiment += delta
		require.InDelta(t, 0.4*delta, Target(shifted, w)-Target(base, w), 1e-12)
	}
}

func TestTargetCustomWeights(t *testing.T) {
	fv := models.FeatureVector{LikeRatio: 1, CommentRatio: 1, CommentSentiment: 1, DescSentiment: 1}
	w := TargetWeights{LikeRatio: 1, CommentRatio: 2, CommentSentiment: 3, DescSentiment: 4}
	require.InDelta(t, 10.0, Target(fv, w), 1e-12)
}

func TestSynthesizeTargets(t *testing.T) {
	table := models.FeatureTable{
		{VideoID: "a", LikeRatio: 0.1, CommentSentiment: 0.2},
		{VideoID: "b", CommentRatio: 0.3, DescSentiment: 0.5},
	}
	original := append(models.FeatureTable(nil), table...)

	labeled := SynthesizeTargets(table, DefaultTargetWeights())
	require.Len(t, labeled, 2)
	require.Equal(t, "a", labeled[0].VideoID)
	require.InDelta(t, 0.3*0.1+0.4*0.2, labeled[0].Target, 1e-12)
	require.Equal(t, "b", labeled[1].VideoID)
	require.InDelta(t, 0.2*0.3+0.1*0.5, labeled[1].Target, 1e-12)
	require.Equal(t, original, table)

	require.Empty(t, SynthesizeTargets(nil, DefaultTargetWeights()))
}
