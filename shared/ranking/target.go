package ranking

import "tutorial-ranker/internal/models"

// Default weights of the synthesized quality target. Audience sentiment in the
// comments is the primary signal; they sum to 1.
const (
	WeightLikeRatio        = 0.3
	WeightCommentRatio     = 0.2
	WeightCommentSentiment = 0.4
	WeightDescSentiment    = 0.1
)

// TargetWeights are the coefficients of the linear quality target.
type TargetWeights struct {
	LikeRatio        float64 `yaml:"like_ratio" json:"like_ratio"`
	CommentRatio     float64 `yaml:"comment_ratio" json:"comment_ratio"`
	CommentSentiment float64 `yaml:"comment_sentiment" json:"comment_sentiment"`
	DescSentiment    float64 `yaml:"desc_sentiment" json:"desc_sentiment"`
}

func DefaultTargetWeights() TargetWeights {
	return TargetWeights{
		LikeRatio:        WeightLikeRatio,
		CommentRatio:     WeightCommentRatio,
		CommentSentiment: WeightCommentSentiment,
		DescSentiment:    WeightDescSentiment,
	}
}

// IsZero reports whether no weight has been set.
func (w TargetWeights) IsZero() bool {
	return w == TargetWeights{}
}

// Target computes the heuristic quality label the model learns to reproduce.
func Target(fv models.FeatureVector, w TargetWeights) float64 {
	return w.LikeRatio*fv.LikeRatio +
		w.CommentRatio*fv.CommentRatio +
		w.CommentSentiment*fv.CommentSentiment +
		w.DescSentiment*fv.DescSentiment
}

// SynthesizeTargets labels every row of table. The input table is not modified.
func SynthesizeTargets(table models.FeatureTable, w TargetWeights) []models.LabeledVector {
	labeled := make([]models.LabeledVector, len(table))
	for i, fv := range table {
		labeled[i] = models.LabeledVector{
			FeatureVector: fv,
			Target:        Target(fv, w),
		}
	}
	return labeled
}
