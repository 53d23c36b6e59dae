package models

import "time"

// RawVideo is one candidate as returned by the YouTube Data API.
type RawVideo struct {
	ID           string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PublishedAt  string `json:"published_at"` // ISO-8601, kept as fetched
	Duration     string `json:"duration"`     // ISO-8601 duration, e.g. PT2H30M15S
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
}

// Feature column names, in the order the model consumes them.
const (
	ColViewCount        = "view_count"
	ColLikeCount        = "like_count"
	ColCommentCount     = "comment_count"
	ColLikeRatio        = "like_ratio"
	ColCommentRatio     = "comment_ratio"
	ColTitleLen         = "title_len"
	ColDescLen          = "desc_len"
	ColDescSentiment    = "desc_sentiment"
	ColCommentSentiment = "comment_sentiment"
	ColDurationSec      = "duration_sec"
	ColAgeDays          = "age_days"
)

// FeatureColumns lists every numeric feature a FeatureVector carries.
var FeatureColumns = []string{
	ColViewCount,
	ColLikeCount,
	ColCommentCount,
	ColLikeRatio,
	ColCommentRatio,
	ColTitleLen,
	ColDescLen,
	ColDescSentiment,
	ColCommentSentiment,
	ColDurationSec,
	ColAgeDays,
}

// FeatureVector is the numeric view of a RawVideo plus the fields needed for display.
type FeatureVector struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Duration string `json:"duration"`

	ViewCount        int64   `json:"view_count"`
	LikeCount        int64   `json:"like_count"`
	CommentCount     int64   `json:"comment_count"`
	LikeRatio        float64 `json:"like_ratio"`
	CommentRatio     float64 `json:"comment_ratio"`
	TitleLen         int     `json:"title_len"`
	DescLen          int     `json:"desc_len"`
	DescSentiment    float64 `json:"desc_sentiment"`
	CommentSentiment float64 `json:"comment_sentiment"`
	DurationSec      int     `json:"duration_sec"`
	AgeDays          int     `json:"age_days"`
}

// Value returns the named feature column.
func (f FeatureVector) Value(column string) (float64, bool) {
	switch column {
	case ColViewCount:
		return float64(f.ViewCount), true
	case ColLikeCount:
		return float64(f.LikeCount), true
	case ColCommentCount:
		return float64(f.CommentCount), true
	case ColLikeRatio:
		return f.LikeRatio, true
	case ColCommentRatio:
		return f.CommentRatio, true
	case ColTitleLen:
		return float64(f.TitleLen), true
	case ColDescLen:
		return float64(f.DescLen), true
	case ColDescSentiment:
		return f.DescSentiment, true
	case ColCommentSentiment:
		return f.CommentSentiment, true
	case ColDurationSec:
		return float64(f.DurationSec), true
	case ColAgeDays:
		return float64(f.AgeDays), true
	}
	return 0, false
}

// FeatureTable is an ordered set of feature vectors, one per video.
type FeatureTable []FeatureVector

// LabeledVector pairs a feature vector with its synthesized training target.
type LabeledVector struct {
	FeatureVector
	Target float64 `json:"target_score"`
}

type RankedResult struct {
	Rank            int     `json:"rank"`
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title"`
	Link            string  `json:"video_link"`
	PredictedScore  float64 `json:"predicted_score"`
	DurationMinutes float64 `json:"duration_min"`
	Summary         string  `json:"summary,omitempty"`
	New             bool    `json:"new"`
}

// RankingReport is the outcome of one full pipeline run.
type RankingReport struct {
	RunID      string          `json:"run_id"`
	Query      string          `json:"query"`
	Date       time.Time       `json:"date"`
	Status     string          `json:"status"`
	Collected  int             `json:"collected"`
	Candidates int             `json:"candidates"`
	Admitted   int             `json:"admitted"`
	Results    []*RankedResult `json:"results"`
}
