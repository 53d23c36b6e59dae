package ranking

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
)

const (
	// NeutralCommentSentiment stands in for comment sentiment when a video has no
	// usable comments, so missing data does not drag its score down.
	NeutralCommentSentiment = 0.1

	// MinCommentLength is the trimmed rune count a comment must exceed to be scored.
	MinCommentLength = 10
)

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Extractor turns raw video records into feature vectors.
type Extractor struct {
	logger zerolog.Logger
	now    func() time.Time
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithClock fixes the reference time used to compute video age.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

func NewExtractor(logger zerolog.Logger, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		logger: logger.With().Str("stage", "features").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds one feature vector per record, preserving input order. comments maps
// video IDs to comment texts; videos without an entry get NeutralCommentSentiment.
func (e *Extractor) Extract(records []models.RawVideo, comments map[string][]string) models.FeatureTable {
	now := e.now()
	table := make(models.FeatureTable, 0, len(records))
	for _, rec := range records {
		table = append(table, e.extractOne(rec, comments[rec.ID], now))
	}

	if len(table) > 0 {
		e.logDurationSummary(table)
	}
	return table
}

func (e *Extractor) extractOne(rec models.RawVideo, comments []string, now time.Time) models.FeatureVector {
	views := nonNegative(rec.ViewCount)
	likes := nonNegative(rec.LikeCount)
	commentCount := nonNegative(rec.CommentCount)

	return models.FeatureVector{
		VideoID:          rec.ID,
		Title:            rec.Title,
		Duration:         rec.Duration,
		ViewCount:        views,
		LikeCount:        likes,
		CommentCount:     commentCount,
		LikeRatio:        float64(likes) / float64(views+1),
		CommentRatio:     float64(commentCount) / float64(views+1),
		TitleLen:         utf8.RuneCountInString(NormalizeText(rec.Title)),
		DescLen:          utf8.RuneCountInString(NormalizeText(rec.Description)),
		DescSentiment:    Sentiment(rec.Description),
		CommentSentiment: e.commentSentiment(rec.ID, comments),
		DurationSec:      ParseDuration(rec.Duration),
		AgeDays:          ageDays(rec.PublishedAt, now),
	}
}

// commentSentiment averages the polarity of meaningful comments.
func (e *Extractor) commentSentiment(videoID string, comments []string) float64 {
	var sum float64
	var n int
	for _, c := range comments {
		c = strings.TrimSpace(c)
		if utf8.RuneCountInString(c) <= MinCommentLength {
			continue
		}
		sum += Sentiment(c)
		n++
	}

	if n == 0 {
		e.logger.Warn().
			Str("video_id", videoID).
			Int("comments", len(comments)).
			Float64("default", NeutralCommentSentiment).
			Msg("no meaningful comments, using neutral-positive sentiment")
		return NeutralCommentSentiment
	}
	return sum / float64(n)
}

func (e *Extractor) logDurationSummary(table models.FeatureTable) {
	var long, longest int
	var total float64
	for _, fv := range table {
		if fv.DurationSec >= MinDurationSeconds {
			long++
		}
		if fv.DurationSec > longest {
			longest = fv.DurationSec
		}
		total += DurationMinutes(fv.DurationSec)
	}

	e.logger.Info().
		Int("videos", len(table)).
		Int("at_least_2h", long).
		Float64("avg_minutes", total/float64(len(table))).
		Float64("longest_minutes", DurationMinutes(longest)).
		Msg("feature extraction complete")
}

// ageDays returns whole days since publication; unknown or future dates give 0.
func ageDays(publishedAt string, now time.Time) int {
	publishedAt = strings.TrimSpace(publishedAt)
	for _, layout := range publishedLayouts {
		t, err := time.Parse(layout, publishedAt)
		if err != nil {
			continue
		}
		days := int(now.Sub(t).Hours() / 24)
		if days < 0 {
			return 0
		}
		return days
	}
	return 0
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
