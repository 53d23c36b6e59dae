package tutorialranker

import (
	"context"
	"fmt"

	"tutorial-ranker/internal/models"
)

// SampleSource serves a fixed offline dataset of mixed-duration tutorials, for
// running the pipeline without YouTube credentials. It has no comments, so every
// video gets the neutral comment sentiment.
type SampleSource struct{}

func (SampleSource) SearchVideos(_ context.Context, query string, maxResults int) ([]models.RawVideo, error) {
	videos := SampleVideos(query)
	if maxResults > 0 && maxResults < len(videos) {
		videos = videos[:maxResults]
	}
	return videos, nil
}

func (SampleSource) CommentTexts(context.Context, string, int) ([]string, error) {
	return nil, nil
}

// SampleVideos returns five tutorials for query, three of them at least two hours long.
func SampleVideos(query string) []models.RawVideo {
	return []models.RawVideo{
		{
			ID:           "dQw4w9WgXcQ",
			Title:        fmt.Sprintf("%s Complete Course - Full Tutorial", query),
			Description:  fmt.Sprintf("Complete %s course with practical examples", query),
			PublishedAt:  "2023-01-01T00:00:00Z",
			Duration:     "PT2H30M15S",
			ViewCount:    1500000,
			LikeCount:    25000,
			CommentCount: 3500,
		},
		{
			ID:           "jNQXAC9IVRw",
			Title:        fmt.Sprintf("%s Quick Tips and Tricks", query),
			Description:  fmt.Sprintf("Quick %s tips for developers", query),
			PublishedAt:  "2023-01-02T00:00:00Z",
			Duration:     "PT15M30S",
			ViewCount:    250000,
			LikeCount:    5000,
			CommentCount: 800,
		},
		{
			ID:           "fJ9rUzIMcZQ",
			Title:        fmt.Sprintf("%s Masterclass - Advanced Guide", query),
			Description:  fmt.Sprintf("%s masterclass with real projects", query),
			PublishedAt:  "2023-01-03T00:00:00Z",
			Duration:     "PT3H45M20S",
			ViewCount:    850000,
			LikeCount:    18000,
			CommentCount: 2200,
		},
		{
			ID:           "ScMzIvxBSi4",
			Title:        fmt.Sprintf("%s Bootcamp - Learn in 30 minutes", query),
			Description:  fmt.Sprintf("Fast-paced %s bootcamp", query),
			PublishedAt:  "2023-01-04T00:00:00Z",
			Duration:     "PT30M45S",
			ViewCount:    500000,
			LikeCount:    8000,
			CommentCount: 1200,
		},
		{
			ID:           "9bZkp7q19f0",
			Title:        fmt.Sprintf("%s Full Stack Development Course", query),
			Description:  fmt.Sprintf("Full stack %s development course", query),
			PublishedAt:  "2023-01-05T00:00:00Z",
			Duration:     "PT4H15M10S",
			ViewCount:    1200000,
			LikeCount:    22000,
			CommentCount: 2800,
		},
	}
}
