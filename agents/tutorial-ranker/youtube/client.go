package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
)

const (
	// QuerySuffix biases search results toward long-form teaching content.
	QuerySuffix = " tutorial course"
	// MaxSearchResults is the API page cap for search.list and videos.list.
	MaxSearchResults = 50
	// DefaultMaxComments is how many top-level comment threads are read per video.
	DefaultMaxComments = 15
)

// ErrNoCredentials is returned when neither an API key nor OAuth client credentials
// are configured.
var ErrNoCredentials = errors.New("no YouTube credentials configured (set YOUTUBE_API_KEY or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET)")

// Client wraps the YouTube Data API calls used to gather ranking candidates.
type Client struct {
	service *youtube.Service
	logger  zerolog.Logger
}

// NewClient authenticates with an API key when one is configured and otherwise with
// the OAuth device flow. Extra options are passed to the service constructor.
func NewClient(ctx context.Context, cfg *config.YouTubeConfig, logger zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	var clientOpts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		oauthConfig := newOAuthConfig(cfg.ClientID, cfg.ClientSecret)
		token, err := getToken(ctx, oauthConfig, cfg.TokenFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to get OAuth token: %w", err)
		}
		tokenSource := &tokenSaver{
			config:    oauthConfig,
			token:     token,
			tokenFile: cfg.TokenFile,
			logger:    logger,
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	default:
		return nil, ErrNoCredentials
	}

	service, err := youtube.NewService(ctx, append(clientOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return newClient(service, logger), nil
}

func newClient(service *youtube.Service, logger zerolog.Logger) *Client {
	return &Client{service: service, logger: logger}
}

// SearchVideos returns up to maxResults videos for query in relevance order, with
// snippet, duration and statistics filled in. No duration filtering happens here.
func (c *Client) SearchVideos(ctx context.Context, query string, maxResults int) ([]models.RawVideo, error) {
	if maxResults <= 0 || maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}

	searchResponse, err := c.service.Search.List([]string{"snippet"}).
		Q(query + QuerySuffix).
		Type("video").
		Order("relevance").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	var ids []string
	for _, item := range searchResponse.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		c.logger.Warn().Str("query", query).Msg("search returned no videos")
		return []models.RawVideo{}, nil
	}

	videos, err := c.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("query", query).
		Int("found", len(ids)).
		Int("collected", len(videos)).
		Msg("collected candidate videos")
	return videos, nil
}

// videoDetails fetches snippet, contentDetails and statistics in batches, keeping
// the order of ids.
func (c *Client) videoDetails(ctx context.Context, ids []string) ([]models.RawVideo, error) {
	byID := make(map[string]models.RawVideo, len(ids))
	var failed int

	for i := 0; i < len(ids); i += MaxSearchResults {
		end := min(i+MaxSearchResults, len(ids))

		resp, err := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(strings.Join(ids[i:end], ",")).
			Context(ctx).
			Do()
		if err != nil {
			c.logger.Warn().Err(err).Int("batch_size", end-i).Msg("failed to get video details for batch")
			failed++
			continue
		}

		for _, item := range resp.Items {
			byID[item.Id] = toRawVideo(item)
		}
	}

	if failed > 0 && len(byID) == 0 {
		return nil, fmt.Errorf("failed to get details for any of %d videos", len(ids))
	}

	videos := make([]models.RawVideo, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
			delete(byID, id)
		}
	}
	return videos, nil
}

func toRawVideo(item *youtube.Video) models.RawVideo {
	v := models.RawVideo{ID: item.Id}
	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.Description = item.Snippet.Description
		v.PublishedAt = item.Snippet.PublishedAt
	}
	if item.ContentDetails != nil {
		v.Duration = item.ContentDetails.Duration
	}
	if item.Statistics != nil {
		v.ViewCount = int64(item.Statistics.ViewCount)
		v.LikeCount = int64(item.Statistics.LikeCount)
		v.CommentCount = int64(item.Statistics.CommentCount)
	}
	return v
}

// CommentTexts returns the plain text of up to maxComments top-level comments,
// most relevant first.
func (c *Client) CommentTexts(ctx context.Context, videoID string, maxComments int) ([]string, error) {
	if maxComments <= 0 {
		maxComments = DefaultMaxComments
	}

	resp, err := c.service.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		MaxResults(int64(maxComments)).
		Order("relevance").
		TextFormat("plainText").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for %s: %w", videoID, err)
	}

	texts := make([]string, 0, len(resp.Items))
	for _, thread := range resp.Items {
		if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil || thread.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		s := thread.Snippet.TopLevelComment.Snippet
		text := s.TextOriginal
		if text == "" {
			text = s.TextDisplay
		}
		texts = append(texts, text)
	}
	return texts, nil
}
