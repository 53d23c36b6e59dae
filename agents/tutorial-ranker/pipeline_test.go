package tutorialranker

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
	"tutorial-ranker/shared/dataset"
	"tutorial-ranker/shared/ranking"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

var sampleLongIDs = []string{"dQw4w9WgXcQ", "fJ9rUzIMcZQ", "9bZkp7q19f0"}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Ranking: config.RankingConfig{
			Query:              "golang",
			MaxVideos:          50,
			MaxComments:        15,
			MinDurationMinutes: 120,
			FallbackSize:       3,
			Trees:              25,
			Seed:               ranking.DefaultSeed,
			Weights:            ranking.DefaultTargetWeights(),
		},
		Storage: config.StorageConfig{
			DataDir:       t.TempDir(),
			RawVideosFile: dataset.RawVideosFile,
			FeaturesFile:  dataset.FeaturesFile,
			TrainingFile:  dataset.TrainingFile,
			RankedFile:    dataset.RankedFile,
			ModelFile:     dataset.ModelFile,
			DeliveryLog:   "delivered_videos.json",
		},
	}
}

func newTestPipeline(t *testing.T, source VideoSource) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	return NewPipeline(source, cfg, zerolog.New(io.Discard), WithNow(func() time.Time { return testNow })), cfg
}

// stubSource serves fixed videos and can fail either call.
type stubSource struct {
	videos     []models.RawVideo
	searchErr  error
	commentErr error
	comments   map[string][]string
}

func (s *stubSource) SearchVideos(context.Context, string, int) ([]models.RawVideo, error) {
	return s.videos, s.searchErr
}

func (s *stubSource) CommentTexts(_ context.Context, id string, _ int) ([]string, error) {
	if s.commentErr != nil {
		return nil, s.commentErr
	}
	return s.comments[id], nil
}

func resultVideoIDs(results []*models.RankedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.VideoID
	}
	return ids
}

func requireRankedWellFormed(t *testing.T, results []*models.RankedResult) {
	t.Helper()
	for i, r := range results {
		require.Equal(t, i+1, r.Rank)
		require.Equal(t, ranking.WatchURLPrefix+r.VideoID, r.Link)
		require.GreaterOrEqual(t, r.DurationMinutes, 120.0)
		if i > 0 {
			require.GreaterOrEqual(t, results[i-1].PredictedScore, r.PredictedScore)
		}
	}
}

func TestRunAllWithSample(t *testing.T) {
	p, cfg := newTestPipeline(t, SampleSource{})

	result, err := p.RunAll(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, result.Model)
	require.Zero(t, result.CommentFailures)

	report := result.Report
	require.NotEmpty(t, report.RunID)
	require.Equal(t, "golang", report.Query)
	require.Equal(t, testNow, report.Date)
	require.Equal(t, string(ranking.StatusRanked), report.Status)
	require.Equal(t, 5, report.Collected)
	require.Equal(t, 5, report.Candidates)
	require.Equal(t, 3, report.Admitted)
	require.ElementsMatch(t, sampleLongIDs, resultVideoIDs(report.Results))
	requireRankedWellFormed(t, report.Results)

	for _, name := range []string{
		cfg.Storage.RawVideosFile,
		cfg.Storage.FeaturesFile,
		cfg.Storage.TrainingFile,
		cfg.Storage.ModelFile,
		cfg.Storage.RankedFile,
	} {
		_, err := os.Stat(cfg.Storage.Path(name))
		require.NoError(t, err, name)
	}
}

func TestStagesIndividually(t *testing.T) {
	p, cfg := newTestPipeline(t, SampleSource{})
	ctx := context.Background()

	videos, err := p.Collect(ctx, "rust")
	require.NoError(t, err)
	require.Len(t, videos, 5)

	stored, err := dataset.ReadRawVideos(cfg.Storage.Path(cfg.Storage.RawVideosFile))
	require.NoError(t, err)
	require.Equal(t, videos, stored)

	build, err := p.BuildFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, build.Table, 5)
	for _, fv := range build.Table {
		require.Equal(t, ranking.NeutralCommentSentiment, fv.CommentSentiment)
	}

	model, err := p.Train(ctx)
	require.NoError(t, err)
	require.Equal(t, models.FeatureColumns, model.FeatureNames())
	require.NotNil(t, model.Validation())

	outcome, err := p.Rank(ctx)
	require.NoError(t, err)
	require.Equal(t, ranking.StatusRanked, outcome.Status)
	require.ElementsMatch(t, sampleLongIDs, resultVideoIDs(outcome.Results))
	requireRankedWellFormed(t, outcome.Results)
}

func TestTrainUsesLabeledFeatures(t *testing.T) {
	p, cfg := newTestPipeline(t, SampleSource{})
	ctx := context.Background()

	_, err := p.Collect(ctx, "")
	require.NoError(t, err)
	build, err := p.BuildFeatures(ctx)
	require.NoError(t, err)

	labeled := make([]models.LabeledVector, len(build.Table))
	for i, fv := range build.Table {
		labeled[i] = models.LabeledVector{FeatureVector: fv, Target: float64(i)}
	}
	require.NoError(t, dataset.WriteLabeled(cfg.Storage.Path(cfg.Storage.FeaturesFile), labeled))

	_, err = p.Train(ctx)
	require.NoError(t, err)

	training, err := dataset.ReadLabeled(cfg.Storage.Path(cfg.Storage.TrainingFile))
	require.NoError(t, err)
	require.Len(t, training, len(labeled))
	for i, row := range training {
		require.Equal(t, float64(i), row.Target)
	}
}

func TestRankWithoutModel(t *testing.T) {
	p, _ := newTestPipeline(t, SampleSource{})
	ctx := context.Background()

	_, err := p.Collect(ctx, "")
	require.NoError(t, err)
	_, err = p.BuildFeatures(ctx)
	require.NoError(t, err)

	_, err = p.Rank(ctx)
	require.ErrorContains(t, err, "failed to load model")
}

func TestRunAllEmpty(t *testing.T) {
	p, _ := newTestPipeline(t, &stubSource{})

	result, err := p.RunAll(context.Background(), "nothing")
	require.NoError(t, err)
	require.Nil(t, result.Model)
	require.Equal(t, string(ranking.StatusEmpty), result.Report.Status)
	require.Empty(t, result.Report.Results)
	require.Zero(t, result.Report.Collected)
}

func TestRunAllFallback(t *testing.T) {
	source := &stubSource{videos: []models.RawVideo{
		{ID: "short1", Title: "Go in 10 minutes", PublishedAt: "2024-01-01T00:00:00Z", Duration: "PT10M", ViewCount: 100, LikeCount: 10},
		{ID: "short2", Title: "Go in an hour", PublishedAt: "2024-01-01T00:00:00Z", Duration: "PT1H", ViewCount: 200, LikeCount: 20},
	}}
	p, _ := newTestPipeline(t, source)

	result, err := p.RunAll(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, string(ranking.StatusFallback), result.Report.Status)
	require.Len(t, result.Report.Results, 2)
	require.Zero(t, result.Report.Admitted)
}

func TestCommentFailuresAreCounted(t *testing.T) {
	source := &stubSource{
		videos:     SampleVideos("go"),
		commentErr: errors.New("comments disabled"),
	}
	p, _ := newTestPipeline(t, source)
	ctx := context.Background()

	_, err := p.Collect(ctx, "")
	require.NoError(t, err)

	build, err := p.BuildFeatures(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, build.CommentFailures)
	for _, fv := range build.Table {
		require.Equal(t, ranking.NeutralCommentSentiment, fv.CommentSentiment)
	}
}

func TestCommentsFeedSentiment(t *testing.T) {
	videos := SampleVideos("go")
	source := &stubSource{
		videos: videos,
		comments: map[string][]string{
			videos[0].ID: {"This is an excellent and very helpful course, thank you!"},
		},
	}
	p, _ := newTestPipeline(t, source)
	ctx := context.Background()

	_, err := p.Collect(ctx, "")
	require.NoError(t, err)
	build, err := p.BuildFeatures(ctx)
	require.NoError(t, err)

	require.Greater(t, build.Table[0].CommentSentiment, ranking.NeutralCommentSentiment)
	require.Equal(t, ranking.NeutralCommentSentiment, build.Table[1].CommentSentiment)
}

func TestCollectError(t *testing.T) {
	p, _ := newTestPipeline(t, &stubSource{searchErr: errors.New("quota exceeded")})

	_, err := p.RunAll(context.Background(), "")
	require.ErrorContains(t, err, "quota exceeded")
}
