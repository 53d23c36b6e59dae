package tutorialranker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
	"tutorial-ranker/shared/dataset"
	"tutorial-ranker/shared/ranking"
)

// VideoSource is where candidate videos and their comments come from.
type VideoSource interface {
	SearchVideos(ctx context.Context, query string, maxResults int) ([]models.RawVideo, error)
	CommentTexts(ctx context.Context, videoID string, maxComments int) ([]string, error)
}

// FeatureBuild is the output of the feature stage.
type FeatureBuild struct {
	Table           models.FeatureTable
	CommentFailures int
}

// RunResult describes one full collect-to-rank run.
type RunResult struct {
	Report          *models.RankingReport
	Outcome         ranking.RankOutcome
	Model           *ranking.Model
	CommentFailures int
}

// Pipeline runs the batch stages, persisting each stage's table under the data
// directory so stages can also be run one at a time.
type Pipeline struct {
	source  VideoSource
	ranking config.RankingConfig
	storage config.StorageConfig
	logger  zerolog.Logger
	now     func() time.Time
}

type PipelineOption func(*Pipeline)

// WithNow fixes the pipeline clock, used for video age and report dates.
func WithNow(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

func NewPipeline(source VideoSource, cfg *config.Config, logger zerolog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source:  source,
		ranking: cfg.Ranking,
		storage: cfg.Storage,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect searches for query and stores the unfiltered candidates.
func (p *Pipeline) Collect(ctx context.Context, query string) ([]models.RawVideo, error) {
	if query == "" {
		query = p.ranking.Query
	}

	p.logger.Info().Str("query", query).Int("max_videos", p.ranking.MaxVideos).Msg("collecting candidate videos")
	videos, err := p.source.SearchVideos(ctx, query, p.ranking.MaxVideos)
	if err != nil {
		return nil, fmt.Errorf("failed to collect videos: %w", err)
	}

	path := p.storage.Path(p.storage.RawVideosFile)
	if err := dataset.WriteRawVideos(path, videos); err != nil {
		return nil, fmt.Errorf("failed to save raw videos: %w", err)
	}
	p.logger.Info().Int("videos", len(videos)).Str("path", path).Msg("raw videos saved")
	return videos, nil
}

// BuildFeatures reads the stored candidates, fetches their comments and writes
// the feature table. Comment fetch failures are counted and treated as absent.
func (p *Pipeline) BuildFeatures(ctx context.Context) (*FeatureBuild, error) {
	records, err := dataset.ReadRawVideos(p.storage.Path(p.storage.RawVideosFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load raw videos: %w", err)
	}

	build := &FeatureBuild{}
	comments := make(map[string][]string, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := p.source.CommentTexts(ctx, rec.ID, p.ranking.MaxComments)
		if err != nil {
			build.CommentFailures++
			p.logger.Warn().Err(err).Str("video_id", rec.ID).Msg("comment fetch failed, treating comments as absent")
			continue
		}
		if texts != nil {
			comments[rec.ID] = texts
		}
	}

	extractor := ranking.NewExtractor(p.logger, ranking.WithClock(p.now))
	build.Table = extractor.Extract(records, comments)

	path := p.storage.Path(p.storage.FeaturesFile)
	if err := dataset.WriteFeatures(path, build.Table); err != nil {
		return nil, fmt.Errorf("failed to save features: %w", err)
	}
	p.logger.Info().Int("videos", len(build.Table)).Str("path", path).Msg("features saved")
	return build, nil
}

// Train fits a model on the stored features and saves it. A features file that
// already carries a target column is trained on as labeled; otherwise targets are
// synthesized from the configured weights.
func (p *Pipeline) Train(ctx context.Context) (*ranking.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	featuresPath := p.storage.Path(p.storage.FeaturesFile)
	labeled, err := dataset.ReadLabeled(featuresPath)
	if errors.Is(err, dataset.ErrMissingColumn) {
		var table models.FeatureTable
		table, err = dataset.ReadFeatures(featuresPath)
		if err == nil {
			labeled = ranking.SynthesizeTargets(table, p.ranking.Weights)
		}
	} else if err == nil {
		p.logger.Info().Msg("using target column from features file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}

	if len(labeled) > 0 {
		if err := dataset.WriteLabeled(p.storage.Path(p.storage.TrainingFile), labeled); err != nil {
			return nil, fmt.Errorf("failed to save training table: %w", err)
		}
	}

	model, err := ranking.Train(labeled, p.trainOptions())
	if err != nil {
		return nil, err
	}

	modelPath := p.storage.Path(p.storage.ModelFile)
	if err := model.Save(modelPath); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	event := p.logger.Info().
		Int("training_rows", model.TrainingRows()).
		Int("features", len(model.FeatureNames())).
		Str("path", modelPath)
	if v := model.Validation(); v != nil {
		event = event.Int("holdout_rows", v.Rows).Float64("mae", v.MAE).Float64("r2", v.R2)
	}
	event.Msg("model trained")
	return model, nil
}

func (p *Pipeline) trainOptions() ranking.TrainOptions {
	opts := ranking.DefaultTrainOptions()
	if p.ranking.Trees > 0 {
		opts.Trees = p.ranking.Trees
	}
	if p.ranking.Seed != 0 {
		opts.Seed = p.ranking.Seed
	}
	opts.MaxDepth = p.ranking.MaxDepth
	return opts
}

// Rank applies the saved model to the stored features and writes the ranking. A
// missing model artifact is an error; a model that cannot be applied degrades to
// unscored results.
func (p *Pipeline) Rank(ctx context.Context) (ranking.RankOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ranking.RankOutcome{}, err
	}

	model, err := ranking.LoadModel(p.storage.Path(p.storage.ModelFile))
	if err != nil {
		return ranking.RankOutcome{}, fmt.Errorf("failed to load model: %w", err)
	}

	table, err := dataset.ReadFeatures(p.storage.Path(p.storage.FeaturesFile))
	if err != nil {
		return ranking.RankOutcome{}, fmt.Errorf("failed to load features: %w", err)
	}

	return p.rank(model, table)
}

func (p *Pipeline) rank(model ranking.Predictor, table models.FeatureTable) (ranking.RankOutcome, error) {
	engine := ranking.NewEngine(p.logger, ranking.EngineOptions{
		MinDurationSeconds: p.ranking.MinDurationMinutes * 60,
		FallbackSize:       p.ranking.FallbackSize,
	})
	outcome := engine.Rank(model, table)

	path := p.storage.Path(p.storage.RankedFile)
	if err := dataset.WriteRankedResults(path, outcome.Results); err != nil {
		return outcome, fmt.Errorf("failed to save ranked results: %w", err)
	}
	p.logger.Info().
		Str("status", string(outcome.Status)).
		Int("results", len(outcome.Results)).
		Str("path", path).
		Msg("ranking saved")
	return outcome, nil
}

// RunAll runs every stage for query. An empty candidate set skips training and
// yields an empty report rather than an error.
func (p *Pipeline) RunAll(ctx context.Context, query string) (*RunResult, error) {
	if query == "" {
		query = p.ranking.Query
	}

	videos, err := p.Collect(ctx, query)
	if err != nil {
		return nil, err
	}

	build, err := p.BuildFeatures(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunResult{CommentFailures: build.CommentFailures}
	if len(build.Table) > 0 {
		model, err := p.Train(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to train model: %w", err)
		}
		result.Model = model
	}

	// The in-memory model and table are used directly; the files written above are
	// for running stages individually.
	var predictor ranking.Predictor
	if result.Model != nil {
		predictor = result.Model
	}
	result.Outcome, err = p.rank(predictor, build.Table)
	if err != nil {
		return nil, err
	}

	result.Report = &models.RankingReport{
		RunID:      uuid.NewString(),
		Query:      query,
		Date:       p.now(),
		Status:     string(result.Outcome.Status),
		Collected:  len(videos),
		Candidates: result.Outcome.Candidates,
		Admitted:   result.Outcome.Admitted,
		Results:    result.Outcome.Results,
	}
	return result, nil
}
