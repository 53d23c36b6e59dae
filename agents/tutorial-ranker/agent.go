package tutorialranker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutorial-ranker/agents/tutorial-ranker/youtube"
	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/ai"
	"tutorial-ranker/shared/config"
	"tutorial-ranker/shared/dataset"
	"tutorial-ranker/shared/email"
	"tutorial-ranker/shared/monitoring"
	"tutorial-ranker/shared/ranking"
	"tutorial-ranker/shared/scheduler"
	"tutorial-ranker/shared/storage"
)

const (
	// DeliveryWindow is how long a delivered video stays out of the "new" set.
	DeliveryWindow = 30 * 24 * time.Hour

	initTimeout = 30 * time.Second
)

type summarizer interface {
	Summarize(ctx context.Context, query string, results []*models.RankedResult) (map[string]string, error)
}

type reportStore interface {
	SaveReport(ctx context.Context, report *models.RankingReport) error
}

type digestSender interface {
	SendDigest(report *models.RankingReport) error
}

// RankerMetrics represents the metrics collected during a ranking run
type RankerMetrics struct {
	Query           string `json:"query"`
	Status          string `json:"status"`
	Collected       int    `json:"collected"`
	Ranked          int    `json:"ranked"`
	New             int    `json:"new"`
	Summarized      int    `json:"summarized"`
	CommentFailures int    `json:"comment_failures"`
	Stored          bool   `json:"stored"`
	EmailSent       bool   `json:"email_sent"`
}

// GetSummary implements the scheduler.Metrics interface
func (m RankerMetrics) GetSummary() string {
	summary := fmt.Sprintf("%d of %d videos ranked for %q (%s), %d new", m.Ranked, m.Collected, m.Query, m.Status, m.New)
	if m.EmailSent {
		return summary + ", digest sent"
	}
	return summary + ", no digest sent"
}

// RankerAgent implements the scheduler.Agent interface
type RankerAgent struct {
	config      *config.Config
	logger      zerolog.Logger
	monitor     *monitoring.Monitor
	source      VideoSource
	pipeline    *Pipeline
	summarizer  summarizer
	store       reportStore
	sender      digestSender
	deliveryLog *storage.DeliveryLog
	closers     []func()
	runMu       sync.Mutex // scheduled and on-demand runs share the data directory
}

// NewRankerAgent creates the agent. source may be nil, in which case Initialize
// picks the YouTube API or the offline sample depending on credentials.
func NewRankerAgent(cfg *config.Config, source VideoSource, monitor *monitoring.Monitor, logger zerolog.Logger) *RankerAgent {
	return &RankerAgent{
		config:  cfg,
		source:  source,
		monitor: monitor,
		logger:  logger,
	}
}

func (a *RankerAgent) Name() string {
	return "Tutorial Ranker"
}

// Initialize creates the clients the configuration enables. It is safe to call
// more than once.
func (a *RankerAgent) Initialize() error {
	a.logger.Info().Msgf("initializing %s", a.Name())

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	if a.source == nil {
		source, err := NewVideoSource(ctx, a.config, a.logger)
		if err != nil {
			return err
		}
		a.source = source
	}

	if a.pipeline == nil {
		a.pipeline = NewPipeline(a.source, a.config, a.logger)
	}

	if a.summarizer == nil && a.config.AI.Enabled() {
		s, err := ai.NewSummarizer(ctx, &a.config.AI, a.logger.With().Str("component", "ai").Logger())
		if err != nil {
			return fmt.Errorf("failed to create summarizer: %w", err)
		}
		a.summarizer = s
		a.logger.Info().Str("model", a.config.AI.Model).Int("top", a.config.AI.SummarizeTop).Msg("summarizer initialized")
	}

	if a.store == nil && a.config.Storage.DatabaseURL != "" {
		w, err := dataset.NewPostgresWriter(ctx, a.config.Storage.DatabaseURL, a.logger.With().Str("component", "postgres").Logger())
		if err != nil {
			return fmt.Errorf("failed to connect report store: %w", err)
		}
		if err := w.CreateTables(ctx); err != nil {
			w.Close()
			return fmt.Errorf("failed to prepare report store: %w", err)
		}
		a.store = w
		a.closers = append(a.closers, w.Close)
	}

	if a.sender == nil && a.config.Email.Enabled() {
		a.sender = email.NewSender(&a.config.Email)
		a.logger.Info().Str("to", a.config.Email.ToEmail).Msg("email sender initialized")
	}

	if a.deliveryLog == nil {
		dl, err := storage.NewDeliveryLog(a.config.Storage.Path(a.config.Storage.DeliveryLog), DeliveryWindow)
		if err != nil {
			return fmt.Errorf("failed to create delivery log: %w", err)
		}
		a.deliveryLog = dl
		a.logger.Info().Int("delivered", dl.Count()).Msg("delivery log loaded")
	}

	return nil
}

// Close releases connections opened by Initialize.
func (a *RankerAgent) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}

// NewVideoSource returns the YouTube client when credentials are configured and
// the offline sample otherwise.
func NewVideoSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (VideoSource, error) {
	if !cfg.YouTube.HasCredentials() {
		logger.Warn().Msg("no YouTube credentials configured, using the offline sample dataset")
		return SampleSource{}, nil
	}
	client, err := youtube.NewClient(ctx, &cfg.YouTube, logger.With().Str("component", "youtube").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return client, nil
}

func (a *RankerAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	_, err := a.Run(ctx, "", events)
	return err
}

// Run ranks tutorials for a free-form topic request, or the configured query
// when request is empty, then delivers the report. Only collection and ranking
// failures abort the run.
func (a *RankerAgent) Run(ctx context.Context, request string, events *scheduler.AgentEvents) (*models.RankingReport, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	startTime := time.Now()

	query := a.config.Ranking.Query
	if request != "" {
		query = ExtractMainTopic(request)
	}

	result, err := a.pipeline.RunAll(ctx, query)
	if err != nil {
		err = fmt.Errorf("failed to rank tutorials: %w", err)
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return nil, err
	}

	report := result.Report
	metrics := RankerMetrics{
		Query:           report.Query,
		Status:          report.Status,
		Collected:       report.Collected,
		Ranked:          len(report.Results),
		CommentFailures: result.CommentFailures,
	}

	partial := func(err error) {
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(err, time.Since(startTime))
		}
	}

	if result.CommentFailures > 0 {
		partial(fmt.Errorf("comments unavailable for %d videos", result.CommentFailures))
	}
	if report.Status == string(ranking.StatusNoFeatures) {
		partial(fmt.Errorf("model could not be applied, %d results are unscored", len(report.Results)))
	}

	for _, r := range report.Results {
		r.New = !a.deliveryLog.WasDelivered(r.VideoID)
		if r.New {
			metrics.New++
		}
	}

	if a.summarizer != nil && len(report.Results) > 0 {
		n, err := a.summarize(ctx, report)
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to generate summaries")
			partial(err)
		}
		metrics.Summarized = n
	}

	if a.store != nil {
		if err := a.store.SaveReport(ctx, report); err != nil {
			a.logger.Warn().Err(err).Msg("failed to store report")
			partial(fmt.Errorf("failed to store report: %w", err))
		} else {
			metrics.Stored = true
		}
	}

	if a.sender != nil && len(report.Results) > 0 {
		if err := a.sender.SendDigest(report); err != nil {
			a.logger.Warn().Err(err).Msg("failed to send digest")
			partial(fmt.Errorf("failed to send digest: %w", err))
		} else {
			metrics.EmailSent = true
			if err := a.deliveryLog.MarkDelivered(resultIDs(report.Results)); err != nil {
				a.logger.Warn().Err(err).Msg("failed to update delivery log")
				partial(fmt.Errorf("failed to update delivery log: %w", err))
			}
		}
	}

	if a.monitor != nil {
		a.monitor.SetLastReport(report)
	}

	duration := time.Since(startTime)
	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, duration)
	}

	a.logger.Info().
		Str("run_id", report.RunID).
		Str("status", report.Status).
		Int("ranked", metrics.Ranked).
		Int("new", metrics.New).
		Bool("email_sent", metrics.EmailSent).
		Dur("duration", duration).
		Msg("ranking run complete")

	return report, nil
}

func (a *RankerAgent) summarize(ctx context.Context, report *models.RankingReport) (int, error) {
	top := report.Results
	if n := a.config.AI.SummarizeTop; n > 0 && n < len(top) {
		top = top[:n]
	}

	summaries, err := a.summarizer.Summarize(ctx, report.Query, top)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range top {
		if s, ok := summaries[r.VideoID]; ok {
			r.Summary = s
			count++
		}
	}
	return count, nil
}

func resultIDs(results []*models.RankedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.VideoID
	}
	return ids
}
