package ranking

import (
	"sort"

	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
)

const (
	// MinDurationSeconds is the admission threshold for long-form tutorials (2 hours).
	MinDurationSeconds = 7200
	// FallbackSize is how many of the longest candidates are kept when nothing
	// passes the duration filter.
	FallbackSize = 3
	// WatchURLPrefix builds canonical video links from IDs.
	WatchURLPrefix = "https://www.youtube.com/watch?v="
)

// Status describes how a ranking call ended.
type Status string

const (
	StatusRanked     Status = "ranked"
	StatusFallback   Status = "fallback"    // nothing passed the filter, longest videos used
	StatusEmpty      Status = "empty"       // no candidates at all
	StatusNoFeatures Status = "no_features" // model could not be applied, results carry no score
)

type EngineOptions struct {
	MinDurationSeconds int
	FallbackSize       int
	WatchURLPrefix     string
}

// RankOutcome is the result of one Rank call.
type RankOutcome struct {
	Status     Status
	Candidates int
	Admitted   int
	Results    []*models.RankedResult
}

// Engine filters candidates by duration, scores them with a model and orders them.
type Engine struct {
	logger zerolog.Logger
	opts   EngineOptions
}

func NewEngine(logger zerolog.Logger, opts EngineOptions) *Engine {
	if opts.MinDurationSeconds <= 0 {
		opts.MinDurationSeconds = MinDurationSeconds
	}
	if opts.FallbackSize <= 0 {
		opts.FallbackSize = FallbackSize
	}
	if opts.WatchURLPrefix == "" {
		opts.WatchURLPrefix = WatchURLPrefix
	}
	return &Engine{
		logger: logger.With().Str("stage", "rank").Logger(),
		opts:   opts,
	}
}

// Rank runs filter, fallback and scoring over table. It never fails: degraded
// outcomes are reported through the returned Status.
func (e *Engine) Rank(model Predictor, table models.FeatureTable) RankOutcome {
	out := RankOutcome{Candidates: len(table)}
	if len(table) == 0 {
		e.logger.Warn().Msg("no candidate videos to rank")
		out.Status = StatusEmpty
		return out
	}

	admitted := e.filter(table)
	out.Status = StatusRanked
	if len(admitted) == 0 {
		admitted = e.fallback(table)
		out.Status = StatusFallback
		e.logger.Warn().
			Int("candidates", len(table)).
			Int("min_duration_sec", e.opts.MinDurationSeconds).
			Int("kept", len(admitted)).
			Msg("no videos passed the duration filter, falling back to the longest videos")
	} else {
		e.logger.Info().
			Int("candidates", len(table)).
			Int("admitted", len(admitted)).
			Msg("duration filter applied")
	}
	out.Admitted = len(admitted)

	scores, ok := e.predict(model, admitted)
	if !ok {
		out.Status = StatusNoFeatures
		out.Results = e.identifiersOnly(admitted)
		return out
	}

	order := make([]int, len(admitted))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out.Results = make([]*models.RankedResult, len(order))
	for rank, i := range order {
		fv := admitted[i]
		out.Results[rank] = &models.RankedResult{
			Rank:            rank + 1,
			VideoID:         fv.VideoID,
			Title:           fv.Title,
			Link:            e.opts.WatchURLPrefix + fv.VideoID,
			PredictedScore:  scores[i],
			DurationMinutes: DurationMinutes(fv.DurationSec),
		}
	}
	return out
}

func (e *Engine) filter(table models.FeatureTable) models.FeatureTable {
	var kept models.FeatureTable
	for _, fv := range table {
		if fv.DurationSec >= e.opts.MinDurationSeconds {
			kept = append(kept, fv)
		}
	}
	return kept
}

// fallback picks the longest videos from the unfiltered table and returns them
// in input order. Duration ties are broken by input order too.
func (e *Engine) fallback(table models.FeatureTable) models.FeatureTable {
	idx := make([]int, len(table))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return table[idx[a]].DurationSec > table[idx[b]].DurationSec
	})
	if len(idx) > e.opts.FallbackSize {
		idx = idx[:e.opts.FallbackSize]
	}
	sort.Ints(idx)

	longest := make(models.FeatureTable, len(idx))
	for i, j := range idx {
		longest[i] = table[j]
	}
	return longest
}

func (e *Engine) predict(model Predictor, table models.FeatureTable) ([]float64, bool) {
	if model == nil {
		e.logger.Error().Msg("no model available, returning unscored results")
		return nil, false
	}

	columns := model.FeatureNames()
	if len(columns) == 0 {
		e.logger.Error().Msg("model has no feature columns, returning unscored results")
		return nil, false
	}

	matrix, missing := FeatureMatrix(table, columns)
	if len(missing) > 0 {
		e.logger.Error().Strs("missing", missing).Msg("feature columns unavailable, returning unscored results")
		return nil, false
	}

	scores, err := model.Predict(matrix)
	if err != nil {
		e.logger.Error().Err(err).Msg("prediction failed, returning unscored results")
		return nil, false
	}
	return scores, true
}

func (e *Engine) identifiersOnly(table models.FeatureTable) []*models.RankedResult {
	results := make([]*models.RankedResult, len(table))
	for i, fv := range table {
		results[i] = &models.RankedResult{
			Rank:    i + 1,
			VideoID: fv.VideoID,
			Title:   fv.Title,
			Link:    e.opts.WatchURLPrefix + fv.VideoID,
		}
	}
	return results
}
