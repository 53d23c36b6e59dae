package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
)

// Monitor tracks run health and keeps the most recent ranking report for the
// status API. It is safe for concurrent use.
type Monitor struct {
	mu             sync.RWMutex
	logger         zerolog.Logger
	lastRunSuccess bool
	lastRunTime    time.Time
	lastDuration   time.Duration
	lastError      string
	partialErrors  int
	lastReport     *models.RankingReport
	now            func() time.Time
}

// Status is the JSON view of the monitor.
type Status struct {
	Healthy       bool       `json:"healthy"`
	Summary       string     `json:"summary"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	LastDuration  string     `json:"last_duration,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	PartialErrors int        `json:"partial_errors"`
	LastRunID     string     `json:"last_run_id,omitempty"`
	LastQuery     string     `json:"last_query,omitempty"`
	LastStatus    string     `json:"last_status,omitempty"`
	LastResults   int        `json:"last_results"`
}

func NewMonitor(logger zerolog.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		now:    time.Now,
	}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRunSuccess = true
	m.lastRunTime = m.now()
	m.lastDuration = duration
	m.lastError = ""

	m.logger.Info().Dur("duration", duration).Msgf("run completed: %s", summary)
}

// RecordPartialFailure logs a degraded step. Health is unchanged.
func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partialErrors++
	m.logger.Warn().Err(err).Dur("duration", duration).Msg("partial failure")
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastRunSuccess = false
	m.lastRunTime = m.now()
	m.lastDuration = duration
	m.lastError = err.Error()

	m.logger.Error().Err(err).Dur("duration", duration).Msg("critical failure")
}

// SetLastReport stores report as the latest ranking.
func (m *Monitor) SetLastReport(report *models.RankingReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReport = report
}

func (m *Monitor) LastReport() *models.RankingReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isHealthy()
}

func (m *Monitor) isHealthy() bool {
	if m.lastRunTime.IsZero() {
		return true // no runs yet
	}
	return m.lastRunSuccess
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusSummary()
}

func (m *Monitor) statusSummary() string {
	if m.lastRunTime.IsZero() {
		return "No runs yet"
	}
	if m.lastRunSuccess {
		return fmt.Sprintf("Last run: %s", m.lastRunTime.Format("Jan 2 15:04"))
	}
	return fmt.Sprintf("Last run failed: %s", m.lastRunTime.Format("Jan 2 15:04"))
}

// Status returns a consistent snapshot of the monitor.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Healthy:       m.isHealthy(),
		Summary:       m.statusSummary(),
		LastError:     m.lastError,
		PartialErrors: m.partialErrors,
	}
	if !m.lastRunTime.IsZero() {
		t := m.lastRunTime
		s.LastRun = &t
		s.LastDuration = m.lastDuration.String()
	}
	if r := m.lastReport; r != nil {
		s.LastRunID = r.RunID
		s.LastQuery = r.Query
		s.LastStatus = r.Status
		s.LastResults = len(r.Results)
	}
	return s
}
