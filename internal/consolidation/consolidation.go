// Package consolidation implements the dream-inspired maintenance pipeline:
// decay scoring, clustering, association discovery, compression, controlled
// forgetting, and bulk quality evaluation, run sequentially over a time
// horizon on demand or on schedule.
package consolidation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/config"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/logging"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/quality"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/relationship"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
)

// Horizon bounds the time window consolidation operates over. Either bound
// zero means unbounded on that side.
type Horizon struct {
	Start time.Time
	End   time.Time
}

func (h Horizon) startSeconds() float64 {
	if h.Start.IsZero() {
		return 0
	}
	return float64(h.Start.Unix())
}

func (h Horizon) endSeconds() float64 {
	if h.End.IsZero() {
		return 0
	}
	return float64(h.End.Unix())
}

// PhaseResult captures one phase's outcome for the run report.
type PhaseResult struct {
	Name      string
	Ran       bool
	Skipped   bool
	SkipNote  string
	Err       error
	StartedAt time.Time
	Duration  time.Duration

	// Counters, populated by whichever phase ran; zero when unused.
	MemoriesScored int
	Clusters       int
	NoisePoints    int
	EdgesAdded     int
	Summaries      int
	Archived       int
	QualityScored  int
}

// Report is consolidate()'s return value: a structured per-phase account of
// one run.
type Report struct {
	RunID       string
	Horizon     Horizon
	StartedAt   time.Time
	Duration    time.Duration
	Phases      []PhaseResult
	FailedPhase string // empty on a clean run
}

// Pipeline owns the storage backend and supporting services consolidation
// phases read and write through. It never knows which concrete Backend
// implementation is active.
type Pipeline struct {
	store   storage.Backend
	scorer  quality.Scorer
	graph   *relationship.Graph
	cfg     config.ConsolidationConfig
	log     logging.Logger
	nowFunc func() time.Time
}

// New builds a consolidation Pipeline. graph may be shared across runs to
// accumulate associations over time; scorer may be nil to skip phase 6
// entirely regardless of configuration.
func New(store storage.Backend, scorer quality.Scorer, graph *relationship.Graph, cfg config.ConsolidationConfig, log logging.Logger) *Pipeline {
	if graph == nil {
		graph = relationship.NewGraph()
	}
	return &Pipeline{
		store:   store,
		scorer:  scorer,
		graph:   graph,
		cfg:     cfg,
		log:     log.WithComponent("consolidation"),
		nowFunc: time.Now,
	}
}

// Run executes all six phases in order over horizon, pausing the backend's
// sync before starting and resuming it unconditionally when done, mirroring
// a try/finally around the whole run. A failing phase aborts the remaining
// phases but never prevents the resume.
func (p *Pipeline) Run(ctx context.Context, horizon Horizon) (Report, error) {
	runID := uuid.NewString()
	started := p.nowFunc()
	report := Report{RunID: runID, Horizon: horizon, StartedAt: started}

	if err := p.store.PauseSync(ctx); err != nil {
		p.log.Warn("pause_sync failed, continuing anyway", "run_id", runID, "error", err.Error())
	}
	defer func() {
		if err := p.store.ResumeSync(ctx); err != nil {
			p.log.Error("resume_sync failed", "run_id", runID, "error", err.Error())
		}
	}()

	p.log.Info("consolidation run starting", "run_id", runID)

	var clusters clusterOutput
	record := func(name string, start time.Time, result PhaseResult, err error) bool {
		result.Name = name
		result.StartedAt = start
		result.Duration = p.nowFunc().Sub(start)
		if err != nil {
			result.Err = err
		}
		report.Phases = append(report.Phases, result)
		if err != nil {
			p.log.Error("consolidation phase failed", "run_id", runID, "phase", name, "error", err.Error())
			report.FailedPhase = name
			return false
		}
		return true
	}

	t := p.nowFunc()
	result, err := p.runDecay(ctx, runID, horizon)
	if !record("decay", t, result, err) {
		report.Duration = p.nowFunc().Sub(started)
		return report, nil
	}

	t = p.nowFunc()
	clusters, result, err = p.runCluster(ctx, runID, horizon)
	if !record("cluster", t, result, err) {
		report.Duration = p.nowFunc().Sub(started)
		return report, nil
	}

	t = p.nowFunc()
	result, err = p.runAssociation(ctx, runID, clusters)
	if !record("association", t, result, err) {
		report.Duration = p.nowFunc().Sub(started)
		return report, nil
	}

	t = p.nowFunc()
	result, err = p.runCompression(ctx, runID, clusters)
	if !record("compression", t, result, err) {
		report.Duration = p.nowFunc().Sub(started)
		return report, nil
	}

	t = p.nowFunc()
	result, err = p.runForgetting(ctx, runID, horizon)
	if !record("forgetting", t, result, err) {
		report.Duration = p.nowFunc().Sub(started)
		return report, nil
	}

	t = p.nowFunc()
	result, err = p.runQuality(ctx, runID)
	record("quality", t, result, err)

	report.Duration = p.nowFunc().Sub(started)
	p.log.Info("consolidation run finished", "run_id", runID, "failed_phase", report.FailedPhase)
	return report, nil
}
