package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"NewsletterAgent/internal/domain"
)

// Observer is notified after every successful stage and gate evaluation.
type Observer func(stage string, state domain.PipelineState)

// OrchestratorDeps wires the stages and the revision gate into a run.
type OrchestratorDeps struct {
	Research   Stage
	Extraction Stage
	Curation   Stage
	Generation Stage
	Review     Stage
	Delivery   Stage
	Gate       RevisionGate
	Observer   Observer
	Logger     *slog.Logger
	Now        func() time.Time
}

// Orchestrator sequences the stages, including the bounded revision loop
// between generation, review and the gate.
type Orchestrator struct {
	stages   map[string]Stage
	gate     RevisionGate
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator constructs the pipeline driver.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := orDiscard(deps.Logger)
	gate := deps.Gate
	if gate.Logger == nil {
		gate.Logger = logger
	}
	return &Orchestrator{
		stages: map[string]Stage{
			StageResearch:   deps.Research,
			StageExtraction: deps.Extraction,
			StageCuration:   deps.Curation,
			StageGeneration: deps.Generation,
			StageReview:     deps.Review,
			StageDelivery:   deps.Delivery,
		},
		gate:     gate,
		observer: deps.Observer,
		logger:   logger,
		now:      now,
	}
}

// Run drives one full pipeline execution. On a fatal stage failure the last
// good state is returned together with a *domain.StageError.
func (o *Orchestrator) Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	logger := o.logger.With("run_id", state.RunID)
	started := o.now()
	logger.Info("pipeline started")

	var err error
	for _, name := range []string{StageResearch, StageExtraction} {
		if state, err = o.step(ctx, name, state); err != nil {
			return state, err
		}
	}

	next, err := o.step(ctx, StageCuration, state)
	switch {
	case err != nil && domain.IsCancelled(err):
		return state, err
	case err != nil:
		logger.Warn("curation failed, using fallback outline", "error", err)
		fallback := domain.FallbackOutline(o.now())
		state.NewsletterOutline = &fallback
		o.notify(StageCuration, state)
	case next.NewsletterOutline == nil:
		fallback := domain.FallbackOutline(o.now())
		next.NewsletterOutline = &fallback
		state = next
	default:
		state = next
	}

	// Generation runs at most MaxRevisionAttempts+1 times.
	maxPasses := o.gate.MaxRevisionAttempts + 1
	if maxPasses < 1 {
		maxPasses = 1
	}
	for pass := 1; ; pass++ {
		if state, err = o.step(ctx, StageGeneration, state); err != nil {
			return state, err
		}
		if state, err = o.step(ctx, StageReview, state); err != nil {
			return state, err
		}

		var decision Decision
		state, decision = o.gate.Evaluate(state)
		o.notify(StageGate, state)
		if decision.Terminal() {
			break
		}
		if pass >= maxPasses {
			return state, domain.NewStageError(StageGate, domain.KindInvalidState,
				fmt.Errorf("revision loop exceeded %d passes", maxPasses))
		}
		logger.Info("revision requested", "attempt", state.RevisionAttempts)
	}

	if state, err = o.step(ctx, StageDelivery, state); err != nil {
		return state, err
	}

	attrs := []any{"elapsed", o.now().Sub(started), "revision_attempts", state.RevisionAttempts}
	if state.DeliveryReport != nil {
		attrs = append(attrs, "sent", state.DeliveryReport.Sent)
	}
	logger.Info("pipeline finished", attrs...)
	return state, nil
}

// RunStage executes a single named stage, or the gate, against state.
func (o *Orchestrator) RunStage(ctx context.Context, name string, state domain.PipelineState) (domain.PipelineState, error) {
	if name == StageGate {
		next, _ := o.gate.Evaluate(state)
		o.notify(StageGate, next)
		return next, nil
	}
	if _, ok := o.stages[name]; !ok {
		return state, domain.NewStageError(name, domain.KindInvalidState, fmt.Errorf("unknown stage %q", name))
	}
	return o.step(ctx, name, state)
}

func (o *Orchestrator) step(ctx context.Context, name string, state domain.PipelineState) (domain.PipelineState, error) {
	if err := cancelled(ctx, name); err != nil {
		return state, err
	}
	stage := o.stages[name]
	if stage == nil {
		return state, domain.NewStageError(name, domain.KindInvalidState, fmt.Errorf("stage %s is not configured", name))
	}

	started := o.now()
	next, err := stage.Run(ctx, state.Clone())
	if err != nil {
		err = domain.WithStage(name, err)
		o.logger.Error("stage failed",
			"run_id", state.RunID,
			"stage", name,
			"kind", domain.KindOf(err),
			"error", err,
		)
		return state, err
	}
	o.logger.Debug("stage completed", "run_id", state.RunID, "stage", name, "elapsed", o.now().Sub(started))
	o.notify(name, next)
	return next, nil
}

func (o *Orchestrator) notify(stage string, state domain.PipelineState) {
	if o.observer != nil {
		o.observer(stage, state)
	}
}

// CheckpointObserver writes the full state to <dir>/<stage>_state.json after
// each step. Write failures are logged and do not interrupt the run.
func CheckpointObserver(dir string, logger *slog.Logger) Observer {
	logger = orDiscard(logger)
	return func(stage string, state domain.PipelineState) {
		path := filepath.Join(dir, stage+"_state.json")
		if err := domain.SaveStateFile(path, state); err != nil {
			logger.Warn("checkpoint failed", "stage", stage, "path", path, "error", err)
		}
	}
}
