package analyzer

import (
	"context"
	"time"

	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
)

// Stage is a phase of an analysis run.
type Stage int

const (
	StageCollect Stage = iota
	StageCorrelate
	StageInspect
)

func (s Stage) String() string {
	switch s {
	case StageCollect:
		return "collect"
	case StageCorrelate:
		return "correlate"
	case StageInspect:
		return "inspect"
	default:
		return "unknown"
	}
}

// Progress reports the state of a stage. During the inspect stage each
// inspected build is reported with Build set.
type Progress struct {
	Stage    Stage
	Started  bool
	Finished bool
	Skipped  bool
	Done     int
	Total    int
	Build    *model.BuildResult
	Err      error
}

// Observer receives progress updates. It is called synchronously from the
// goroutine running the analysis and must not block.
type Observer func(Progress)

// Analyzer chains the collector, correlator and aggregator for a project.
type Analyzer struct {
	collector  *Collector
	correlator *Correlator
	aggregator *Aggregator
	observer   Observer
}

// New creates an Analyzer. A nil observer is allowed.
func New(repos RepositoryClient, builds BuildClient, opts Options, observer Observer) *Analyzer {
	return &Analyzer{
		collector:  NewCollector(repos, opts),
		correlator: NewCorrelator(repos, opts),
		aggregator: NewAggregator(NewDetector(builds), opts, observer),
		observer:   observer,
	}
}

// Run analyzes a project. No collected PRs yields NoForkedBuilds and PRs
// without candidate builds yield NoCorrelatedBuilds, both without inspecting
// any build. The returned error is only non-nil for collection failures
// (wrapping ErrCollection) and cancellation.
func (a *Analyzer) Run(ctx context.Context, project Project) (*model.Verdict, error) {
	start := time.Now()

	a.notify(Progress{Stage: StageCollect, Started: true})
	prs, err := a.collector.Collect(ctx, project)
	if err != nil {
		a.notify(Progress{Stage: StageCollect, Err: err})
		return nil, err
	}
	a.notify(Progress{Stage: StageCollect, Finished: true, Done: len(prs), Total: len(prs)})

	if len(prs) == 0 {
		a.skipRemaining(StageCorrelate)
		return &model.Verdict{
			Project: project.String(),
			Outcome: model.OutcomeNoForkedBuilds,
			Secrets: []string{},
		}, nil
	}

	a.notify(Progress{Stage: StageCorrelate, Started: true, Total: len(prs)})
	candidates, err := a.correlator.Correlate(ctx, project, prs)
	if err != nil {
		a.notify(Progress{Stage: StageCorrelate, Err: err})
		return nil, err
	}
	a.notify(Progress{Stage: StageCorrelate, Finished: true, Done: len(candidates), Total: len(candidates)})

	if len(candidates) == 0 {
		a.skipRemaining(StageInspect)
		return &model.Verdict{
			Project:      project.String(),
			Outcome:      model.OutcomeNoCorrelatedBuilds,
			Secrets:      []string{},
			PullRequests: len(prs),
		}, nil
	}
	log.Info("forked pull requests create builds", "project", project, "prs", len(prs), "builds", len(candidates))

	a.notify(Progress{Stage: StageInspect, Started: true, Total: len(candidates)})
	verdict, err := a.aggregator.Assess(ctx, project, candidates)
	if err != nil {
		a.notify(Progress{Stage: StageInspect, Err: err})
		return nil, err
	}
	verdict.PullRequests = len(prs)
	a.notify(Progress{Stage: StageInspect, Finished: true, Done: len(verdict.Results), Total: len(candidates)})

	log.Debug("analysis complete",
		"project", project,
		"outcome", verdict.Outcome,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return verdict, nil
}

// skipRemaining reports the stages from s onward as skipped.
func (a *Analyzer) skipRemaining(s Stage) {
	for ; s <= StageInspect; s++ {
		a.notify(Progress{Stage: s, Skipped: true})
	}
}

func (a *Analyzer) notify(p Progress) {
	if a.observer != nil {
		a.observer(p)
	}
}
