package analyzer

import (
	"context"

	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
)

// Aggregator walks candidate builds newest first and classifies the result.
type Aggregator struct {
	inspector  Inspector
	exhaustive bool
	observer   Observer
}

// NewAggregator creates an Aggregator. A nil observer is allowed.
func NewAggregator(inspector Inspector, opts Options, observer Observer) *Aggregator {
	return &Aggregator{
		inspector:  inspector,
		exhaustive: opts.Exhaustive,
		observer:   observer,
	}
}

// Assess inspects candidates in order until one yields secrets, or through
// the whole list when exhaustive. The outcome is fixed by the first build
// that yields secrets: the first candidate means ExposedOnLatest, any later
// one ExposedOnOlderBuild. Inspect failures are recorded and skipped. Only
// context cancellation aborts the assessment.
func (a *Aggregator) Assess(ctx context.Context, project Project, candidates []model.CandidateBuild) (*model.Verdict, error) {
	verdict := &model.Verdict{
		Project:    project.String(),
		Outcome:    model.OutcomeNoForkedBuilds,
		Secrets:    []string{},
		Candidates: len(candidates),
	}
	if len(candidates) == 0 {
		return verdict, nil
	}

	verdict.Outcome = model.OutcomeNoExposureEvidence
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := model.BuildResult{Build: candidate}
		secrets, err := a.inspector.Inspect(ctx, project, candidate)
		switch {
		case err != nil && !IsRecoverable(err) && ctx.Err() != nil:
			return nil, err
		case err != nil:
			kind, _ := KindOf(err)
			result.Failure = kind.String()
			result.Detail = err.Error()
			log.Info("skipping build", "project", project, "build", candidate.BuildNumber, "reason", err)
		default:
			result.Secrets = secrets
		}

		verdict.Results = append(verdict.Results, result)
		a.notify(Progress{Stage: StageInspect, Done: i + 1, Total: len(candidates), Build: &result})

		if len(secrets) == 0 {
			continue
		}

		verdict.Secrets = append(verdict.Secrets, secrets...)
		if verdict.ExposingBuild == 0 {
			verdict.ExposingBuild = candidate.BuildNumber
			if i == 0 {
				verdict.Outcome = model.OutcomeExposedOnLatest
			} else {
				verdict.Outcome = model.OutcomeExposedOnOlderBuild
			}
		}
		if !a.exhaustive {
			break
		}
	}

	return verdict, nil
}

func (a *Aggregator) notify(p Progress) {
	if a.observer != nil {
		a.observer(p)
	}
}
