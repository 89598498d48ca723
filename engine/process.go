package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clinsight/takforge/errors"
	"github.com/clinsight/takforge/oracle"
	"github.com/clinsight/takforge/registry"
	"github.com/clinsight/takforge/tak"
	"github.com/clinsight/takforge/validate"
)

// Process drives one definition to a terminal disposition. The registry is
// written exactly once, after the disposition is known, with the token cost
// summed across every attempt of this run.
func (e *Engine) Process(ctx context.Context, def *tak.Definition, runID string) Outcome {
	log := e.logger.With("id", def.ID, "type", def.Type, "run_id", runID)

	if err := def.Validate(); err != nil {
		log.Warnw("Definition rejected before generation", "error", err)
		return e.finish(ctx, def, runID, Outcome{
			ID:          def.ID,
			Disposition: registry.DispositionInvalid,
			Reason:      err.Error(),
		})
	}

	if prior := e.lookupPrior(ctx, def.ID); prior != nil {
		log.Debugw("Skipping resolved definition", "disposition", prior.Disposition)
		return Outcome{
			ID:          def.ID,
			Disposition: prior.Disposition,
			OutputPath:  prior.OutputPath,
			Skipped:     true,
		}
	}

	tmpl, err := e.templates.Get(def.Type)
	if err != nil {
		log.Errorw("No template for definition", "error", err)
		return Outcome{
			ID:          def.ID,
			Disposition: registry.DispositionPending,
			Reason:      err.Error(),
		}
	}

	var (
		totalCost    int
		feedback     string
		lastArtifact string
		seen         = map[string]bool{}
	)

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, def, runID, Outcome{
				ID:           def.ID,
				Disposition:  registry.DispositionPending,
				AttemptsUsed: attempt - 1,
				TokenCost:    totalCost,
				Reason:       err.Error(),
			})
		}

		prompt, err := buildPrompt(tmpl, def, lastArtifact, feedback)
		if err != nil {
			return e.finish(ctx, def, runID, Outcome{
				ID:           def.ID,
				Disposition:  registry.DispositionInvalid,
				AttemptsUsed: attempt - 1,
				TokenCost:    totalCost,
				Reason:       err.Error(),
			})
		}

		resp, err := e.oracle.Generate(ctx, oracle.Request{System: systemPrompt, Prompt: prompt})
		if err != nil {
			// Unavailable and malformed responses consume the attempt;
			// the next one reuses the previous feedback unchanged.
			log.Warnw("Oracle attempt failed",
				"attempt", attempt,
				"error", err,
				"unavailable", errors.Is(err, oracle.ErrUnavailable),
			)
			continue
		}

		totalCost += resp.TokenCost
		e.recordUsage(ctx, def.ID, runID, attempt, resp)

		if seen[resp.Artifact] {
			log.Warnw("Oracle repeated a rejected artifact", "attempt", attempt)
			path := e.writeOrLog(def, markerInvalid, resp.Artifact, log)
			return e.finish(ctx, def, runID, Outcome{
				ID:           def.ID,
				Disposition:  registry.DispositionInvalid,
				OutputPath:   path,
				AttemptsUsed: attempt,
				TokenCost:    totalCost,
				Reason:       "oracle repeated a previously rejected artifact",
			})
		}
		seen[resp.Artifact] = true
		lastArtifact = resp.Artifact

		structural := validate.Structural(resp.Artifact, def.Type)
		business := validate.Result{Status: validate.StatusPass}
		if structural.Status == validate.StatusPass {
			business = validate.Business(resp.Artifact, def)
		}

		switch {
		case structural.Status == validate.StatusPass && business.Status == validate.StatusPass:
			path := e.writeOrLog(def, "", resp.Artifact, log)
			log.Infow("Artifact accepted", "attempt", attempt, "token_cost", totalCost, "path", path)
			return e.finish(ctx, def, runID, Outcome{
				ID:           def.ID,
				Disposition:  registry.DispositionValid,
				OutputPath:   path,
				AttemptsUsed: attempt,
				TokenCost:    totalCost,
			})

		case structural.Status == validate.StatusPass && business.Status == validate.StatusUncertain:
			// Retrying cannot resolve what the validator cannot decide.
			path := e.writeOrLog(def, markerValidate, resp.Artifact, log)
			log.Infow("Artifact needs review", "attempt", attempt, "findings", len(business.Findings))
			return e.finish(ctx, def, runID, Outcome{
				ID:           def.ID,
				Disposition:  registry.DispositionNeedsReview,
				OutputPath:   path,
				AttemptsUsed: attempt,
				TokenCost:    totalCost,
				Reason:       reviewReason(business),
			})

		default:
			feedback = validate.Compose(structural, business)
			log.Debugw("Artifact rejected",
				"attempt", attempt,
				"structural", structural.Status,
				"business", business.Status,
			)
		}
	}

	path := ""
	if lastArtifact != "" {
		path = e.writeOrLog(def, markerInvalid, lastArtifact, log)
	}
	log.Warnw("Attempt budget exhausted", "attempts", e.opts.MaxAttempts, "token_cost", totalCost)
	return e.finish(ctx, def, runID, Outcome{
		ID:           def.ID,
		Disposition:  registry.DispositionInvalid,
		OutputPath:   path,
		AttemptsUsed: e.opts.MaxAttempts,
		TokenCost:    totalCost,
		Reason:       "attempt budget exhausted",
	})
}

// lookupPrior returns a prior resolution that lets this definition be
// skipped. Invalid and pending rows do not block regeneration; valid and
// needs_review do, unless Force is set.
func (e *Engine) lookupPrior(ctx context.Context, id string) *registry.Entry {
	if e.opts.Force {
		return nil
	}
	entry, err := e.registry.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			e.logger.Warnw("Registry lookup failed", "id", id, "error", err)
		}
		return nil
	}
	switch entry.Disposition {
	case registry.DispositionValid, registry.DispositionNeedsReview:
		return entry
	default:
		return nil
	}
}

// finish persists the terminal registry row and returns the outcome. A
// pending disposition is persisted too so an interrupted run stays visible.
func (e *Engine) finish(ctx context.Context, def *tak.Definition, runID string, o Outcome) Outcome {
	err := e.registry.Put(ctx, registry.Entry{
		ID:             def.ID,
		Disposition:    o.Disposition,
		OutputPath:     o.OutputPath,
		AttemptsUsed:   o.AttemptsUsed,
		TotalTokenCost: o.TokenCost,
		RunID:          runID,
		LastRunAt:      time.Now().UTC(),
	})
	if err != nil {
		e.logger.Errorw("Registry write failed", "id", def.ID, "error", err)
	}
	return o
}

func (e *Engine) recordUsage(ctx context.Context, id, runID string, attempt int, resp *oracle.Response) {
	err := e.registry.RecordUsage(ctx, registry.Usage{
		DefinitionID:     id,
		RunID:            runID,
		Attempt:          attempt,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TokenCost,
	})
	if err != nil {
		e.logger.Warnw("Usage record failed", "id", id, "attempt", attempt, "error", err)
	}
}

func (e *Engine) writeOrLog(def *tak.Definition, marker, artifact string, log *zap.SugaredLogger) string {
	path, err := writeArtifact(e.opts.OutputDir, def, marker, artifact)
	if err != nil {
		log.Errorw("Artifact write failed", "error", err)
		return ""
	}
	return path
}

func reviewReason(business validate.Result) string {
	unresolved := business.Uncertain()
	if len(unresolved) == 0 {
		return "business validation uncertain"
	}
	return unresolved[0].String()
}
