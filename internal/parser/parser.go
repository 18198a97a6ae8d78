// Package parser orchestrates extraction, validation, and recovery for one
// raw model response. A parse is a pure synchronous computation: it shares no
// state between calls and always runs to completion, so callers may parse
// arbitrarily many responses concurrently.
package parser

import (
	"fmt"
	"time"

	"github.com/cwyun/gradefall/internal/extract"
	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
	"github.com/cwyun/gradefall/internal/validate"
)

// heuristicRecoveryConfidence is assigned when the final-recovery heuristic
// scan yields data that never passed schema validation.
const heuristicRecoveryConfidence = 0.5

type Parser struct {
	cfg    parse.Config
	engine *validate.Engine
}

func New(cfg parse.Config) *Parser {
	return &Parser{cfg: cfg, engine: validate.NewEngine(cfg)}
}

// Parse runs the full strategy loop against a fixed schema, validating
// strictly (with correction) at each step.
func (p *Parser) Parse(raw string, s schema.Schema) *parse.Result {
	return p.run(raw, s, func(data map[string]any) *parse.ValidationResult {
		return p.engine.ValidateStructure(data, s)
	})
}

// ParseWithRubric builds the schema from the rubric and validates
// adaptively: structural gaps are patched rather than rejected.
func (p *Parser) ParseWithRubric(raw string, spec rubric.Spec) *parse.Result {
	s := schema.Build(spec)
	return p.run(raw, s, func(data map[string]any) *parse.ValidationResult {
		return p.engine.ValidateAdaptiveSchema(data, s)
	})
}

func (p *Parser) run(raw string, s schema.Schema, validateFn func(map[string]any) *parse.ValidationResult) (result *parse.Result) {
	start := time.Now()
	result = &parse.Result{Level: parse.Failed, RawResponse: raw}

	// Strategies and validation recover internally; anything that escapes
	// to here (context construction, result assembly) is catastrophic.
	defer func() {
		if r := recover(); r != nil {
			result = &parse.Result{
				Level:       parse.Failed,
				RawResponse: raw,
				Errors:      []string{fmt.Sprintf("parser: catastrophic failure: %v", r)},
			}
		}
		result.Duration = time.Since(start)
	}()

	cleaned := extract.Preprocess(raw)
	ctx := extract.NewContext(cleaned)

	haveData := false
	heuristicPartial := false
	tried := 0
	for _, strat := range extract.Ordered() {
		if tried >= p.cfg.MaxAttempts {
			break
		}
		if strat.Skip(ctx, haveData) {
			continue
		}
		attempt := extract.Run(strat, cleaned, ctx)
		tried++
		if p.cfg.LogAllAttempts || attempt.Success {
			result.Attempts = append(result.Attempts, attempt)
		}
		if !attempt.Success {
			result.Errors = append(result.Errors, attempt.Err)
			continue
		}
		haveData = true

		vres := p.validateAttempt(attempt, s, validateFn)
		result.Validation = vres
		if vres.IsValid {
			data := attempt.Data
			if vres.Corrected != nil {
				data = vres.Corrected
			}
			result.Data = data
			result.Level = parse.Full
			result.SuccessfulStrategy = attempt.Strategy
			result.Warnings = append(result.Warnings, vres.Warnings...)
			return result
		}

		result.Errors = append(result.Errors, vres.Errors...)
		// The first retained partial wins; later strategies tend to extract
		// smaller fragments of the same response.
		if p.cfg.EnablePartialRecovery && result.Partial == nil {
			result.Partial = attempt.Data
			heuristicPartial = attempt.Strategy == parse.StrategyHeuristic
			if result.Level.Ordinal() < parse.Partial.Ordinal() {
				result.Level = parse.Partial
			}
		}
	}

	// Retained heuristic data was assembled from loose labels and never
	// passed validation, so the dedicated recovery pass still runs over it:
	// the raw-text rescan carries the confidence score and manual-review
	// notes that the in-loop retention lacks. A partial from any other
	// strategy is real extracted content and is never rescanned away.
	if p.cfg.EnableFallbackRecovery && result.Data == nil && (result.Partial == nil || heuristicPartial) {
		rec := p.finalRecovery(raw, s)
		result.Partial = rec.Data
		result.Level = parse.Partial
		result.RecoveryNotes = rec.Notes
	}
	return result
}

// validateAttempt checks one strategy's data. Heuristic output is assembled
// from loose text labels, so it is held to the strict check without
// correction: corrections on synthesized data would manufacture validity,
// and the final-recovery path already handles the labeled-text case at a
// reduced confidence.
func (p *Parser) validateAttempt(attempt parse.Attempt, s schema.Schema, validateFn func(map[string]any) *parse.ValidationResult) (vres *parse.ValidationResult) {
	// A panic during validation downgrades this attempt, not the whole
	// parse; the loop carries on to the next strategy.
	defer func() {
		if r := recover(); r != nil {
			vres = &parse.ValidationResult{
				IsValid: false,
				Errors:  []string{fmt.Sprintf("parser: validation panic: %v", r)},
			}
		}
	}()

	if attempt.Strategy == parse.StrategyHeuristic {
		if errs := p.engine.Check(attempt.Data, s); len(errs) > 0 {
			return &parse.ValidationResult{IsValid: false, Errors: errs}
		}
		return &parse.ValidationResult{IsValid: true}
	}
	return validateFn(attempt.Data)
}

// finalRecovery guarantees a structurally usable record. The heuristic scan
// runs against the raw response rather than the preprocessed text because
// the original punctuation and spacing carry label context that cleanup may
// have collapsed.
func (p *Parser) finalRecovery(raw string, s schema.Schema) parse.RecoveryResult {
	ctx := extract.NewContext(raw)
	attempt := extract.Run(extract.Heuristic(), raw, ctx)
	if attempt.Success {
		return parse.RecoveryResult{
			Success:    true,
			Data:       attempt.Data,
			Confidence: heuristicRecoveryConfidence,
			Notes: []string{
				"recovered via heuristic scan of raw response",
				"manual review recommended",
			},
		}
	}

	record := schema.EmergencyRecord(s)
	notes := []string{"emergency record synthesized"}
	if score, ok := extract.FindScore(raw); ok {
		if scoring, isMap := record[schema.ScoringSection].(map[string]any); isMap {
			scoring[schema.TotalScoreField] = score
			notes = append(notes, fmt.Sprintf("recovered total_score %d from raw text", score))
		}
	}
	if fb, ok := extract.FindFeedback(raw); ok {
		if feedback, isMap := record[schema.FeedbackSection].(map[string]any); isMap {
			feedback[schema.ContentFeedbackField] = fb
			notes = append(notes, "recovered feedback text from raw response")
		}
	}
	notes = append(notes, "manual review required")
	return parse.RecoveryResult{
		Success:    true,
		Data:       record,
		Confidence: p.engine.ConfidenceFloor,
		Notes:      notes,
	}
}
