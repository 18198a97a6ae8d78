// Package parse defines the shared result, attempt, and configuration types
// threaded through the extraction pipeline. Diagnostics are carried in these
// values rather than logged ambiently; the caller decides how to surface them.
package parse

import "time"

// Level is the ranked outcome of a parse: Failed < Partial < Full.
type Level string

const (
	Failed  Level = "failed"  // no usable content
	Partial Level = "partial" // some content recovered
	Full    Level = "full"    // complete successful parse
)

// Ordinal returns the numeric rank of a level, used for all level
// comparisons. Failed=0, Partial=1, Full=2. Levels must never be compared
// lexically; the label ordering ("failed" < "full" < "partial") does not
// match the semantic ranking.
func (l Level) Ordinal() int {
	switch l {
	case Failed:
		return 0
	case Partial:
		return 1
	case Full:
		return 2
	default:
		return -1
	}
}

// StrategyID identifies one extraction strategy in diagnostics.
type StrategyID string

const (
	StrategyDirect    StrategyID = "direct"
	StrategyFenced    StrategyID = "fenced"
	StrategyPattern   StrategyID = "pattern"
	StrategyHeuristic StrategyID = "heuristic"
)

// Attempt records one strategy execution. It is immutable once produced.
type Attempt struct {
	Strategy  StrategyID     `json:"strategy"`
	Success   bool           `json:"success"`
	Extracted string         `json:"extracted,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Err       string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// ValidationResult is the outcome of validating parsed data against a schema.
type ValidationResult struct {
	IsValid   bool           `json:"is_valid"`
	Errors    []string       `json:"errors,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Corrected map[string]any `json:"corrected_data,omitempty"`
}

// RecoveryResult is the outcome of an error-correction or recovery attempt.
// Confidence is in [0,1]: 1.0 only when no correction was applied, otherwise
// clamped to [0.1, 1.0).
type RecoveryResult struct {
	Success    bool           `json:"success"`
	Data       map[string]any `json:"recovered_data,omitempty"`
	Confidence float64        `json:"confidence"`
	Notes      []string       `json:"notes,omitempty"`
}

// Result is the aggregate outcome of parsing one response. A fresh Result is
// produced per call and never shared.
type Result struct {
	Level              Level             `json:"success_level"`
	Data               map[string]any    `json:"data,omitempty"`
	Partial            map[string]any    `json:"partial_content,omitempty"`
	Errors             []string          `json:"errors,omitempty"`
	Warnings           []string          `json:"warnings,omitempty"`
	RawResponse        string            `json:"raw_response"`
	Attempts           []Attempt         `json:"attempts,omitempty"`
	SuccessfulStrategy StrategyID        `json:"successful_strategy,omitempty"`
	Validation         *ValidationResult `json:"validation_result,omitempty"`
	RecoveryNotes      []string          `json:"recovery_notes,omitempty"`
	Duration           time.Duration     `json:"duration_ns"`
}

// IsSuccessful reports whether the parse reached Full or Partial.
func (r *Result) IsSuccessful() bool {
	return r.Level.Ordinal() >= Partial.Ordinal()
}

// HasUsableData reports whether any data is available at all.
func (r *Result) HasUsableData() bool {
	return r.Data != nil || r.Partial != nil
}

// BestData returns the validated data when present, else the best-effort
// partial content, else nil.
func (r *Result) BestData() map[string]any {
	if r.Data != nil {
		return r.Data
	}
	return r.Partial
}

// Config controls parser behavior. TimeoutSeconds is advisory only: no
// component enforces it, and pattern strategies over adversarial input can
// run long. Callers that need a hard bound must impose one externally.
type Config struct {
	MaxAttempts              int
	TimeoutSeconds           float64
	EnableFallbackRecovery   bool
	EnablePartialRecovery    bool
	RequireAllRequiredFields bool
	AllowFieldMapping        bool
	AllowTypeCoercion        bool
	LogAllAttempts           bool
}

// DefaultConfig returns the configuration used by the grading pipeline.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:              4,
		TimeoutSeconds:           30,
		EnableFallbackRecovery:   true,
		EnablePartialRecovery:    true,
		RequireAllRequiredFields: true,
		AllowFieldMapping:        true,
		AllowTypeCoercion:        true,
		LogAllAttempts:           true,
	}
}
