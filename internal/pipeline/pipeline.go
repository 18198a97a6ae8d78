// Package pipeline grades batches of student answers: it fetches reference
// passages, calls the model, and parses each response into a grading record.
// Each answer is independent, so batches run concurrently with a bounded
// worker count.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cwyun/gradefall/internal/llm"
	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/parser"
	"github.com/cwyun/gradefall/internal/profile"
	"github.com/cwyun/gradefall/internal/rubric"
)

// defaultConcurrency bounds simultaneous model calls per batch.
const defaultConcurrency = 4

// StudentAnswer is one answer to grade.
type StudentAnswer struct {
	StudentID string `json:"student_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// GradeRecord is the outcome for one student: the parse result when the
// model responded, or the transport error when it did not.
type GradeRecord struct {
	StudentID   string        `json:"student_id"`
	RawResponse string        `json:"-"`
	Result      *parse.Result `json:"result,omitempty"`
	Err         error         `json:"-"`
}

// NeedsReview reports whether a human should look at this record: the model
// call failed, the parse fell short of a full validated record, or the data
// came out of a recovery path.
func (r GradeRecord) NeedsReview() bool {
	if r.Err != nil || r.Result == nil {
		return true
	}
	return r.Result.Level.Ordinal() < parse.Full.Ordinal() || len(r.Result.RecoveryNotes) > 0
}

// Score returns the total score from the best available data, or 0.
func (r GradeRecord) Score() int {
	if r.Result == nil {
		return 0
	}
	best := r.Result.BestData()
	if best == nil {
		return 0
	}
	scoring, ok := best["grading_result"].(map[string]any)
	if !ok {
		return 0
	}
	switch n := scoring["total_score"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// PassageSource supplies reference passages for a question. Implementations
// may hit external retrieval systems; the pipeline passes its context through.
type PassageSource interface {
	Passages(ctx context.Context, question string) ([]string, error)
}

// StaticPassages is a PassageSource returning a fixed passage list for every
// question.
type StaticPassages []string

func (s StaticPassages) Passages(context.Context, string) ([]string, error) {
	return []string(s), nil
}

// Pipeline grades answers against one rubric with one model configuration.
type Pipeline struct {
	Rubric  rubric.Spec
	Profile profile.Profile
	LLM     llm.Options
	Parse   parse.Config

	// Source provides reference passages; nil means no passages.
	Source PassageSource

	// Concurrency bounds parallel model calls in GradeBatch; zero or
	// negative means the default.
	Concurrency int

	// RepairAttempts is how many times a response that did not reach a
	// full parse is re-asked with the validation errors attached.
	RepairAttempts int
}

// GradeOne grades a single answer. A model transport failure is reported in
// the record's Err; a response that parses at any level is reported in
// Result, with the repair loop run first when the parse fell short of Full.
func (p *Pipeline) GradeOne(ctx context.Context, ans StudentAnswer) GradeRecord {
	rec := GradeRecord{StudentID: ans.StudentID}

	var passages []string
	if p.Source != nil {
		var err error
		passages, err = p.Source.Passages(ctx, ans.Question)
		if err != nil {
			rec.Err = fmt.Errorf("pipeline: fetch passages for %s: %w", ans.StudentID, err)
			return rec
		}
	}

	req := llm.Request{
		Question: ans.Question,
		Answer:   ans.Answer,
		Passages: passages,
		Rubric:   p.Rubric,
		Profile:  p.Profile,
	}

	raw, err := llm.Grade(ctx, req, p.LLM)
	if err != nil {
		rec.Err = fmt.Errorf("pipeline: grade %s: %w", ans.StudentID, err)
		return rec
	}
	rec.RawResponse = raw

	psr := parser.New(p.Parse)
	result := psr.ParseWithRubric(raw, p.Rubric)

	for attempt := 0; attempt < p.RepairAttempts && result.Level.Ordinal() < parse.Full.Ordinal(); attempt++ {
		repaired, err := llm.Repair(ctx, req, raw, result.Errors, p.LLM)
		if err != nil {
			break
		}
		raw = repaired
		if next := psr.ParseWithRubric(repaired, p.Rubric); next.Level.Ordinal() > result.Level.Ordinal() {
			result = next
			rec.RawResponse = repaired
		}
	}

	rec.Result = result
	return rec
}

// GradeBatch grades all answers with bounded concurrency. A failing student
// never aborts the batch; per-student failures are carried in the records.
// The returned slice is ordered like the input. The error is non-nil only
// when the context is canceled.
func (p *Pipeline) GradeBatch(ctx context.Context, answers []StudentAnswer) ([]GradeRecord, error) {
	records := make([]GradeRecord, len(answers))

	g, ctx := errgroup.WithContext(ctx)
	limit := p.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g.SetLimit(limit)

	for i, ans := range answers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i] = p.GradeOne(ctx, ans)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
