package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwyun/gradefall/internal/llm"
	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/pipeline"
	"github.com/cwyun/gradefall/internal/profile"
	"github.com/cwyun/gradefall/internal/rubric"
)

// gradeFlags holds the options for the grade subcommand.
type gradeFlags struct {
	rubricFile   string
	answersFile  string
	passagesFile string
	out          string
	profileName  string
	providerName string
	model        string
	maxTokens    int
	temperature  float64
	retries      int
	repairs      int
	concurrency  int
	debug        bool
}

// gradeOutput is the JSON shape written per student.
type gradeOutput struct {
	StudentID   string        `json:"student_id"`
	Score       int           `json:"score"`
	Level       string        `json:"level"`
	NeedsReview bool          `json:"needs_review"`
	Error       string        `json:"error,omitempty"`
	Result      *parse.Result `json:"result,omitempty"`
}

func newGradeCmd() *cobra.Command {
	var flags gradeFlags

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a batch of student answers with a model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrade(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.rubricFile, "rubric", "", "rubric file (.json, .yaml, or .md)")
	cmd.Flags().StringVar(&flags.answersFile, "answers", "", "JSON file with the student answers to grade")
	cmd.Flags().StringVar(&flags.passagesFile, "passages", "", "optional JSON file with reference passages")
	cmd.Flags().StringVar(&flags.out, "out", "", "write the grade records to this file instead of stdout")
	cmd.Flags().StringVar(&flags.profileName, "profile", "general", "question-type profile: general, essay, short-answer, concept-map")
	cmd.Flags().StringVar(&flags.providerName, "provider", "anthropic", "model provider: anthropic, openai, google")
	cmd.Flags().StringVar(&flags.model, "model", "claude-sonnet-4-20250514", "model name")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 4096, "max output tokens")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 0.2, "sampling temperature")
	cmd.Flags().IntVar(&flags.retries, "retries", 2, "transport retries per model call")
	cmd.Flags().IntVar(&flags.repairs, "repairs", 1, "repair re-asks when a response does not parse fully")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 4, "parallel model calls")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "print prompts and per-strategy diagnostics to stderr")

	_ = cmd.MarkFlagRequired("rubric")
	_ = cmd.MarkFlagRequired("answers")

	return cmd
}

func runGrade(ctx context.Context, flags gradeFlags) error {
	spec, err := rubric.Load(flags.rubricFile)
	if err != nil {
		return err
	}
	prof, err := profile.Load(flags.profileName)
	if err != nil {
		return err
	}
	answers, err := loadAnswers(flags.answersFile)
	if err != nil {
		return err
	}

	var source pipeline.PassageSource
	if flags.passagesFile != "" {
		passages, err := loadPassages(flags.passagesFile)
		if err != nil {
			return err
		}
		source = pipeline.StaticPassages(passages)
	}

	p := &pipeline.Pipeline{
		Rubric:  spec,
		Profile: prof,
		LLM: llm.Options{
			Provider:    flags.providerName,
			Model:       flags.model,
			MaxTokens:   flags.maxTokens,
			Temperature: flags.temperature,
			MaxRetries:  flags.retries,
			Debug:       flags.debug,
		},
		Parse:          parse.DefaultConfig(),
		Source:         source,
		Concurrency:    flags.concurrency,
		RepairAttempts: flags.repairs,
	}

	records, err := p.GradeBatch(ctx, answers)
	if err != nil {
		return err
	}

	outputs := make([]gradeOutput, len(records))
	failures := 0
	for i, rec := range records {
		out := gradeOutput{StudentID: rec.StudentID, Score: rec.Score(), NeedsReview: rec.NeedsReview()}
		switch {
		case rec.Err != nil:
			out.Level = string(parse.Failed)
			out.Error = rec.Err.Error()
			failures++
		default:
			out.Level = string(rec.Result.Level)
			out.Result = rec.Result
			if flags.debug {
				fmt.Fprintf(os.Stderr, "--- %s ---\n", rec.StudentID)
				printDiagnostics(os.Stderr, rec.Result)
			}
		}
		outputs[i] = out
	}

	if err := writeResult(flags.out, outputs); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d answers failed to grade", failures, len(records))
	}
	return nil
}

func loadAnswers(path string) ([]pipeline.StudentAnswer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var answers []pipeline.StudentAnswer
	if err := json.Unmarshal(b, &answers); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("answers file %s contains no answers", path)
	}
	return answers, nil
}

func loadPassages(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	var passages []string
	if err := json.Unmarshal(b, &passages); err != nil {
		return nil, fmt.Errorf("parse passages: %w", err)
	}
	return passages, nil
}
