package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/parser"
	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
)

// parseFlags holds the options for the parse subcommand.
type parseFlags struct {
	rubricFile  string
	out         string
	maxAttempts int
	noRecovery  bool
	debug       bool
}

func newParseCmd() *cobra.Command {
	var flags parseFlags

	cmd := &cobra.Command{
		Use:   "parse [response-file]",
		Short: "Parse one raw model response into a validated grading record",
		Long: "Reads a raw model response from the given file (or stdin when the " +
			"argument is omitted or \"-\") and extracts a structured grading record. " +
			"Exits 0 when the parse reaches full or partial success, 1 otherwise.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.rubricFile, "rubric", "", "rubric file (.json, .yaml, or .md); omit for the default single-criterion schema")
	cmd.Flags().StringVar(&flags.out, "out", "", "write the result JSON to this file instead of stdout")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 4, "cap on extraction strategies tried")
	cmd.Flags().BoolVar(&flags.noRecovery, "no-recovery", false, "disable fallback recovery; unparseable input fails instead of yielding an emergency record")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "print per-strategy attempt diagnostics to stderr")

	return cmd
}

func runParse(flags parseFlags, args []string) error {
	raw, err := readResponse(args)
	if err != nil {
		return err
	}

	cfg := parse.DefaultConfig()
	cfg.MaxAttempts = flags.maxAttempts
	if flags.noRecovery {
		cfg.EnableFallbackRecovery = false
	}
	psr := parser.New(cfg)

	var result *parse.Result
	if flags.rubricFile != "" {
		spec, err := rubric.Load(flags.rubricFile)
		if err != nil {
			return err
		}
		result = psr.ParseWithRubric(raw, spec)
	} else {
		result = psr.Parse(raw, schema.Default())
	}

	if flags.debug {
		printDiagnostics(os.Stderr, result)
	}

	if err := writeResult(flags.out, result); err != nil {
		return err
	}
	if result.Level == parse.Failed {
		return fmt.Errorf("parse failed: no usable data extracted")
	}
	return nil
}

func readResponse(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(b), nil
}

func writeResult(out string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	b = append(b, '\n')
	if out == "" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func printDiagnostics(w io.Writer, result *parse.Result) {
	fmt.Fprintf(w, "level: %s\n", result.Level)
	for _, a := range result.Attempts {
		status := "failed"
		if a.Success {
			status = "ok"
		}
		fmt.Fprintf(w, "attempt %-10s %-6s %s\n", a.Strategy, status, a.Err)
	}
	for _, n := range result.RecoveryNotes {
		fmt.Fprintf(w, "recovery: %s\n", n)
	}
}
