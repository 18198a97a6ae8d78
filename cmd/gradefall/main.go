// Command gradefall parses model grading responses into validated records
// and grades batches of student answers end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "gradefall",
		Short:         "Resilient structured-output extraction for automated grading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newParseCmd())
	root.AddCommand(newGradeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
