package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file; absence is fine
	_ = godotenv.Load()

	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:           "quotebias",
		Short:         "Matched-pairs price discrimination analysis of insurance quotes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(rootCmd)

	rootCmd.AddCommand(
		newCompareCmd(&opts),
		newBaselineCmd(&opts),
		newRunCmd(&opts),
		newFrequencyCmd(&opts),
		newGenerateCmd(),
		newImportCmd(&opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
