package main

// Analyze clips from the command line and write the virality report:
//   go run ./cmd/captions analyze clip1.mp4 clip2.mov --max-length 150 --pdf --docx
//   go run ./cmd/captions render out/results.json --pdf

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "captions",
	Short:         "Caption analysis for short video clips",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd(), newRenderCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
