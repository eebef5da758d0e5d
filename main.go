package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Index uploaded documents and search them",
	Long: `docsearch extracts text from PDF, DOCX, PPTX and plain text files, splits it
into sentence-aligned chunks and ranks the chunks against free-text queries.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "cfg/config.yaml", "Configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
