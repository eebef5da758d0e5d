package main

import (
	"encoding/json"
	"fmt"

	"github.com/gamma-omg/docsearch/pipeline"
	"github.com/gamma-omg/docsearch/ranking"
	"github.com/spf13/cobra"
)

var (
	searchProject string
	searchTopK    int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchProject, "project", "p", "", "only search documents of this project")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "maximum number of results (defaults to the configured results)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := searchTopK
	if topK <= 0 {
		topK = a.cfg.Results
	}

	results, err := a.searcher.Search(ctx, args[0], pipeline.Scope{Project: searchProject}, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	outputSearchTable(cmd, results)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []ranking.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []ranking.Result) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for i, r := range results {
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, r.FileName, r.ChunkIndex, r.Similarity)
		if r.Project != "" {
			cmd.Printf("      Project: %s\n", r.Project)
		}
		cmd.Printf("      %s\n\n", r.Snippet)
	}
}
