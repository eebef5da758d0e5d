package main

import (
	"fmt"
	"strings"

	"github.com/gamma-omg/docsearch/docstore"
	"github.com/spf13/cobra"
)

var (
	documentsProject string
	documentsText    string
	documentsFormat  string
	documentsSort    string
	documentsLimit   int
	documentsOffset  int
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	documentsCmd.Flags().StringVarP(&documentsProject, "project", "p", "", "only list documents of this project")
	documentsCmd.Flags().StringVar(&documentsText, "text", "", "match file names or content containing this text")
	documentsCmd.Flags().StringVar(&documentsFormat, "format", "", "only list documents of this format")
	documentsCmd.Flags().StringVar(&documentsSort, "sort", string(docstore.SortNewest), "newest or oldest")
	documentsCmd.Flags().IntVarP(&documentsLimit, "limit", "n", 0, "maximum number of documents, 0 for all")
	documentsCmd.Flags().IntVar(&documentsOffset, "offset", 0, "number of documents to skip")
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runDocuments(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.docs.FindDocuments(ctx, docstore.DocumentQuery{
		Text:    documentsText,
		Project: documentsProject,
		Format:  documentsFormat,
		Sort:    docstore.SortOrder(documentsSort),
		Offset:  documentsOffset,
		Limit:   documentsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for _, d := range docs {
		cmd.Printf("%s  %-10s  %-12s  %s", d.ID, d.Status, d.Project, d.FileName)
		if len(d.Tags) > 0 {
			cmd.Printf("  [%s]", strings.Join(d.Tags, ", "))
		}
		cmd.Println()
	}

	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.indexer.Forget(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("deleted %s\n", args[0])
	return nil
}
