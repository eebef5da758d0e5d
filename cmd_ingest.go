package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gamma-omg/docsearch/docstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	ingestProject string
	ingestTags    []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Extract, chunk and index a single document",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "project the document belongs to")
	ingestCmd.Flags().StringSliceVarP(&ingestTags, "tag", "t", nil, "document tag, may be repeated")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", args[0], err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	text, format, err := a.reader.ReadText(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	doc := docstore.Document{
		ID:       uuid.NewString(),
		FileName: filepath.Base(path),
		Path:     path,
		Format:   string(format),
		Size:     info.Size(),
		Crc:      checksum(text),
		Project:  ingestProject,
		Tags:     ingestTags,
	}
	if err := a.docs.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	n, err := a.indexer.Process(ctx, doc.ID, text)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %d chunks\n", doc.ID, n)
	return nil
}
