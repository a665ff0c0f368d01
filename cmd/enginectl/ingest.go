package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <document-id>...",
	Short: "Chunk and embed documents now",
	Long: `Ingest replaces the chunks of each document with a fresh chunk-and-embed
pass. A document that fails keeps its previous chunks; the remaining
documents are still processed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var deleteChunksCmd = &cobra.Command{
	Use:   "delete-chunks <document-id>",
	Short: "Remove every chunk of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteChunks,
}

func parseIds(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ids, err := parseIds(args)
	if err != nil {
		return err
	}
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	failed := 0
	for _, id := range ids {
		res, err := c.IngestionService.Ingest(cmd.Context(), id)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks (replaced %d)\n", id, res.Chunks, res.Replaced)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(ids))
	}
	return nil
}

func runDeleteChunks(cmd *cobra.Command, args []string) error {
	ids, err := parseIds(args)
	if err != nil {
		return err
	}
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.IngestionService.DeleteChunks(cmd.Context(), ids[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted %d chunks\n", res.DocumentId, res.Deleted)
	return nil
}
