package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/pkg/stream"

	"github.com/spf13/cobra"
)

var (
	topK        int
	threshold   float64
	reviewTitle string
)

var queryCmd = &cobra.Command{
	Use:   "query <plugin-slug> <question>",
	Short: "Ask one plugin a question",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

var reviewCmd = &cobra.Command{
	Use:   "review <plugin-slug> <file|->",
	Short: "Review a document with one plugin",
	Long:  `Review reads the document from a file, or from stdin when the path is "-".`,
	Args:  cobra.ExactArgs(2),
	RunE:  runReview,
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, reviewCmd} {
		cmd.Flags().BoolVar(&streamFlag, "stream", false, "Print pipeline events as they happen")
		cmd.Flags().IntVar(&topK, "top-k", 0, "Chunks to retrieve (default from config)")
		cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity (default from config)")
	}
	reviewCmd.Flags().StringVar(&reviewTitle, "title", "", "Document title")
}

func retrievalFlags() *dto.RetrievalOptions {
	if topK == 0 && threshold == 0 {
		return nil
	}
	return &dto.RetrievalOptions{TopK: topK, Threshold: threshold}
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	req := &dto.QueryRequest{Query: args[1], Retrieval: retrievalFlags()}

	if !streamFlag {
		res, err := c.QueryService.RunQuery(ctx, args[0], nil, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	prepared, err := c.QueryService.PrepareQuery(ctx, args[0], nil, req)
	if err != nil {
		return err
	}
	return printStream(ctx, func(ctx context.Context, sink stream.Sink) error {
		return c.QueryService.StreamQuery(ctx, prepared, sink)
	})
}

func readDocument(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(raw), nil
}

func runReview(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[1])
	if err != nil {
		return err
	}
	title := reviewTitle
	if title == "" && args[1] != "-" {
		title = args[1]
	}

	c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	req := &dto.ReviewRequest{Document: doc, Title: title, Retrieval: retrievalFlags()}

	if !streamFlag {
		res, err := c.QueryService.RunReview(ctx, args[0], nil, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	prepared, err := c.QueryService.PrepareReview(ctx, args[0], nil, req)
	if err != nil {
		return err
	}
	return printStream(ctx, func(ctx context.Context, sink stream.Sink) error {
		return c.QueryService.StreamReview(ctx, prepared, sink)
	})
}
