package main

import (
	"context"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/pkg/stream"

	"github.com/spf13/cobra"
)

var (
	experts   []string
	mode      string
	maxRounds int
)

var collaborateCmd = &cobra.Command{
	Use:   "collaborate <question>",
	Short: "Let several plugins deliberate on a question",
	Example: `  enginectl collaborate --expert tenancy-law --expert finance "Can my landlord keep the deposit?"
  enginectl collaborate -e tenancy-law -e finance -e tax --mode debate --rounds 2 --stream "..."`,
	Args: cobra.ExactArgs(1),
	RunE: runCollaborate,
}

func init() {
	collaborateCmd.Flags().StringSliceVarP(&experts, "expert", "e", nil, "Expert plugin slug (2 to 5, repeatable)")
	collaborateCmd.Flags().StringVar(&mode, "mode", "consensus", "debate, consensus or review")
	collaborateCmd.Flags().IntVar(&maxRounds, "rounds", 0, "Maximum rounds, 1 to 3 (default 3)")
	collaborateCmd.Flags().BoolVar(&streamFlag, "stream", false, "Print session events as they happen")
	_ = collaborateCmd.MarkFlagRequired("expert")
}

func runCollaborate(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	cfg, err := c.CollaborationService.Prepare(ctx, nil, &dto.CollaborationRequest{
		Experts:   experts,
		Query:     args[0],
		Mode:      mode,
		MaxRounds: maxRounds,
	})
	if err != nil {
		return err
	}

	if !streamFlag {
		res, err := c.CollaborationService.Run(ctx, cfg)
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	return printStream(ctx, func(ctx context.Context, sink stream.Sink) error {
		return c.CollaborationService.Stream(ctx, cfg, sink)
	})
}
