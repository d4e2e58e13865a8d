package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"support-assistant/pkg/metrics"
)

func newAskCommand(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer one message over the corpus with no conversation history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			eng, err := buildEngine(ctx, cfg, logger, metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))
			if err != nil {
				return err
			}

			message := strings.Join(args, " ")
			hits := eng.matcher.Search(message, cfg.KnowledgeHits)
			reply := eng.orchestrator.Respond(ctx, message, nil, hits)
			suggestion := eng.advisor.Suggest(ctx, message, nil, hits)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reply:    %s\n", reply.Text)
			fmt.Fprintf(out, "escalate: %t\n", reply.ShouldEscalate)
			fmt.Fprintf(out, "reason:   %s\n", reply.Reason)
			fmt.Fprintf(out, "source:   %s\n", reply.Source)
			fmt.Fprintf(out, "next actions (%s):\n", suggestion.Reason)
			for _, action := range suggestion.Actions {
				fmt.Fprintf(out, "  - %s\n", action)
			}
			return nil
		},
	}
	return cmd
}

func newSearchCommand(envFile *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the best knowledge-base matches for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.KnowledgeHits
			}

			eng, err := buildEngine(context.Background(), cfg, newLogger(cfg.LogLevel), metrics.NewMetricsWithRegisterer(prometheus.NewRegistry()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			hits := eng.matcher.Search(strings.Join(args, " "), limit)
			if len(hits) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, hit := range hits {
				fmt.Fprintf(out, "%.3f  %-12s %s\n", hit.Score, hit.Record.ID, hit.Record.Question)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (defaults to KNOWLEDGE_HITS)")
	return cmd
}
