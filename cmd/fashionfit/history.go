package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/app"
	"github.com/raushankrgupta/fashionfit/config"
	"github.com/raushankrgupta/fashionfit/models"
)

type historyOptions struct {
	limit  int
	user   string
	asJSON bool
}

func newHistoryCmd() *cobra.Command {
	var opts historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored try-on sessions, newest first",
		Long:  `Reads sessions from the store selected by STORE_BACKEND (file, redis or mongo).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum sessions to print (0 for all)")
	cmd.Flags().StringVar(&opts.user, "user", "", "only sessions of this user id")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func runHistory(cmd *cobra.Command, opts historyOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, err := app.OpenStores(ctx, config.LoadConfig(), zap.NewNop())
	defer a.Close(context.Background()) //nolint:errcheck
	if err != nil {
		return err
	}

	all, err := a.Sessions.List(ctx)
	if err != nil {
		return err
	}

	sessions := make([]models.TryOnSession, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if opts.user != "" && all[i].UserID != opts.user {
			continue
		}
		sessions = append(sessions, all[i])
		if opts.limit > 0 && len(sessions) == opts.limit {
			break
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tUSER\tHAIR\tSCORE\tMERGED")
	for _, s := range sessions {
		score := "-"
		if s.Recommendation != nil {
			score = fmt.Sprintf("%.0f", s.Recommendation.Score)
		}
		hair := s.HairstyleID
		if hair == "" {
			hair = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, time.UnixMilli(s.Timestamp).UTC().Format(time.RFC3339), s.UserID, hair, score, s.MergedImageURL)
	}
	return tw.Flush()
}
