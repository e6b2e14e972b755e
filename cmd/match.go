package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
)

var matchCmd = &cobra.Command{
	Use:   "match <request-id>",
	Short: "Find the best nanny for a stored request",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		match(args[0])
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func match(id string) {
	ctx := context.Background()
	a := mustApplication(ctx)
	defer a.Close()

	req, err := a.requests.Get(ctx, id)
	if err != nil {
		a.logger.Fatal("getting the request", zap.Error(err))
	}

	candidates, err := a.nannies.List(ctx)
	if err != nil {
		a.logger.Fatal("listing nannies", zap.Error(err))
	}

	result, shortlist := a.matcher.FindBestMatchDetailed(ctx, req, candidates)

	printJSON(struct {
		Result    domain.MatchResult       `json:"result"`
		Shortlist []domain.RankedCandidate `json:"shortlist"`
	}{result, shortlist})
}
