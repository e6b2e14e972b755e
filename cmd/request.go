package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/lifecycle"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Create and moderate parent requests",
}

var requestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a new request",
	Run: func(cmd *cobra.Command, _ []string) {
		in := lifecycle.CreateInput{}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			if err := readJSONFile(file, &in); err != nil {
				fatal(err)
			}
		}
		flagString(cmd, "city", &in.City)
		flagString(cmd, "child-age", &in.ChildAge)
		flagString(cmd, "schedule", &in.Schedule)
		flagString(cmd, "budget", &in.Budget)
		flagString(cmd, "comment", &in.Comment)
		if cmd.Flags().Changed("requirement") {
			in.Requirements, _ = cmd.Flags().GetStringSlice("requirement")
		}
		if cmd.Flags().Changed("test") {
			in.TestData, _ = cmd.Flags().GetBool("test")
		}

		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Create(ctx, in)
		})
	},
}

var requestGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a request",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Get(ctx, args[0])
		})
	},
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		a := mustApplication(ctx)
		defer a.Close()

		reqs, err := a.requests.List(ctx)
		if err != nil {
			a.logger.Fatal("listing requests", zap.Error(err))
		}
		printJSON(reqs)
	},
}

var requestUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Apply a JSON patch file to a request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch lifecycle.Patch
		file, _ := cmd.Flags().GetString("file")
		if err := readJSONFile(file, &patch); err != nil {
			fatal(err)
		}

		actor, _ := cmd.Flags().GetString("actor")
		note, _ := cmd.Flags().GetString("note")
		allow, _ := cmd.Flags().GetBool("allow-approved-edit")
		opts := lifecycle.UpdateOptions{Actor: domain.Actor(actor), Note: note, AllowApprovedEdit: allow}

		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Update(ctx, args[0], patch, opts)
		})
	},
}

var requestReviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Take a new request into review",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Review(ctx, args[0])
		})
	},
}

var requestApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a request under review; it becomes read-only",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		note, _ := cmd.Flags().GetString("note")
		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Approve(ctx, args[0], note)
		})
	},
}

var requestRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a request under review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Reject(ctx, args[0], reason)
		})
	},
}

var requestResubmitCmd = &cobra.Command{
	Use:   "resubmit <id>",
	Short: "Send a rejected request back to review",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withRequests(func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error) {
			return svc.Resubmit(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(
		requestCreateCmd,
		requestGetCmd,
		requestListCmd,
		requestUpdateCmd,
		requestReviewCmd,
		requestApproveCmd,
		requestRejectCmd,
		requestResubmitCmd,
	)

	requestCreateCmd.Flags().StringP("file", "f", "", "read the request from a JSON file; flags override its fields")
	requestCreateCmd.Flags().String("city", "", "city")
	requestCreateCmd.Flags().String("child-age", "", "child age or age group")
	requestCreateCmd.Flags().String("schedule", "", "schedule, e.g. evenings")
	requestCreateCmd.Flags().String("budget", "", "budget")
	requestCreateCmd.Flags().String("comment", "", "free-form comment")
	requestCreateCmd.Flags().StringSlice("requirement", nil, "requirement term, repeatable")
	requestCreateCmd.Flags().Bool("test", false, "mark the request as test data")

	requestUpdateCmd.Flags().StringP("file", "f", "", "JSON patch file")
	requestUpdateCmd.Flags().String("actor", string(domain.ActorUser), "who makes the change: user or admin")
	requestUpdateCmd.Flags().String("note", "", "note for the audit trail")
	requestUpdateCmd.Flags().Bool("allow-approved-edit", false, "edit an approved request (requires --actor admin)")
	requestUpdateCmd.MarkFlagRequired("file")

	requestApproveCmd.Flags().String("note", "", "note for the audit trail")
	requestRejectCmd.Flags().String("reason", "", "reason shown to the parent")
	requestRejectCmd.MarkFlagRequired("reason")
}

// withRequests runs op against the lifecycle service and prints the result.
func withRequests(op func(ctx context.Context, svc *lifecycle.Service) (domain.ParentRequest, error)) {
	ctx := context.Background()
	a := mustApplication(ctx)
	defer a.Close()

	req, err := op(ctx, a.requests)
	if err != nil {
		a.logger.Fatal("request operation failed", zap.Error(err))
	}
	printJSON(req)
}

func flagString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
