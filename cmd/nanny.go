package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
)

var nannyCmd = &cobra.Command{
	Use:   "nanny",
	Short: "Register and list nanny profiles",
}

var nannyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save profiles from a JSON file (an object or an array)",
	Run: func(cmd *cobra.Command, _ []string) {
		file, _ := cmd.Flags().GetString("file")
		profiles, err := readProfiles(file)
		if err != nil {
			fatal(err)
		}

		ctx := context.Background()
		a := mustApplication(ctx)
		defer a.Close()

		saved := make([]domain.NannyProfile, 0, len(profiles))
		for _, p := range profiles {
			s, err := a.nannies.Save(ctx, p)
			if err != nil {
				a.logger.Fatal("saving nanny", zap.String("name", p.Name), zap.Error(err))
			}
			saved = append(saved, s)
		}
		printJSON(saved)
	},
}

var nannyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nanny profiles, newest first",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		a := mustApplication(ctx)
		defer a.Close()

		all, err := a.nannies.List(ctx)
		if err != nil {
			a.logger.Fatal("listing nannies", zap.Error(err))
		}
		printJSON(all)
	},
}

func init() {
	rootCmd.AddCommand(nannyCmd)
	nannyCmd.AddCommand(nannyAddCmd, nannyListCmd)

	nannyAddCmd.Flags().StringP("file", "f", "", "JSON file with one profile or an array of profiles")
	nannyAddCmd.MarkFlagRequired("file")
}

func readProfiles(path string) ([]domain.NannyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return decodeProfiles(data)
}

func decodeProfiles(data []byte) ([]domain.NannyProfile, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []domain.NannyProfile
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parsing profiles: %w", err)
		}
		return list, nil
	}

	var one domain.NannyProfile
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return []domain.NannyProfile{one}, nil
}
