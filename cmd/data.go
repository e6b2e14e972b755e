package cmd

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Administrative data operations",
}

var dataClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete requests and nanny profiles locally and remotely",
	Run: func(cmd *cobra.Command, _ []string) {
		testOnly, _ := cmd.Flags().GetBool("test-only")
		yes, _ := cmd.Flags().GetBool("yes")
		clearData(testOnly, yes)
	},
}

var dataSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write demo nanny profiles",
	Run: func(cmd *cobra.Command, _ []string) {
		count, _ := cmd.Flags().GetInt("count")
		seed(count)
	},
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataClearCmd, dataSeedCmd)

	dataClearCmd.Flags().Bool("test-only", false, "delete only test and demo data")
	dataClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	dataSeedCmd.Flags().Int("count", len(demoNannies), "number of demo profiles")
}

func clearData(testOnly, yes bool) {
	ctx := context.Background()
	a := mustApplication(ctx)
	defer a.Close()

	if !yes {
		scope := "ALL requests and nanny profiles"
		if testOnly {
			scope = "test and demo data"
		}
		prompt := promptui.Select{
			Label: fmt.Sprintf("Delete %s?", scope),
			Items: []string{PromptNo, PromptYes},
		}
		_, answer, err := prompt.Run()
		if err != nil {
			a.logger.Fatal("exiting", zap.Error(err))
		}
		if answer != PromptYes {
			a.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	removed := make(map[string]int)
	for _, c := range a.clearers() {
		n, err := c.Clear(ctx, testOnly)
		if err != nil {
			a.logger.Fatal("clearing data", zap.String("collection", c.Collection()), zap.Error(err))
		}
		removed[c.Collection()] = n
	}

	printJSON(map[string]any{"testOnly": testOnly, "removed": removed})
}

var demoNannies = []domain.NannyProfile{
	{
		Name:       "Anna Petrova",
		City:       "Moscow",
		Experience: "8 years",
		About:      "Calm and patient, worked with toddlers age 1-3, evenings and weekends.",
		Skills:     []string{"first aid", "english", "cooking"},
		ChildAges:  []string{"0-1", "1-3"},
		IsVerified: true,
		SoftSkills: &domain.SoftSkillsProfile{RawScore: 82, DominantStyle: "gentle"},
		RiskProfile: &domain.NannyRiskProfile{
			DisciplineStyle: "gentle",
			Communication:   "open",
			StressResponse:  "calming",
			Strengths:       []string{"patience", "creativity"},
		},
	},
	{
		Name:       "Olga Smirnova",
		City:       "Saint Petersburg",
		Experience: "5 years",
		About:      "Former primary school tutor, homework help and structured days.",
		Skills:     []string{"math", "reading", "swimming"},
		ChildAges:  []string{"3-6", "6-10"},
		IsVerified: true,
		RiskProfile: &domain.NannyRiskProfile{
			DisciplineStyle: "firm",
			Communication:   "direct",
			StressResponse:  "calm",
			Strengths:       []string{"structure", "consistency"},
		},
	},
	{
		Name:       "Maria Ivanova",
		City:       "Kazan",
		Experience: "3 years",
		About:      "Energetic, loves outdoor games and pets, available full day.",
		Skills:     []string{"pets", "outdoor games", "music"},
		ChildAges:  []string{"3-6"},
		SoftSkills: &domain.SoftSkillsProfile{RawScore: 64, DominantStyle: "playful"},
	},
	{
		Name:       "Elena Kuznetsova",
		City:       "Moscow",
		Experience: "12 years",
		About:      "Newborn care specialist, night shifts.",
		Skills:     []string{"newborn care", "sleep training"},
		ChildAges:  []string{"0-1"},
		IsVerified: true,
		RiskProfile: &domain.NannyRiskProfile{
			DisciplineStyle: "flexible",
			StressResponse:  "patient",
			Strengths:       []string{"routine", "patience"},
		},
	},
	{
		Name:       "Irina Volkova",
		City:       "Novosibirsk",
		Experience: "2 years",
		About:      "Student of pedagogy, afternoons, english and drawing.",
		Skills:     []string{"english", "drawing"},
		ChildAges:  []string{"6-10"},
	},
}

// demoProfiles returns count demo profiles with stable demo ids.
func demoProfiles(count int) []domain.NannyProfile {
	if count <= 0 {
		return nil
	}
	out := make([]domain.NannyProfile, 0, count)
	for i := 0; i < count; i++ {
		p := demoNannies[i%len(demoNannies)]
		p.ID = fmt.Sprintf("demo_nanny_%02d", i+1)
		if i >= len(demoNannies) {
			p.Name = fmt.Sprintf("%s #%d", p.Name, i/len(demoNannies)+1)
		}
		out = append(out, p)
	}
	return out
}

func seed(count int) {
	ctx := context.Background()
	a := mustApplication(ctx)
	defer a.Close()

	for _, p := range demoProfiles(count) {
		if _, err := a.nannies.Save(ctx, p); err != nil {
			a.logger.Fatal("seeding", zap.String("id", p.ID), zap.Error(err))
		}
	}
	a.logger.Info("seeded demo nannies", zap.Int("count", count))
}
