package scoring_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/scoring"
)

func TestModel_Score(t *testing.T) {
	Convey("Given a model with the default policy", t, func() {
		model := scoring.New()

		Convey("When request and candidate share city, age and a requirement", func() {
			req := domain.ParentRequest{City: "Moscow", ChildAge: "3", Requirements: []string{"pets"}}
			nanny := domain.NannyProfile{City: "Moscow, South", IsVerified: true, About: "loves pets and kids age 3"}

			score, reasons := model.Score(req, nanny)

			Convey("Then every matching rule contributes", func() {
				So(score, ShouldBeGreaterThanOrEqualTo, 88)
				So(score, ShouldEqual, 40+20+12+10+6)
			})

			Convey("And reasons follow the rule order", func() {
				So(reasons, ShouldResemble, []string{
					scoring.ReasonLocation,
					scoring.ReasonVerified,
					scoring.ReasonChildAge,
					"requirements: pets",
				})
			})
		})

		Convey("When both sides are empty", func() {
			score, reasons := model.Score(domain.ParentRequest{}, domain.NannyProfile{})

			Convey("Then only the base score is given", func() {
				So(score, ShouldEqual, 40)
				So(reasons, ShouldBeEmpty)
			})
		})

		Convey("When the city is matched in the other direction", func() {
			score, reasons := model.Score(
				domain.ParentRequest{City: "Saint Petersburg, Center"},
				domain.NannyProfile{City: "saint petersburg"},
			)
			So(score, ShouldEqual, 60)
			So(reasons, ShouldResemble, []string{scoring.ReasonLocation})
		})

		Convey("When the schedule term appears in skills", func() {
			score, reasons := model.Score(
				domain.ParentRequest{Schedule: "Evenings"},
				domain.NannyProfile{Skills: []string{"cooking", "evenings and weekends"}},
			)
			So(score, ShouldEqual, 46)
			So(reasons, ShouldResemble, []string{scoring.ReasonSchedule})
		})

		Convey("When the child age is listed in age groups", func() {
			score, _ := model.Score(
				domain.ParentRequest{ChildAge: "1-3"},
				domain.NannyProfile{ChildAges: []string{"0-1", "1-3"}},
			)
			So(score, ShouldEqual, 50)
		})

		Convey("When many requirements match", func() {
			req := domain.ParentRequest{Requirements: []string{"pets", "cooking", "english", "swimming", "PETS"}}
			nanny := domain.NannyProfile{About: "pets, cooking, english lessons and swimming"}

			score, reasons := model.Score(req, nanny)

			Convey("Then the requirement bonus is capped and the reason lists two terms", func() {
				So(score, ShouldEqual, 40+18)
				So(reasons, ShouldResemble, []string{"requirements: pets, cooking"})
			})
		})

		Convey("When risk profiles mirror each other on every signal", func() {
			req := domain.ParentRequest{RiskProfile: &domain.ParentRiskProfile{
				FamilyStyle:     "warm",
				DisciplineTone:  "gentle",
				Communication:   "daily",
				PersonalityType: "introvert",
			}}
			nanny := domain.NannyProfile{RiskProfile: &domain.NannyRiskProfile{
				DisciplineStyle: "Gentle",
				Communication:   "daily",
				PersonalityType: "introvert",
			}}

			score, reasons := model.Score(req, nanny)

			Convey("Then the style bonus is capped and reported once", func() {
				So(score, ShouldEqual, 40+18)
				So(reasons, ShouldResemble, []string{scoring.ReasonStyle})
			})
		})

		Convey("When only communication cadence matches", func() {
			score, _ := model.Score(
				domain.ParentRequest{RiskProfile: &domain.ParentRiskProfile{Communication: "weekly"}},
				domain.NannyProfile{RiskProfile: &domain.NannyRiskProfile{Communication: "weekly"}},
			)
			So(score, ShouldEqual, 44)
		})

		Convey("When a child stress response pairs with the candidate approach", func() {
			score, _ := model.Score(
				domain.ParentRequest{RiskProfile: &domain.ParentRiskProfile{StressResponse: "anxious"}},
				domain.NannyProfile{RiskProfile: &domain.NannyRiskProfile{StressResponse: "calming"}},
			)
			So(score, ShouldEqual, 48)
		})

		Convey("When the candidate has no risk profile", func() {
			score, reasons := model.Score(
				domain.ParentRequest{RiskProfile: &domain.ParentRiskProfile{FamilyStyle: "warm", MissingTraits: []string{"music"}}},
				domain.NannyProfile{},
			)
			So(score, ShouldEqual, 40)
			So(reasons, ShouldBeEmpty)
		})

		Convey("When the candidate strengths complement the family", func() {
			req := domain.ParentRequest{RiskProfile: &domain.ParentRiskProfile{
				MissingTraits: []string{"patience", "creativity", "music"},
			}}
			nanny := domain.NannyProfile{RiskProfile: &domain.NannyRiskProfile{
				Strengths: []string{"Music", "patience", "creativity"},
			}}

			score, reasons := model.Score(req, nanny)

			Convey("Then the complement bonus is capped independently of style", func() {
				So(score, ShouldEqual, 40+12)
				So(reasons, ShouldResemble, []string{"complements family: patience, creativity"})
			})
		})

		Convey("When the candidate has a soft-skills score", func() {
			Convey("Then the bonus is the rounded score divided by twenty", func() {
				score, reasons := model.Score(domain.ParentRequest{}, domain.NannyProfile{
					SoftSkills: &domain.SoftSkillsProfile{RawScore: 90, DominantStyle: "steady"},
				})
				So(score, ShouldEqual, 45)
				So(reasons, ShouldResemble, []string{scoring.ReasonSoftSkills})
			})

			Convey("Then the bonus is capped", func() {
				score, _ := model.Score(domain.ParentRequest{}, domain.NannyProfile{
					SoftSkills: &domain.SoftSkillsProfile{RawScore: 400},
				})
				So(score, ShouldEqual, 48)
			})

			Convey("Then a zero score adds nothing but is still mentioned", func() {
				score, reasons := model.Score(domain.ParentRequest{}, domain.NannyProfile{
					SoftSkills: &domain.SoftSkillsProfile{},
				})
				So(score, ShouldEqual, 40)
				So(reasons, ShouldResemble, []string{scoring.ReasonSoftSkills})
			})
		})

		Convey("When every rule fires", func() {
			req := domain.ParentRequest{
				City:         "Kazan",
				ChildAge:     "5",
				Schedule:     "mornings",
				Requirements: []string{"art", "music", "math"},
				RiskProfile: &domain.ParentRiskProfile{
					FamilyStyle:   "structured",
					Communication: "daily",
					MissingTraits: []string{"sports", "languages"},
				},
			}
			nanny := domain.NannyProfile{
				City:       "Kazan",
				IsVerified: true,
				About:      "teaches art, music and math to kids aged 5, mornings",
				SoftSkills: &domain.SoftSkillsProfile{RawScore: 100},
				RiskProfile: &domain.NannyRiskProfile{
					DisciplineStyle: "firm",
					Communication:   "daily",
					Strengths:       []string{"sports", "languages"},
				},
			}

			score, reasons := model.Score(req, nanny)

			Convey("Then the score is clamped to 100", func() {
				So(score, ShouldEqual, 100)
				So(len(reasons), ShouldEqual, 8)
			})
		})

		Convey("When the same pair is scored twice", func() {
			req := domain.ParentRequest{City: "Moscow", Requirements: []string{"pets", "cooking", "english"}}
			nanny := domain.NannyProfile{City: "Moscow", About: "english, cooking, pets", IsVerified: true}

			s1, r1 := model.Score(req, nanny)
			s2, r2 := model.Score(req, nanny)

			Convey("Then the output is identical", func() {
				So(s1, ShouldEqual, s2)
				So(r1, ShouldResemble, r2)
			})
		})
	})

	Convey("Given a model with a custom policy", t, func() {
		policy := scoring.DefaultPolicy()
		policy.Base = 10
		policy.Verified = 50
		model := scoring.New(scoring.WithPolicy(policy))

		score, _ := model.Score(domain.ParentRequest{}, domain.NannyProfile{IsVerified: true})
		So(score, ShouldEqual, 60)
		So(model.Policy().Base, ShouldEqual, 10)
	})

	Convey("Given a policy that was never validated", t, func() {
		policy := scoring.DefaultPolicy()
		policy.SoftSkillsDivisor = 0
		policy.ReasonTerms = 0
		model := scoring.New(scoring.WithPolicy(policy))

		req := domain.ParentRequest{Requirements: []string{"pets", "cooking", "english"}}
		nanny := domain.NannyProfile{
			About:      "pets, cooking, english",
			SoftSkills: &domain.SoftSkillsProfile{RawScore: 90},
		}

		score, reasons := model.Score(req, nanny)

		Convey("Then the soft-skills bonus is skipped and every matched term is listed", func() {
			So(score, ShouldEqual, policy.Base+policy.RequirementCap)
			So(reasons, ShouldContain, "requirements: pets, cooking, english")
			So(reasons, ShouldContain, scoring.ReasonSoftSkills)
		})
	})
}

func TestLoadPolicy(t *testing.T) {
	Convey("Given a policy file", t, func() {
		dir := t.TempDir()
		write := func(body string) string {
			path := filepath.Join(dir, "policy.yaml")
			So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
			return path
		}

		Convey("When it overrides a subset of keys", func() {
			path := write("base: 30\nstyle_cap: 10\nstyle_rules:\n  - signal: communication\n    parent: \"*\"\n    candidate: \"*\"\n    weight: 7\n")
			policy, err := scoring.LoadPolicy(path)

			Convey("Then missing keys keep defaults and the rule table is replaced", func() {
				So(err, ShouldBeNil)
				So(policy.Base, ShouldEqual, 30)
				So(policy.Location, ShouldEqual, 20)
				So(policy.StyleCap, ShouldEqual, 10)
				So(policy.StyleRules, ShouldHaveLength, 1)
				So(policy.StyleRules[0].Weight, ShouldEqual, 7)
			})
		})

		Convey("When the divisor is zero", func() {
			_, err := scoring.LoadPolicy(write("soft_skills_divisor: 0\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("When a rule uses an unknown signal", func() {
			_, err := scoring.LoadPolicy(write("style_rules:\n  - signal: zodiac\n    parent: leo\n    candidate: leo\n    weight: 5\n"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "zodiac")
		})

		Convey("When the file does not exist", func() {
			_, err := scoring.LoadPolicy(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
