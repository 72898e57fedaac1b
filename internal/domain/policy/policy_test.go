package policy_test

import (
	"context"
	"testing"

	"github.com/okian/crewscore/internal/domain/model"
	policy "github.com/okian/crewscore/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func passedGate() model.SkillGate {
	return model.SkillGate{RoleCompetenceScore: 80, GateThreshold: 50, Passed: true}
}

func TestPolicy_Decide(t *testing.T) {
	Convey("Given a policy with default thresholds", t, func() {
		p := policy.NewPolicy()
		ctx := context.Background()

		Convey("When an auto-reject flag is present", func() {
			flags := []model.RiskFlag{{
				Code:             "RF_AGGRESSION",
				Name:             "Aggressive or toxic language",
				Severity:         model.SeverityCritical,
				CausesAutoReject: true,
				Evidence:         []string{"I punched a colleague", "threatened the cook", "screamed at the cadet"},
			}}

			Convey("Then any score yields REJECT", func() {
				for score := 0.0; score <= 100; score += 5 {
					d := p.Decide(ctx, "iv-1", score, passedGate(), flags)
					So(d.Outcome, ShouldEqual, model.OutcomeReject)
				}
			})

			Convey("And the reason cites the flag with at most two evidence snippets", func() {
				d := p.Decide(ctx, "iv-1", 95, passedGate(), flags)
				So(d.Reason, ShouldContainSubstring, "Aggressive or toxic language")
				So(d.Reason, ShouldContainSubstring, "I punched a colleague")
				So(d.Reason, ShouldContainSubstring, "threatened the cook")
				So(d.Reason, ShouldNotContainSubstring, "screamed at the cadet")
			})
		})

		Convey("When the skill gate failed", func() {
			gate := model.SkillGate{RoleCompetenceScore: 30, GateThreshold: 50, Passed: false}
			d := p.Decide(ctx, "iv-2", 88, gate, nil)

			Convey("Then the outcome is HOLD, never an automatic reject", func() {
				So(d.Outcome, ShouldEqual, model.OutcomeHold)
				So(d.Reason, ShouldContainSubstring, "skill gate failed")
			})
		})

		Convey("When the score clears the hire threshold", func() {
			d := p.Decide(ctx, "iv-3", 50, passedGate(), nil)

			Convey("Then the outcome is HIRE", func() {
				So(d.Outcome, ShouldEqual, model.OutcomeHire)
			})
		})

		Convey("When the score falls inside the hold band", func() {
			Convey("Then the upper edge is exclusive", func() {
				d := p.Decide(ctx, "iv-4", 49.9, passedGate(), nil)
				So(d.Outcome, ShouldEqual, model.OutcomeHold)
			})

			Convey("And the lower edge is inclusive", func() {
				d := p.Decide(ctx, "iv-5", 35, passedGate(), nil)
				So(d.Outcome, ShouldEqual, model.OutcomeHold)
			})
		})

		Convey("When the score falls below the hold band", func() {
			d := p.Decide(ctx, "iv-6", 34.9, passedGate(), nil)

			Convey("Then the outcome is REJECT", func() {
				So(d.Outcome, ShouldEqual, model.OutcomeReject)
			})
		})

		Convey("When non-blocking flags accompany a passing score", func() {
			flags := []model.RiskFlag{
				{Code: "RF_EVASIVE_ANSWERS", Name: "Evasive answering", Severity: model.SeverityLow},
				{Code: "RF_SAFETY_DISREGARD", Name: "Disregard for safety procedure", Severity: model.SeverityHigh},
			}
			d := p.Decide(ctx, "iv-7", 75, passedGate(), flags)

			Convey("Then the score still decides and the most severe flag is cited", func() {
				So(d.Outcome, ShouldEqual, model.OutcomeHire)
				So(d.Reason, ShouldContainSubstring, "Disregard for safety procedure")
				So(d.Reason, ShouldNotContainSubstring, "Evasive answering")
			})
		})

		Convey("When a decision is produced", func() {
			d := p.Decide(ctx, "iv-8", 60, passedGate(), nil)

			Convey("Then it carries the policy identity and the score", func() {
				So(d.InterviewID, ShouldEqual, "iv-8")
				So(d.FinalScore, ShouldEqual, 60)
				So(d.PolicyCode, ShouldNotBeBlank)
				So(d.PolicyVersion, ShouldNotBeBlank)
				So(d.DecidedAt.IsZero(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a policy with custom thresholds", t, func() {
		p := policy.NewPolicy(policy.WithThresholds(70, 40))
		ctx := context.Background()

		Convey("Then the bands move with the configuration", func() {
			So(p.Decide(ctx, "iv-9", 69.9, passedGate(), nil).Outcome, ShouldEqual, model.OutcomeHold)
			So(p.Decide(ctx, "iv-9", 70, passedGate(), nil).Outcome, ShouldEqual, model.OutcomeHire)
			So(p.Decide(ctx, "iv-9", 39.9, passedGate(), nil).Outcome, ShouldEqual, model.OutcomeReject)
		})
	})

	Convey("Given a policy with a custom identity", t, func() {
		p := policy.NewPolicy(policy.WithIdentity("crewscore.lenient", "v2"))
		d := p.Decide(context.Background(), "iv-10", 60, passedGate(), nil)

		Convey("Then decisions are stamped with it", func() {
			So(d.PolicyCode, ShouldEqual, "crewscore.lenient")
			So(d.PolicyVersion, ShouldEqual, "v2")
		})
	})
}
