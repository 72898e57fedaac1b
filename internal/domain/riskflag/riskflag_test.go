package riskflag_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/okian/crewscore/internal/domain/model"
	riskflag "github.com/okian/crewscore/internal/domain/riskflag"
	. "github.com/smartystreets/goconvey/convey"
)

func answers(texts ...string) []model.Answer {
	out := make([]model.Answer, len(texts))
	for i, t := range texts {
		out[i] = model.Answer{Slot: i + 1, CompetencyCode: "teamwork", Text: t}
	}
	return out
}

func TestCatalogDetector_Detect(t *testing.T) {
	Convey("Given the built-in catalogue", t, func() {
		d := riskflag.NewCatalogDetector()

		Convey("When answers contain aggressive language", func() {
			iv := model.Interview{
				InterviewID: "iv-1",
				Answers:     answers("I screamed at the deck crew until they listened"),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the aggression flag is raised as critical auto-reject", func() {
				So(len(flags), ShouldEqual, 1)
				So(flags[0].Code, ShouldEqual, "RF_AGGRESSION")
				So(flags[0].Severity, ShouldEqual, model.SeverityCritical)
				So(flags[0].CausesAutoReject, ShouldBeTrue)
			})

			Convey("And the evidence cites the matching answer", func() {
				So(flags[0].Evidence, ShouldNotBeEmpty)
				So(strings.ToLower(flags[0].Evidence[0]), ShouldContainSubstring, "screamed at")
			})
		})

		Convey("When answers show disregard for safety procedure", func() {
			iv := model.Interview{
				InterviewID: "iv-2",
				Answers:     answers("We were behind schedule so we skipped the drill that week"),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the safety flag is raised without auto-reject", func() {
				So(len(flags), ShouldEqual, 1)
				So(flags[0].Code, ShouldEqual, "RF_SAFETY_DISREGARD")
				So(flags[0].Severity, ShouldEqual, model.SeverityHigh)
				So(flags[0].CausesAutoReject, ShouldBeFalse)
			})
		})

		Convey("When several answers match the same rule", func() {
			iv := model.Interview{
				InterviewID: "iv-3",
				Answers: answers(
					"It was not my fault the cargo shifted",
					"The grounding was never my fault either",
				),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then one flag carries evidence from each answer", func() {
				So(len(flags), ShouldEqual, 1)
				So(flags[0].Code, ShouldEqual, "RF_BLAME_SHIFTING")
				So(len(flags[0].Evidence), ShouldEqual, 2)
			})
		})

		Convey("When answers match several rules", func() {
			iv := model.Interview{
				InterviewID: "iv-4",
				Answers: answers(
					"I don't remember that voyage",
					"Honestly, not my fault",
				),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then each rule produces its own flag", func() {
				codes := make([]string, len(flags))
				for i, f := range flags {
					codes[i] = f.Code
				}
				So(codes, ShouldContain, "RF_BLAME_SHIFTING")
				So(codes, ShouldContain, "RF_EVASIVE_ANSWERS")
			})
		})

		Convey("When answers are clean", func() {
			iv := model.Interview{
				InterviewID: "iv-5",
				Answers:     answers("We ran the drill, logged it, and briefed the relief watch"),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then no flags are raised", func() {
				So(flags, ShouldBeEmpty)
			})
		})

		Convey("When matching is case-insensitive", func() {
			iv := model.Interview{
				InterviewID: "iv-6",
				Answers:     answers("NO COMMENT"),
			}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the rule still fires", func() {
				So(len(flags), ShouldEqual, 1)
				So(flags[0].Code, ShouldEqual, "RF_EVASIVE_ANSWERS")
			})
		})

		Convey("When a very long answer matches", func() {
			long := strings.Repeat("the weather was heavy and the watch was long so ", 20) +
				"we skipped the drill " + strings.Repeat("and carried on with cargo operations ", 20)
			iv := model.Interview{InterviewID: "iv-7", Answers: answers(long)}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the evidence snippet stays bounded", func() {
				So(len(flags), ShouldEqual, 1)
				So(len(flags[0].Evidence[0]), ShouldBeLessThan, 200)
				So(flags[0].Evidence[0], ShouldContainSubstring, "skipped the drill")
			})
		})

		Convey("When a long multibyte answer matches mid-text", func() {
			long := strings.Repeat("é", 101) + " screamed at everyone " + strings.Repeat("é", 101)
			iv := model.Interview{InterviewID: "iv-8", Answers: answers(long)}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the trimmed evidence is still valid UTF-8", func() {
				So(len(flags), ShouldEqual, 1)
				So(utf8.ValidString(flags[0].Evidence[0]), ShouldBeTrue)
				So(flags[0].Evidence[0], ShouldContainSubstring, "screamed at")
			})
		})
	})

	Convey("Given a customized catalogue", t, func() {
		Convey("When a rule is added", func() {
			d := riskflag.NewCatalogDetector(riskflag.WithRule(riskflag.Rule{
				Code:     "RF_SUBSTANCE",
				Name:     "Substance use on duty",
				Severity: model.SeverityHigh,
				Keywords: []string{"drunk on watch"},
			}))
			iv := model.Interview{InterviewID: "iv-8", Answers: answers("He was drunk on watch twice")}
			flags := d.Detect(context.Background(), iv)

			Convey("Then the new rule fires", func() {
				So(len(flags), ShouldEqual, 1)
				So(flags[0].Code, ShouldEqual, "RF_SUBSTANCE")
			})
		})

		Convey("When a rule is removed", func() {
			d := riskflag.NewCatalogDetector(riskflag.WithoutRule("RF_EVASIVE_ANSWERS"))
			iv := model.Interview{InterviewID: "iv-9", Answers: answers("no comment")}
			flags := d.Detect(context.Background(), iv)

			Convey("Then it no longer fires", func() {
				So(flags, ShouldBeEmpty)
			})
		})
	})
}
