package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/crewscore/internal/adapters/repository"
	service "github.com/okian/crewscore/internal/app"
	"github.com/okian/crewscore/internal/config"
	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func cleanInterview(id string) model.Interview {
	return model.Interview{
		InterviewID:      id,
		PositionCode:     "bosun",
		PositionIndustry: "maritime",
		IndustryCode:     "maritime",
		SourceChannel:    "referral",
		LanguageScore:    80,
		Answers: []model.Answer{
			{Slot: 1, CompetencyCode: "communication", Rating: 4},
			{Slot: 2, CompetencyCode: "technical", Rating: 4},
			{Slot: 3, CompetencyCode: "problem_solving", Rating: 4},
			{Slot: 4, CompetencyCode: "teamwork", Rating: 4},
			{Slot: 5, CompetencyCode: "safety", Rating: 4},
			{Slot: 6, CompetencyCode: "role_competence", Rating: 4},
		},
		CompletedAt: time.Now().UTC(),
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a service built from configuration", t, func() {
		cfg := config.New()
		svc := service.New(service.FromConfig(cfg))

		Convey("Then it constructs", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a fresh service", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("When starting and stopping", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			svc.Stop(ctx)
		})
	})
}

func TestService_ScoreAndDecide(t *testing.T) {
	Convey("Given a started service with no active weight version", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When assessing a clean candidate", func() {
			res, err := svc.ScoreAndDecide(ctx, cleanInterview("iv-1"))

			Convey("Then scoring falls back to the built-in defaults", func() {
				So(err, ShouldBeNil)
				So(res.Scored.UsedDefaults, ShouldBeTrue)
				So(res.Scored.ModelVersion, ShouldEqual, 0)
			})

			Convey("And the pipeline produces a full assessment", func() {
				So(err, ShouldBeNil)
				So(res.Scored.RawFinalScore, ShouldBeGreaterThan, 0)
				So(res.Decision.Outcome, ShouldBeIn, model.OutcomeHire, model.OutcomeHold, model.OutcomeReject)
				So(res.Decision.InterviewID, ShouldEqual, "iv-1")
			})

			Convey("And a small pool skips calibration", func() {
				So(err, ShouldBeNil)
				So(res.Calibration.CalibrationVersion, ShouldEqual, "none")
			})
		})

		Convey("When assessing the same interview twice", func() {
			_, err := svc.ScoreAndDecide(ctx, cleanInterview("iv-1"))
			So(err, ShouldBeNil)
			_, err = svc.ScoreAndDecide(ctx, cleanInterview("iv-1"))

			Convey("Then the second decision is refused", func() {
				So(err, ShouldWrap, repository.ErrDecisionExists)
			})
		})

		Convey("When a correction is recorded", func() {
			res, err := svc.ScoreAndDecide(ctx, cleanInterview("iv-2"))
			So(err, ShouldBeNil)

			redo := res.Decision
			redo.Outcome = model.OutcomeReject
			redo.Reason = "withdrew from the process"
			So(svc.Redecide(ctx, redo), ShouldBeNil)

			Convey("Then correcting an unknown interview fails", func() {
				So(svc.Redecide(ctx, model.Decision{InterviewID: "iv-ghost"}), ShouldWrap, repository.ErrNotFound)
			})
		})

		Convey("When a position fills up to the calibration pool size", func() {
			var tenth, eleventh service.Assessment
			for i := 0; i < 11; i++ {
				res, err := svc.ScoreAndDecide(ctx, cleanInterview(fmt.Sprintf("iv-pool-%02d", i)))
				So(err, ShouldBeNil)
				switch i {
				case 9:
					tenth = res
				case 10:
					eleventh = res
				}
			}

			Convey("Then each candidate is calibrated against prior interviews only", func() {
				So(tenth.Calibration.CalibrationVersion, ShouldEqual, "none")
				So(tenth.Calibration.SampleSize, ShouldEqual, 9)
				So(eleventh.Calibration.CalibrationVersion, ShouldNotEqual, "none")
				So(eleventh.Calibration.SampleSize, ShouldEqual, 10)
			})
		})
	})
}

func TestService_IngestOutcome(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When ingesting an outcome", func() {
			ok := svc.IngestOutcome(ctx, model.InterviewOutcome{
				OutcomeID:    "oc-1",
				InterviewID:  "iv-1",
				OutcomeScore: 80,
				RecordedAt:   time.Now().UTC(),
			})

			Convey("Then it is accepted and eventually drained", func() {
				So(ok, ShouldBeTrue)
				So(waitFor(func() bool { return svc.OutcomeBacklog(ctx) == 0 }), ShouldBeTrue)
			})
		})

		Convey("When the same outcome id arrives twice", func() {
			first := svc.IngestOutcome(ctx, model.InterviewOutcome{OutcomeID: "oc-1", InterviewID: "iv-1"})
			second := svc.IngestOutcome(ctx, model.InterviewOutcome{OutcomeID: "oc-1", InterviewID: "iv-1"})

			Convey("Then the duplicate reports accepted without re-enqueueing", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeTrue)
				So(waitFor(func() bool { return svc.OutcomeBacklog(ctx) == 0 }), ShouldBeTrue)
			})
		})

		Convey("When the outcome carries no explicit id", func() {
			first := svc.IngestOutcome(ctx, model.InterviewOutcome{InterviewID: "iv-1", OutcomeSource: "crewing_system"})
			second := svc.IngestOutcome(ctx, model.InterviewOutcome{InterviewID: "iv-1", OutcomeSource: "crewing_system"})
			third := svc.IngestOutcome(ctx, model.InterviewOutcome{InterviewID: "iv-1", OutcomeSource: "manual_followup"})

			Convey("Then interview and source together deduplicate", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeTrue)
				So(third, ShouldBeTrue)
			})
		})
	})
}

func TestService_WeightLifecycle(t *testing.T) {
	Convey("Given a service with a shared weight store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryWeightStore()
		svc := service.New(service.WithWeightStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a candidate version exists", func() {
			mw, err := store.Create(ctx, model.DefaultWeightSet(), "seeded")
			So(err, ShouldBeNil)
			So(store.Promote(ctx, mw.Version), ShouldBeNil)

			Convey("Then activating it takes scoring off the defaults", func() {
				So(svc.ActivateWeightVersion(ctx, mw.Version), ShouldBeNil)

				res, err := svc.ScoreAndDecide(ctx, cleanInterview("iv-w1"))
				So(err, ShouldBeNil)
				So(res.Scored.UsedDefaults, ShouldBeFalse)
				So(res.Scored.ModelVersion, ShouldEqual, mw.Version)
			})

			Convey("And freezing it blocks later activation", func() {
				So(svc.FreezeWeightVersion(ctx, mw.Version, "pending review"), ShouldBeNil)
				So(svc.ActivateWeightVersion(ctx, mw.Version), ShouldWrap, repository.ErrVersionFrozen)
			})
		})

		Convey("When reading the history", func() {
			_, err := store.Create(ctx, model.DefaultWeightSet(), "one")
			So(err, ShouldBeNil)
			_, err = store.Create(ctx, model.DefaultWeightSet(), "two")
			So(err, ShouldBeNil)

			history, err := svc.WeightHistory(ctx)

			Convey("Then every version returns, oldest first", func() {
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 2)
				So(history[0].Version, ShouldBeLessThan, history[1].Version)
			})
		})

		Convey("When activating an unknown version", func() {
			So(svc.ActivateWeightVersion(ctx, 99), ShouldWrap, repository.ErrVersionNotFound)
		})
	})
}

func TestService_RunLearningCycle(t *testing.T) {
	Convey("Given a service with scored interviews and outcomes on record", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		for i := 0; i < 40; i++ {
			id := fmt.Sprintf("iv-%02d", i)
			res, err := svc.ScoreAndDecide(ctx, cleanInterview(id))
			So(err, ShouldBeNil)

			ok := svc.IngestOutcome(ctx, model.InterviewOutcome{
				OutcomeID:    "oc-" + id,
				InterviewID:  id,
				Hired:        res.Decision.Outcome == model.OutcomeHire,
				OutcomeScore: res.Decision.FinalScore,
				RecordedAt:   time.Now().UTC(),
			})
			So(ok, ShouldBeTrue)
		}
		So(waitFor(func() bool { return svc.OutcomeBacklog(ctx) == 0 }), ShouldBeTrue)
		// Leave the workers a beat to finish the records in flight.
		time.Sleep(50 * time.Millisecond)

		Convey("When running a dry-run cycle", func() {
			report, err := svc.RunLearningCycle(ctx, 30, "", true)

			Convey("Then the batch joins and a status is reported", func() {
				So(err, ShouldBeNil)
				So(report.RunID, ShouldNotBeBlank)
				So(report.DryRun, ShouldBeTrue)
				So(report.ProcessedCount, ShouldBeGreaterThanOrEqualTo, 30)
				So(report.Status, ShouldBeIn,
					service.CycleProposed,
					service.CycleNoImprovement,
					service.CycleBlockedVolatility,
					service.CycleBlockedSuddenShift,
				)
			})

			Convey("And nothing is persisted", func() {
				So(err, ShouldBeNil)
				So(report.NewWeightVersion, ShouldEqual, 0)

				history, err := svc.WeightHistory(ctx)
				So(err, ShouldBeNil)
				So(history, ShouldBeEmpty)
			})

			Convey("And a second dry run yields the same proposal", func() {
				again, err := svc.RunLearningCycle(ctx, 30, "", true)
				So(err, ShouldBeNil)
				So(again.Status, ShouldEqual, report.Status)
				So(again.Deltas, ShouldResemble, report.Deltas)
				So(again.OldMAE, ShouldEqual, report.OldMAE)
				So(again.NewMAE, ShouldEqual, report.NewMAE)
			})
		})

		Convey("When filtering by an industry nobody is in", func() {
			report, err := svc.RunLearningCycle(ctx, 30, "aviation", true)

			Convey("Then the batch is insufficient", func() {
				So(err, ShouldBeNil)
				So(report.Status, ShouldEqual, service.CycleInsufficientSamples)
			})
		})

		Convey("When the window excludes every outcome", func() {
			// All outcomes were recorded just now; a cycle can still see
			// them, so shrink the window via a filter instead is not
			// possible - use a tiny service with no outcomes at all.
			empty := service.New()
			So(empty.Start(ctx), ShouldBeNil)
			defer empty.Stop(ctx)

			report, err := empty.RunLearningCycle(ctx, 30, "", false)

			Convey("Then the cycle reports insufficient samples, not an error", func() {
				So(err, ShouldBeNil)
				So(report.Status, ShouldEqual, service.CycleInsufficientSamples)
			})
		})

		Convey("When the batch cannot beat the current model", func() {
			// Every outcome equals the decided score, so the candidate
			// weight set cannot reduce MAE and the cycle must stand pat.
			report, err := svc.RunLearningCycle(ctx, 30, "", false)
			So(err, ShouldBeNil)
			So(report.Status, ShouldEqual, service.CycleNoImprovement)

			Convey("Then no weight version is written", func() {
				So(report.NewWeightVersion, ShouldEqual, 0)
				history, herr := svc.WeightHistory(ctx)
				So(herr, ShouldBeNil)
				So(history, ShouldBeEmpty)
			})

			Convey("And every joined sample still gets an audit row", func() {
				events, eerr := svc.LearningEvents(ctx, report.RunID)
				So(eerr, ShouldBeNil)
				So(len(events), ShouldEqual, report.ProcessedCount)
				for _, e := range events {
					So(e.Status, ShouldEqual, model.LearningProcessedNoChange)
					So(e.InterviewID, ShouldNotBeBlank)
				}
			})
		})

		Convey("When running a persisting cycle", func() {
			report, err := svc.RunLearningCycle(ctx, 30, "", false)

			Convey("Then the audit trail records every joined sample", func() {
				So(err, ShouldBeNil)
				So(report.ProcessedCount, ShouldBeGreaterThanOrEqualTo, 30)
			})

			Convey("And a version is persisted only for an improved, unblocked proposal", func() {
				So(err, ShouldBeNil)
				history, herr := svc.WeightHistory(ctx)
				So(herr, ShouldBeNil)
				if report.Status == service.CycleProposed {
					So(report.NewWeightVersion, ShouldBeGreaterThan, 0)
					So(len(history), ShouldEqual, 1)
					So(history[0].State, ShouldEqual, model.WeightCandidate)
				} else {
					So(report.NewWeightVersion, ShouldEqual, 0)
					So(history, ShouldBeEmpty)
				}
			})
		})
	})
}

func TestService_StabilityReport(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When nothing has happened yet", func() {
			report, err := svc.StabilityReport(ctx)

			Convey("Then the report is clean", func() {
				So(err, ShouldBeNil)
				So(report.VolatilityBlocks, ShouldEqual, 0)
				So(report.SuddenShiftBlocks, ShouldEqual, 0)
				So(report.UnstableFeatures, ShouldBeEmpty)
				So(report.ActiveVersion, ShouldEqual, 0)
			})
		})
	})
}
