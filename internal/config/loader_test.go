package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "github.com/okian/crewscore/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

// clearEnv unsets every CREWSCORE_ variable so convey passes stay isolated;
// t.Setenv restores the originals when the test ends.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CREWSCORE_") {
			key := kv[:strings.Index(kv, "=")]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestNew(t *testing.T) {
	Convey("Given a default configuration", t, func() {
		cfg := config.New()

		Convey("Then the template weights sum to one", func() {
			var sum float64
			for _, w := range cfg.TemplateWeights {
				sum += w
			}
			So(sum, ShouldAlmostEqual, 1.0, 0.001)
		})

		Convey("And the decision bands are sane", func() {
			So(cfg.HireThreshold, ShouldEqual, 50)
			So(cfg.HoldLower, ShouldEqual, 35)
			So(cfg.HireThreshold, ShouldBeGreaterThan, cfg.HoldLower)
		})

		Convey("And the learning loop defaults are set", func() {
			So(cfg.LearningLookbackDays, ShouldEqual, 30)
			So(cfg.LearningMinSamples, ShouldEqual, 30)
			So(cfg.LearningMinObservations, ShouldEqual, 5)
			So(cfg.AutoActivate, ShouldBeFalse)
		})

		Convey("And the stability guard defaults are set", func() {
			So(cfg.VolatilityRatio, ShouldEqual, 0.20)
			So(cfg.BalanceThreshold, ShouldEqual, 0.30)
			So(cfg.StabilityMinSamples, ShouldEqual, 10)
		})

		Convey("And the weight store defaults to memory", func() {
			So(cfg.WeightStore, ShouldEqual, "memory")
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given the environment is clean", t, func() {
		clearEnv(t)
		ctx := context.Background()

		Convey("When loading without overrides", func() {
			cfg, err := config.Load(ctx)

			Convey("Then the defaults pass validation", func() {
				So(err, ShouldBeNil)
				So(cfg.MetricsAddr, ShouldEqual, ":9090")
				So(cfg.LogLevel, ShouldEqual, "info")
			})
		})

		Convey("When environment variables override scalars", func() {
			t.Setenv("CREWSCORE_HIRE_THRESHOLD", "60")
			t.Setenv("CREWSCORE_LOG_LEVEL", "debug")
			t.Setenv("CREWSCORE_AUTO_ACTIVATE", "true")
			cfg, err := config.Load(ctx)

			Convey("Then the overrides win over the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.HireThreshold, ShouldEqual, 60)
				So(cfg.LogLevel, ShouldEqual, "debug")
				So(cfg.AutoActivate, ShouldBeTrue)
			})
		})

		Convey("When a YAML file provides overrides", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "crewscore.yaml")
			yaml := "metrics_addr: \":9191\"\nlearning_lookback_days: 60\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			t.Setenv("CREWSCORE_CONFIG", path)

			cfg, err := config.Load(ctx)

			Convey("Then the file layers over the defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.MetricsAddr, ShouldEqual, ":9191")
				So(cfg.LearningLookbackDays, ShouldEqual, 60)
			})

			Convey("And the environment still wins over the file", func() {
				t.Setenv("CREWSCORE_METRICS_ADDR", ":9292")
				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.MetricsAddr, ShouldEqual, ":9292")
			})
		})

		Convey("When the config file is missing", func() {
			t.Setenv("CREWSCORE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
			_, err := config.Load(ctx)

			Convey("Then loading fails loudly", func() {
				So(err, ShouldWrap, config.ErrLoadConfig)
			})
		})

		Convey("When validation catches a bad value", func() {
			Convey("Such as an inverted decision band", func() {
				t.Setenv("CREWSCORE_HIRE_THRESHOLD", "30")
				_, err := config.Load(ctx)
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})

			Convey("Or an unknown weight store", func() {
				t.Setenv("CREWSCORE_WEIGHT_STORE", "oracle")
				_, err := config.Load(ctx)
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})

			Convey("Or a volatility ratio of zero", func() {
				t.Setenv("CREWSCORE_VOLATILITY_RATIO", "0")
				_, err := config.Load(ctx)
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}
