// Package calibration normalizes raw scores against their position pool.
//
// Raw scores are not comparable across positions with different question
// difficulty; a z-score against the pool's mean and standard deviation makes
// them comparable before any decision threshold applies.
package calibration

import (
	"context"
	"math"

	"github.com/okian/crewscore/internal/domain/model"
)

// Default calibration constants.
const (
	// Version identifies the current calibration algorithm.
	Version = "zscore-v1"
	// VersionNone marks results where the pool was too small to calibrate.
	VersionNone = "none"

	defaultMinPoolSize = 10
	stdDevFloor        = 1.0 // avoids division by zero on flat pools
	centerScore        = 50
	zSlope             = 10
	maxScore           = 100
)

// Option applies a configuration option to the Calibrator.
type Option func(*Calibrator)

// WithMinPoolSize sets the minimum population size below which calibration
// is skipped and the raw score passes through unchanged.
func WithMinPoolSize(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.minPoolSize = n
		}
	}
}

// Calibrator computes z-score calibration for one position pool at a time.
type Calibrator struct {
	minPoolSize int
}

// NewCalibrator creates a calibrator with configuration options.
func NewCalibrator(opts ...Option) *Calibrator {
	c := &Calibrator{minPoolSize: defaultMinPoolSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calibrate rescales raw against the pool of historical raw scores for the
// same position: z = (raw - mean) / std, calibrated = clamp(50 + 10z, 0, 100).
// Below the minimum pool size the raw score passes through with version
// "none"; that is a normal outcome, not an error.
func (c *Calibrator) Calibrate(_ context.Context, raw float64, pool []float64) model.CalibrationResult {
	if len(pool) < c.minPoolSize {
		return model.CalibrationResult{
			CalibratedScore:    raw,
			CalibrationVersion: VersionNone,
			SampleSize:         len(pool),
		}
	}

	mean, std := populationStats(pool)
	if std < stdDevFloor {
		std = stdDevFloor
	}
	z := (raw - mean) / std
	calibrated := clamp(centerScore+zSlope*z, 0, maxScore)

	return model.CalibrationResult{
		PositionMean:       mean,
		PositionStdDev:     std,
		ZScore:             z,
		CalibratedScore:    calibrated,
		CalibrationVersion: Version,
		SampleSize:         len(pool),
	}
}

// populationStats returns the population mean and standard deviation.
func populationStats(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(values)))
	return mean, std
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
