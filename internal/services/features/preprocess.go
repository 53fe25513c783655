package features

import (
	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

// PreprocessOptions configures the standard training pipeline.
type PreprocessOptions struct {
	PriceColumn    string
	VolumeColumn   string
	TargetType     TargetType
	TargetPeriods  int
	AddTechnical   bool
	Normalize      bool
	FillStrategy   FillStrategy
	RemoveOutliers bool
}

// DefaultPreprocessOptions returns the pipeline defaults: technical features
// on close/volume, a one-period direction target, median fills, outlier
// removal and robust scaling.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		PriceColumn:    "close",
		VolumeColumn:   "volume",
		TargetType:     TargetDirection,
		TargetPeriods:  1,
		AddTechnical:   true,
		Normalize:      true,
		FillStrategy:   FillMedian,
		RemoveOutliers: true,
	}
}

// Preprocess assembles the full training pipeline as one Transform.
func Preprocess(opts PreprocessOptions) models.Transform {
	var steps []models.Transform
	if opts.AddTechnical {
		steps = append(steps,
			Returns(opts.PriceColumn, nil),
			Momentum(opts.PriceColumn, nil),
			VolumeFeatures(opts.VolumeColumn, nil),
			Volatility(opts.PriceColumn, nil),
			TechnicalFlags(opts.PriceColumn, opts.VolumeColumn),
		)
	}
	steps = append(steps,
		TargetVariable(opts.PriceColumn, opts.TargetType, opts.TargetPeriods, 0),
		FillMissing(opts.FillStrategy, 0.5),
	)
	if opts.RemoveOutliers {
		steps = append(steps, outliersExceptTarget())
	}
	if opts.Normalize {
		steps = append(steps, Normalize(nil, NormRobust))
	}
	return Chain(steps...)
}

// outliersExceptTarget removes outliers from every numeric column but never
// from the target itself.
func outliersExceptTarget() models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		var cols []string
		for _, c := range numericColumns(snap) {
			if c == "target" {
				continue
			}
			cols = append(cols, c)
		}
		if cols == nil {
			return snap, nil
		}
		return RemoveOutliers(cols, OutlierIQR, 1.5)(snap)
	}
}
