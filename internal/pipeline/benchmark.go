package pipeline

import (
	"context"
	"time"

	"github.com/tinkerloft/refinery/internal/codemetrics"
	"github.com/tinkerloft/refinery/internal/model"
)

// failedMeasurementScore is the conservative fallback when measurement fails
// entirely. It sits below the deploy threshold so a broken benchmark can
// never wave a promotion through.
const failedMeasurementScore = 0.25

// Benchmarker measures a cheap performance-regression proxy for a staged
// artifact relative to the original.
type Benchmarker interface {
	Measure(ctx context.Context, original, staged string) model.BenchmarkResult
}

// StructuralBenchmarker scores the staged artifact by comparing structural
// cost indicators against the original: growth in complexity indicators and
// raw size degrade the score. Identical or leaner artifacts score 1.0.
type StructuralBenchmarker struct{}

// Measure implements Benchmarker. Measurement never fails for readable text;
// a cancelled context is the one case reported as unmeasured.
func (StructuralBenchmarker) Measure(ctx context.Context, original, staged string) model.BenchmarkResult {
	start := time.Now()
	if ctx.Err() != nil {
		return model.BenchmarkResult{PerformanceScore: failedMeasurementScore, Measured: false}
	}

	before := codemetrics.Measure(original)
	after := codemetrics.Measure(staged)

	score := 1.0
	score -= growthPenalty(before.ComplexityIndicators, after.ComplexityIndicators, 0.5)
	score -= growthPenalty(before.SizeBytes, after.SizeBytes, 0.2)
	if score < 0 {
		score = 0
	}

	return model.BenchmarkResult{
		PerformanceScore: score,
		Measured:         true,
		ElapsedMillis:    float64(time.Since(start).Microseconds()) / 1000,
	}
}

// growthPenalty maps relative growth of a cost indicator to a penalty of at
// most maxPenalty, saturating at a doubling.
func growthPenalty(before, after int, maxPenalty float64) float64 {
	if before <= 0 || after <= before {
		return 0
	}
	growth := float64(after-before) / float64(before)
	if growth > 1 {
		growth = 1
	}
	return maxPenalty * growth
}
