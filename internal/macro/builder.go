package macro

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// scalarIndicators are the indicators a snapshot carries besides SPY_TREND.
var scalarIndicators = []string{
	models.IndicatorVIX,
	models.IndicatorUS10Y,
	models.IndicatorDXY,
	models.IndicatorCPI,
	models.IndicatorWTI,
}

// History is the persistence surface the builder needs.
type History interface {
	Latest(ctx context.Context, indicator string) (*Observation, error)
	ValueAt(ctx context.Context, indicator string, at time.Time) (*Observation, error)
	Series(ctx context.Context, indicator string, days int) ([]float64, error)
}

// SnapshotBuilder assembles a MacroSnapshot from stored indicator history.
// SPY trend comes from a 20/50 SMA crossover on the stored close series, so
// regime detection has a real trend instead of the VIX proxy.
type SnapshotBuilder struct {
	history History
}

// NewSnapshotBuilder creates new snapshot builder
func NewSnapshotBuilder(history History) *SnapshotBuilder {
	return &SnapshotBuilder{history: history}
}

// Build assembles the snapshot for now. Every scalar indicator must resolve;
// the decision engine treats an empty snapshot as fatal, so the builder does
// not hand one over half-filled.
func (b *SnapshotBuilder) Build(ctx context.Context) (models.MacroSnapshot, error) {
	snapshot := make(models.MacroSnapshot, len(scalarIndicators)+1)
	weekAgo := time.Now().AddDate(0, 0, -7)

	for _, name := range scalarIndicators {
		latest, err := b.history.Latest(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to build snapshot: %w", err)
		}

		reading := models.IndicatorReading{}
		reading.Value, _ = latest.Value.Float64()

		if prior, err := b.history.ValueAt(ctx, name, weekAgo); err == nil {
			priorValue, _ := prior.Value.Float64()
			if priorValue != 0 {
				change := (reading.Value - priorValue) / priorValue * 100
				reading.Change1W = formatPercent(change)
			}
		}

		if series, err := b.history.Series(ctx, name, 30); err == nil {
			reading.Volatility = realizedVolatility(series)
		}

		snapshot[name] = reading
	}

	trend, err := b.spyTrend(ctx, snapshot.Value(models.IndicatorVIX))
	if err != nil {
		// Trend degrades to the VIX inference downstream
		logger.Warn("spy trend unavailable", zap.Error(err))
	} else {
		snapshot[models.IndicatorSPYTrend] = models.IndicatorReading{Level: trend}
	}

	return snapshot, nil
}

// spyTrend classifies the SPY series with a 20/50 SMA crossover. A drawdown
// past 10% from the trailing high, or crisis-level VIX, reads as CRASH
// regardless of the crossover.
func (b *SnapshotBuilder) spyTrend(ctx context.Context, vix float64) (string, error) {
	closes, err := b.history.Series(ctx, "SPY", 120)
	if err != nil {
		return "", err
	}
	if len(closes) < 50 {
		return "", fmt.Errorf("insufficient spy history for trend (need 50, got %d)", len(closes))
	}

	sma20 := indicator.Sma(20, closes)
	sma50 := indicator.Sma(50, closes)

	price := closes[len(closes)-1]
	fast := sma20[len(sma20)-1]
	slow := sma50[len(sma50)-1]

	peak := closes[0]
	for _, c := range closes {
		if c > peak {
			peak = c
		}
	}
	drawdown := 0.0
	if peak > 0 {
		drawdown = (peak - price) / peak * 100
	}

	trend := models.TrendNeutral
	switch {
	case drawdown > 10.0 || vix > 30.0:
		trend = models.TrendCrash
	case price > fast && fast > slow:
		trend = models.TrendUp
	case price < fast && fast < slow:
		trend = models.TrendDown
	}

	logger.Debug("spy trend classified",
		zap.String("trend", trend),
		zap.Float64("price", price),
		zap.Float64("sma20", fast),
		zap.Float64("sma50", slow),
		zap.Float64("drawdown_pct", drawdown),
	)

	return trend, nil
}

// ZScore measures how far the latest value sits from the series mean, in
// standard deviations. Flat series yield 0.
func ZScore(series []float64, value float64) float64 {
	if len(series) < 2 {
		return 0.0
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	variance := 0.0
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(series))

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0.0
	}

	return (value - mean) / stddev
}

// realizedVolatility is the standard deviation of daily percent changes.
func realizedVolatility(series []float64) float64 {
	if len(series) < 3 {
		return 0.0
	}

	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			continue
		}
		returns = append(returns, (series[i]-series[i-1])/series[i-1]*100)
	}
	if len(returns) < 2 {
		return 0.0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

func formatPercent(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}
