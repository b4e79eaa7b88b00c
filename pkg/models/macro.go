package models

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMissingMacroData is returned when a decision is requested without a macro
// snapshot. Every downstream rule depends on the snapshot, so this is the one
// input failure that aborts the call instead of degrading.
var ErrMissingMacroData = errors.New("macro snapshot is missing")

// Well-known indicator keys.
const (
	IndicatorVIX      = "VIX"
	IndicatorUS10Y    = "US10Y"
	IndicatorDXY      = "DXY"
	IndicatorCPI      = "CPI"
	IndicatorWTI      = "WTI"
	IndicatorSPYTrend = "SPY_TREND"
)

// Trend labels carried in IndicatorReading.Level for SPY_TREND.
const (
	TrendUp      = "UP"
	TrendDown    = "DOWN"
	TrendCrash   = "CRASH"
	TrendNeutral = "NEUTRAL"
)

// IndicatorReading holds one indicator's state for a single date.
// Scalar indicators only fill Value; richer ones carry the weekly change
// (a percent string like "+5.0%") and realized volatility as well.
type IndicatorReading struct {
	Value      float64 `json:"value"`
	Change1W   string  `json:"change_1w,omitempty"`
	Level      string  `json:"level,omitempty"`
	Volatility float64 `json:"volatility,omitempty"`
}

// MacroSnapshot maps indicator names to their readings for one date.
// It is built externally and consumed read-only per decision call.
type MacroSnapshot map[string]IndicatorReading

// Normalized returns a copy of the snapshot with upper-cased indicator keys.
func (s MacroSnapshot) Normalized() MacroSnapshot {
	out := make(MacroSnapshot, len(s))
	for k, v := range s {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}

// Value returns the scalar value for an indicator, 0.0 when absent.
func (s MacroSnapshot) Value(key string) float64 {
	if r, ok := s[key]; ok {
		return r.Value
	}
	return 0.0
}

// Change1W returns the parsed weekly change in percent for an indicator.
// Malformed or absent values fall back to 0.0; parsing never fails the call.
func (s MacroSnapshot) Change1W(key string) float64 {
	r, ok := s[key]
	if !ok {
		return 0.0
	}
	return ParsePercent(r.Change1W)
}

// Trend returns the trend label for an indicator, NEUTRAL when absent.
func (s MacroSnapshot) Trend(key string) string {
	if r, ok := s[key]; ok && r.Level != "" {
		return r.Level
	}
	return TrendNeutral
}

// ParsePercent parses strings like "+5.0%", "-1.25 %" or "3.4" into a float.
// Returns 0.0 on any parse failure.
func ParsePercent(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return 0.0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return v
}
