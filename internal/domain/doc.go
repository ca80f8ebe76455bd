// Package domain implements the demand-forecasting and reservoir-depletion
// projection engine of the water utility dashboard.
//
// # Inputs
//
// The SQL aggregation layer upstream produces plain numeric series which arrive
// inside request messages:
//
//	Demand:    monthly rows {period "YYYY-MM", value m3}, optionally annual
//	           totals {period "YYYY"} and monthly production totals {month 1-12}
//	           used to synthesize a monthly series when the native one is short.
//	Depletion: dam fill samples {dam, date, fill percent 0-100}, possibly many
//	           per dam per day (averaged per UTC calendar day).
//
// # Model selection
//
// The monthly series (native or synthesized) of length n selects exactly one
// strategy, evaluated in this order:
//
//	n >= 12      seasonal naive with growth     "seasonal_naive"
//	6 <= n < 12  Holt linear, grid searched     "holt_linear"
//	n < 6        mean of last three points      "sma3"
//
// Holt-Winters additive smoothing is implemented alongside but is not part of
// the default selection.
//
// # Bands
//
// p10/p50/p90 are additive offsets around the mid forecast. Their ordering is
// not enforced; a result whose bands cross carries the "bands_inverted" warning.
//
// # Depletion
//
// Each dam's fill trend is an OLS slope over its windowed daily averages. The
// "low" scenario forces a conservative negative drift; other scenarios use the
// raw slope. Days to threshold is ceil((current-threshold)/-drift), 0 when the
// dam is already at or below threshold, and null when it is not trending down.
//
// All computations are stateless and never emit NaN or Inf.
package domain
