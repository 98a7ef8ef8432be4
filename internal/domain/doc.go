// Package domain models the daily tidal and weather journal for a fixed
// coastal point.
//
// # Data source
//
// Raw observations come from the Stormglass v2 API: tidal extremum events
// (/tide/extremes/point) and hourly weather samples (/weather/point). Both
// are keyed by UTC instants ("2025-03-01T07:00:00+00:00"); every instant is
// converted to the configured local timezone before bucketing, so a calendar
// day always means a local day.
//
// # Day keys
//
// Days are keyed as DD/MM/YYYY strings, the format of the persisted ledger's
// date column. The cutoff for persistence is always yesterday relative to the
// run's local clock: the ledger never holds a day that is still in progress.
//
// # Daily means
//
// Sea level, water temperature, wind speed and wave height reduce by
// arithmetic mean over the day's finite samples. Wind direction is angular
// data and reduces by vector (circular) mean: averaging 350° and 10° yields
// 0°, not 180°. A field with no finite samples is absent (nil), never zero.
//
// # Day inclusion
//
// A boundary day with no tidal events and fewer valid pressure samples than
// the configured minimum is omitted from aggregation output entirely; the
// next run re-fetches it once the provider has the full day.
package domain
