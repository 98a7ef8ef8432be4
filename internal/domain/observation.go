package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Weather field names requested from the provider and reduced into daily means.
const (
	FieldPressure         = "pressure"
	FieldSeaLevel         = "seaLevel"
	FieldWaterTemperature = "waterTemperature"
	FieldWindSpeed        = "windSpeed"
	FieldWindDirection    = "windDirection"
	FieldWaveHeight       = "waveHeight"
)

// WeatherFields lists every field the pipeline requests, in request order.
var WeatherFields = []string{
	FieldPressure,
	FieldSeaLevel,
	FieldWaterTemperature,
	FieldWindSpeed,
	FieldWindDirection,
	FieldWaveHeight,
}

// TideObservation is one raw extremum event as returned by the provider,
// keyed by a UTC instant.
type TideObservation struct {
	Time   time.Time
	Height *float64
	Type   string
}

// FieldValue holds a weather field's per-source sub-values. Providers report
// either a source→value mapping or a bare scalar; a scalar is stored under the
// empty source name. Non-numeric and non-finite values are absent, not zero.
type FieldValue map[string]float64

// UnmarshalJSON accepts {"sg": 1012.4, ...}, a bare number, or anything else
// (treated as absent).
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var bySource map[string]float64
	if err := json.Unmarshal(data, &bySource); err == nil {
		*f = bySource
		return nil
	}
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*f = FieldValue{"": scalar}
		return nil
	}
	*f = nil
	return nil
}

// Pick selects the designated source's value, falling back to a bare scalar.
// Returns false for missing or non-finite values.
func (f FieldValue) Pick(source string) (float64, bool) {
	v, ok := f[source]
	if !ok {
		v, ok = f[""]
	}
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// WeatherSample is one raw sub-daily sample keyed by a UTC instant, carrying
// per-source sub-values for each reported field.
type WeatherSample struct {
	Time   time.Time
	Fields map[string]FieldValue
}
