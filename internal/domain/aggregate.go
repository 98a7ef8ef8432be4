package domain

import (
	"math"
	"time"
)

// AggregateConfig carries the tunables of the daily reduction.
type AggregateConfig struct {
	// Location is the calendar timezone used for day bucketing.
	Location *time.Location
	// Source is the designated provider data source for weather fields.
	Source string
	// MinPressureSamples is the day-inclusion threshold: a day with zero
	// tidal events and fewer valid pressure samples than this is omitted,
	// left for a later run to fill.
	MinPressureSamples int
	// RoundDecimals is the fixed decimal precision applied at aggregation
	// time to every stored value.
	RoundDecimals int
}

// dayBucket accumulates one local calendar day's samples during grouping.
type dayBucket struct {
	pressure      []PressurePoint
	seaLevel      []float64
	waterTemp     []float64
	windSpeed     []float64
	windDirection []float64
	waveHeight    []float64
}

// AggregateDays reduces raw tidal events and weather samples into daily
// records for the requested days. Bucketing uses the local calendar day of
// each provider instant, never the UTC day. Days with insufficient data are
// omitted entirely rather than stored sparse.
func AggregateDays(tides []TideObservation, samples []WeatherSample, days []time.Time, cfg AggregateConfig) []DailyRecord {
	tidesByDay := groupTides(tides, cfg)
	buckets := groupSamples(samples, cfg)

	records := make([]DailyRecord, 0, len(days))
	for _, day := range days {
		key := FormatDay(day)
		tidal := tidesByDay[key]
		bucket := buckets[key]

		var pressure []PressurePoint
		if bucket != nil {
			pressure = bucket.pressure
		}

		if len(tidal) == 0 && len(pressure) < cfg.MinPressureSamples {
			continue
		}
		if tidal == nil {
			tidal = []TideEvent{}
		}
		if pressure == nil {
			pressure = []PressurePoint{}
		}

		rec := DailyRecord{
			Day:            key,
			LunarDay:       LunarLabel(day),
			TidalEvents:    tidal,
			PressureSeries: pressure,
		}
		if bucket != nil {
			rec.SeaLevel = roundMean(bucket.seaLevel, cfg.RoundDecimals)
			rec.WaterTemperature = roundMean(bucket.waterTemp, cfg.RoundDecimals)
			rec.WindSpeed = roundMean(bucket.windSpeed, cfg.RoundDecimals)
			rec.WindDirection = roundCircularMean(bucket.windDirection, cfg.RoundDecimals)
			rec.WaveHeight = roundMean(bucket.waveHeight, cfg.RoundDecimals)
		}
		records = append(records, rec)
	}
	return records
}

func groupTides(tides []TideObservation, cfg AggregateConfig) map[string][]TideEvent {
	byDay := make(map[string][]TideEvent)
	for _, t := range tides {
		key := FormatDay(t.Time.In(cfg.Location))
		var height *float64
		if t.Height != nil && isFinite(*t.Height) {
			h := Round(*t.Height, cfg.RoundDecimals)
			height = &h
		}
		byDay[key] = append(byDay[key], TideEvent{
			Time:   localISO(t.Time, cfg.Location),
			Height: height,
			Type:   t.Type,
		})
	}
	return byDay
}

func groupSamples(samples []WeatherSample, cfg AggregateConfig) map[string]*dayBucket {
	buckets := make(map[string]*dayBucket)
	for _, s := range samples {
		key := FormatDay(s.Time.In(cfg.Location))
		bucket := buckets[key]
		if bucket == nil {
			bucket = &dayBucket{}
			buckets[key] = bucket
		}

		if v, ok := s.Fields[FieldPressure].Pick(cfg.Source); ok {
			bucket.pressure = append(bucket.pressure, PressurePoint{
				Time:     localISO(s.Time, cfg.Location),
				Pressure: Round(v, cfg.RoundDecimals),
			})
		}
		appendPicked(&bucket.seaLevel, s.Fields[FieldSeaLevel], cfg.Source)
		appendPicked(&bucket.waterTemp, s.Fields[FieldWaterTemperature], cfg.Source)
		appendPicked(&bucket.windSpeed, s.Fields[FieldWindSpeed], cfg.Source)
		appendPicked(&bucket.windDirection, s.Fields[FieldWindDirection], cfg.Source)
		appendPicked(&bucket.waveHeight, s.Fields[FieldWaveHeight], cfg.Source)
	}
	return buckets
}

func appendPicked(dst *[]float64, f FieldValue, source string) {
	if v, ok := f.Pick(source); ok {
		*dst = append(*dst, v)
	}
}

// Mean is the arithmetic mean of the values; false when the slice is empty.
func Mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

// CircularMean averages angles in degrees via vector decomposition, so that
// e.g. 350 and 10 average to 0 rather than 180. The result is in [0, 360).
// A vanishing resultant vector (fully opposing samples) yields 0.
func CircularMean(degrees []float64) (float64, bool) {
	if len(degrees) == 0 {
		return 0, false
	}
	var sinSum, cosSum float64
	for _, d := range degrees {
		rad := d * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	if math.Hypot(sinSum, cosSum) < 1e-9 {
		return 0, true
	}
	deg := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg, true
}

// Round rounds to a fixed number of decimal places.
func Round(x float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}

func roundMean(vals []float64, decimals int) *float64 {
	m, ok := Mean(vals)
	if !ok {
		return nil
	}
	r := Round(m, decimals)
	return &r
}

func roundCircularMean(vals []float64, decimals int) *float64 {
	m, ok := CircularMean(vals)
	if !ok {
		return nil
	}
	r := Round(m, decimals)
	return &r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func localISO(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}
