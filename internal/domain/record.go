package domain

// TideEvent is one tidal extremum, timestamped in local time with an explicit
// offset. Height is rounded at aggregation time and may be absent when the
// provider omitted it.
type TideEvent struct {
	Time   string   `json:"time"`
	Height *float64 `json:"height"`
	Type   string   `json:"type"` // "high" or "low"
}

// PressurePoint is one hourly pressure sample, local time. Samples with
// missing or non-finite pressure are dropped before storage, never stored as
// placeholders.
type PressurePoint struct {
	Time     string  `json:"time"`
	Pressure float64 `json:"pressure"`
}

// UserFields are the free-form journal columns the pipeline reads from the
// ledger and writes back verbatim. It never interprets or mutates them.
type UserFields struct {
	AppFishingScore  string `json:"-"`
	UserFishingScore string `json:"-"`
	FishCaught       string `json:"-"`
	UserNotes        string `json:"-"`
	Pressure         string `json:"-"` // legacy column kept for compatibility
}

// DailyRecord is one entry per calendar day, keyed by Day. JSON field names
// form the published snapshot contract consumed by the site frontend.
// Daily means are nil when no finite sample existed for that field on that
// day; nil serializes as JSON null, never as a non-finite number.
type DailyRecord struct {
	Day              string          `json:"vietnam_date"`
	LunarDay         string          `json:"lunar_date"`
	TidalEvents      []TideEvent     `json:"tidal_data"`
	PressureSeries   []PressurePoint `json:"pressure_data"`
	SeaLevel         *float64        `json:"sea_level"`
	WaterTemperature *float64        `json:"water_temperature"`
	WindSpeed        *float64        `json:"wind_speed"`
	WindDirection    *float64        `json:"wind_direction"`
	WaveHeight       *float64        `json:"wave_height"`
	IsForecast       bool            `json:"is_forecast,omitempty"`

	User UserFields `json:"-"`
}
