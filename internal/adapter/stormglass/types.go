package stormglass

import "encoding/json"

// Stormglass v2 API response types.

type tideResponse struct {
	Data []tideEntry `json:"data"`
}

type tideEntry struct {
	Time   string   `json:"time"`
	Height *float64 `json:"height"`
	Type   string   `json:"type"`
}

// weatherResponse holds /weather/point hours. Each hour is a loose object:
// a "time" instant plus one entry per requested field, where the field value
// is either a source→value map or a bare scalar.
type weatherResponse struct {
	Hours []map[string]json.RawMessage `json:"hours"`
}
