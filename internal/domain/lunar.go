package domain

import (
	"fmt"
	"time"

	"github.com/6tail/lunar-go/calendar"
)

// LunarLabel derives the DD/MM lunisolar calendar label for a solar day.
// Leap months are reported with the base month number. If conversion fails
// the solar DD/MM is returned so the label is never empty.
func LunarLabel(day time.Time) (label string) {
	defer func() {
		if recover() != nil {
			label = fmt.Sprintf("%02d/%02d", day.Day(), int(day.Month()))
		}
	}()

	solar := calendar.NewSolarFromYmd(day.Year(), int(day.Month()), day.Day())
	lunar := solar.GetLunar()

	month := lunar.GetMonth()
	if month < 0 {
		month = -month // leap month
	}
	return fmt.Sprintf("%02d/%02d", lunar.GetDay(), month)
}
