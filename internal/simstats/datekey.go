package simstats

import (
	"fmt"
	"time"

	"simstats-backend/internal/components/chrono"
)

// DateKey formats the calendar day of t in JST, ex. y2024/m3/d1.
func DateKey(t time.Time) string {
	t = t.In(chrono.JST())
	return fmt.Sprintf("y%d/m%d/d%d", t.Year(), int(t.Month()), t.Day())
}

// YesterdayKey is the DateKey of the calendar day before t in JST.
func YesterdayKey(t time.Time) string {
	return DateKey(t.In(chrono.JST()).AddDate(0, 0, -1))
}
