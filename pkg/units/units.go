// Package units provides the unit conversions and time formatting shared by
// the aggregation pipeline and the destination writers. All functions are
// pure: aggregation happens in raw meters/seconds and these helpers are
// applied only when shaping output.
package units

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MilesPerMeter is the conversion factor applied at presentation time.
const MilesPerMeter = 0.000621371

// totalsPrinter groups thousands for log output.
var totalsPrinter = message.NewPrinter(language.English)

// MetersToMiles converts a raw meter distance to miles.
func MetersToMiles(meters float64) float64 {
	return meters * MilesPerMeter
}

// FormatHMS renders a duration in whole seconds as HH:MM:SS.
// Hours grow past 99 rather than wrapping.
func FormatHMS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatMiles renders a mile value with two decimals.
func FormatMiles(miles float64) string {
	return fmt.Sprintf("%.2f", miles)
}

// FormatMilesGrouped renders a mile value with two decimals and grouped
// thousands, e.g. "1,234.56". Used when logging club-wide totals.
func FormatMilesGrouped(miles float64) string {
	return totalsPrinter.Sprintf("%.2f", miles)
}
