package eclipse

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sentinel values the propagator writes for unset reals. They print as NaN.
const (
	undefinedReal      = -987654321.0123
	undefinedRealLarge = -9.876543210123e29
)

// mjdEpoch is modified Julian day zero.
var mjdEpoch = time.Date(1941, time.January, 5, 12, 0, 0, 0, time.UTC)

// EpochFormatter renders an epoch for the report.
type EpochFormatter func(epoch float64) string

// FormatMJD renders a modified Julian date as "02 Jan 2006 15:04:05.000".
func FormatMJD(mjd float64) string {
	return MJDToTime(mjd).Format("02 Jan 2006 15:04:05.000")
}

// MJDToTime converts a modified Julian date to UTC, rounded to the
// millisecond.
func MJDToTime(mjd float64) time.Time {
	secs := mjd * 86400
	whole := math.Floor(secs)
	ns := math.Round((secs - whole) * 1e9)
	return mjdEpoch.Add(time.Duration(whole) * time.Second).
		Add(time.Duration(ns)).
		Round(time.Millisecond)
}

// TimeToMJD converts t to a modified Julian date.
func TimeToMJD(t time.Time) float64 {
	d := t.Sub(mjdEpoch)
	return d.Seconds() / 86400
}

// BuildNumber formats value right-aligned in a field of length characters,
// keeping as many fraction digits as the integer part leaves room for.
// Magnitudes above 10^(length-3) switch to exponent notation.
func BuildNumber(value float64, useExp bool, length int) string {
	if value != 0 && (math.IsNaN(value) || value == undefinedReal || value == undefinedRealLarge) {
		return fmt.Sprintf("%*s", length, "NaN")
	}

	shift := math.Abs(value)
	if useExp || shift > math.Pow(10, float64(length-3)) {
		return fmt.Sprintf("%*.*e", length, length-8, value)
	}

	fraction := 1
	for shift > 10.0 {
		fraction++
		shift *= 0.1
	}
	fraction = length - 3 - fraction
	if fraction < 0 {
		fraction = 0
	}
	return fmt.Sprintf("%*.*f", length, fraction, value)
}

// Ordinal appends an English ordinal suffix chosen by the last digit only,
// so 11 becomes "11st". Report consumers expect exactly this.
func Ordinal(i int) string {
	num := strconv.Itoa(i)
	switch num[len(num)-1] {
	case '1':
		return num + "st"
	case '2':
		return num + "nd"
	case '3':
		return num + "rd"
	}
	return num + "th"
}
