package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DayNames lists roster days in order; index 0 is Monday.
var DayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// MaxClockHour is the last virtual hour of a trading day; hours 24-26 fall after midnight.
const MaxClockHour = 26

// ParseDay converts a lower/upper case day name into its Monday-based index.
func ParseDay(name string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, day := range DayNames {
		if day == key {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", name)
}

// DayName returns the lower-case name for a Monday-based index.
func DayName(day int) string {
	if day < 0 || day >= len(DayNames) {
		return ""
	}
	return DayNames[day]
}

// ParseClock converts "HH:MM" into minutes since the start of the trading day.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > MaxClockHour || (hour == MaxClockHour && minute > 0) {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes as "HH:MM", keeping post-midnight hours above 23.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
