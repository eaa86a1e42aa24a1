package holiday

import (
	"strings"
	"time"

	"fare_analytics/internal/calendar"
)

// Holiday tiers, in descending score contribution.
const (
	tierMajorFestival = iota
	tierImportant
	tierRegular
	tierSpecial
)

// Name markers for major festivals: Songkran, the New Year span, Chinese
// New Year, Christmas. Thai and English forms both appear in the feed.
var majorMarkers = []string{
	"สงกรานต์", "songkran",
	"ตรุษจีน", "chinese new year",
	"ปีใหม่", "new year",
	"คริสต์มาส", "christmas",
}

// Markers for important public holidays: the major Buddhist days and royal
// birthdays / Mother's / Father's Day.
var importantMarkers = []string{
	"มาฆบูชา", "makha",
	"วิสาขบูชา", "visakha",
	"อาสาฬหบูชา", "asanha", "asalha",
	"เฉลิมพระชนมพรรษา", "birthday",
	"วันแม่", "mother",
	"วันพ่อ", "father",
}

// Markers for observances that are not full public holidays.
var specialMarkers = []string{
	"วันพิเศษ", "special",
	"วันลอยกระทง", "loy krathong",
	"วันครู", "teacher",
	"วันเด็ก", "children",
}

// classify buckets a holiday entry by name.
func classify(name string) int {
	n := strings.ToLower(name)
	for _, m := range majorMarkers {
		if strings.Contains(n, m) {
			return tierMajorFestival
		}
	}
	for _, m := range importantMarkers {
		if strings.Contains(n, m) {
			return tierImportant
		}
	}
	for _, m := range specialMarkers {
		if strings.Contains(n, m) {
			return tierSpecial
		}
	}
	return tierRegular
}

// Score rates a month's holidays 0-100. The base of 50 gains per-entry
// contributions by tier, +5 per long-weekend entry, and +20 once when any
// entry falls in a peak month (December, January, April).
func Score(entries []Entry) float64 {
	score := 50.0
	peak := false

	for _, e := range entries {
		switch classify(e.Name) {
		case tierMajorFestival:
			score += 20
		case tierImportant:
			score += 10
		case tierSpecial:
			score += 5
		default:
			score += 8
		}
		if calendar.IsLongWeekend(e.Date) {
			score += 5
		}
		switch e.Date.Month() {
		case time.December, time.January, time.April:
			peak = true
		}
	}
	if peak {
		score += 20
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CountLongWeekends counts the entries that form long weekends. Regional
// (financial) holidays are included in the count.
func CountLongWeekends(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if calendar.IsLongWeekend(e.Date) {
			n++
		}
	}
	return n
}
