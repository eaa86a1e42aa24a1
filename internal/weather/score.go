// Package weather ingests daily weather for Thai provinces from an archival
// API and a short-range forecast API, and scores months for travel comfort.
package weather

import "math"

// Round2 rounds to two decimals, the precision of stored weather numerics.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EstimateHumidity approximates relative humidity from temperature and
// precipitation when the source omits it: base 70, minus 1.5 per degree
// above 28, plus up to 15 from rain, clamped to [50, 90].
func EstimateHumidity(tempAvg, rain float64) float64 {
	h := 70 - 1.5*(tempAvg-28) + math.Min(3*rain, 15)
	return clamp(h, 50, 90)
}

// DailyScore rates a single day 0-100 using a finer piecewise rule than the
// monthly score.
func DailyScore(tempAvg, rain float64, humidity *float64) float64 {
	score := 50.0

	switch {
	case tempAvg >= 22 && tempAvg <= 30:
		score += 20
	case (tempAvg >= 18 && tempAvg < 22) || (tempAvg > 30 && tempAvg <= 33):
		score += 5
	case tempAvg < 15 || tempAvg > 36:
		score -= 20
	}

	switch {
	case rain == 0:
		score += 15
	case rain <= 10:
		score += 10
	case rain <= 30:
		// neutral
	case rain <= 60:
		score -= 10
	default:
		score -= 20
	}

	if humidity != nil {
		switch {
		case *humidity >= 55 && *humidity <= 75:
			score += 10
		case *humidity > 85:
			score -= 10
		}
	}

	return clamp(score, 0, 100)
}

// MonthlyScore rates a month 0-100 from its aggregates: average temperature,
// total rain in millimetres, and average humidity (0 when unknown).
func MonthlyScore(avgTemp, rainTotal, avgHumidity float64) float64 {
	score := 50.0

	if avgTemp >= 20 && avgTemp <= 28 {
		score += 20
	} else if avgTemp < 20 || avgTemp > 32 {
		score -= 20
	}

	if rainTotal < 50 {
		score += 15
	} else if rainTotal > 200 {
		score -= 15
	}

	if avgHumidity > 0 {
		if avgHumidity >= 50 && avgHumidity <= 70 {
			score += 15
		} else if avgHumidity > 80 {
			score -= 15
		}
	}

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
