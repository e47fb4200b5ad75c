package marketdata

import "math"

// Summarize fills the derived price fields of snap from bars (most-recent-first).
// Callers must pass at least one bar.
func Summarize(snap *Snapshot, bars []DailyBar) {
	snap.History = bars
	if len(bars) > 5 {
		snap.Last5Days = bars[:5]
	} else {
		snap.Last5Days = bars
	}

	latest := bars[0].Close
	snap.LatestPrice = round2(latest)

	if len(bars) > 1 && bars[1].Close != 0 {
		prev := bars[1].Close
		snap.Change = round2(latest - prev)
		snap.ChangePercent = round2((latest - prev) / prev * 100)
	}

	var sumClose float64
	var sumVolume int64
	high, low := bars[0].High, bars[0].Low
	for _, b := range bars {
		sumClose += b.Close
		sumVolume += b.Volume
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}

	snap.Average30Day = round2(sumClose / float64(len(bars)))
	snap.PeriodHigh = round2(high)
	snap.PeriodLow = round2(low)
	snap.AvgVolume = int64(math.Round(float64(sumVolume) / float64(len(bars))))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
