// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import "time"

// MinRateHours is the elapsed time below which a live rate is suppressed
const MinRateHours = 0.05

// LiveRate returns units per hour since startTime ("HH:MM") on the day of
// now. A start later in the day than now is taken to be yesterday's.
// Returns nil when startTime does not parse or elapsed <= MinRateHours.
func LiveRate(startTime string, now time.Time, totalUnits float64) *float64 {
	startMin, ok := ParseHHMM(startTime)
	if !ok {
		return nil
	}

	nowMin := float64(now.Hour()*60+now.Minute()) + float64(now.Second())/60
	elapsed := (nowMin - float64(startMin)) / 60
	if float64(startMin) > nowMin {
		elapsed += 24
	}
	if elapsed <= MinRateHours {
		return nil
	}

	rate := totalUnits / elapsed
	return &rate
}

// TotalUnits sums units over the document's closed picks
func TotalUnits(doc Document) float64 {
	var total float64
	for _, p := range list(doc["picks"]) {
		pick, ok := object(p)
		if !ok {
			continue
		}
		if u, ok := number(pick["units"]); ok {
			total += u
		}
	}
	return total
}

// InjectLiveRate recomputes liveRateUh from the document itself using the
// wall clock of loc, so every reader sees the same stored number
func InjectLiveRate(doc Document, now time.Time, loc *time.Location) {
	if loc != nil {
		now = now.In(loc)
	}
	rate := LiveRate(text(doc["startTime"]), now, TotalUnits(doc))
	if rate == nil {
		doc["liveRateUh"] = nil
		return
	}
	doc["liveRateUh"] = round2(*rate)
}
