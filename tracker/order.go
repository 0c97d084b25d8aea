// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

// OrderSummary is the immutable record derived from a closed order
type OrderSummary struct {
	Name        string
	Units       int
	Pallets     int
	Locations   int
	Start       string
	Close       string
	DurationMin *int
	OrderRateUh *float64
	ExclMin     int
	ClosedEarly bool
	EarlyReason string
	Remaining   *int
}

// SummarizeOrder derives the closed-order summary from the client's
// archived pick. Malformed numbers and times are treated as absent.
func SummarizeOrder(order map[string]any) OrderSummary {
	s := OrderSummary{
		Name:        text(order["name"]),
		Start:       text(order["start"]),
		Close:       text(order["close"]),
		EarlyReason: text(order["earlyReason"]),
		ClosedEarly: truthy(order["closedEarly"]),
	}
	s.Units, _ = integer(order["units"])
	s.Pallets, _ = integer(order["pallets"])
	s.Locations, _ = integer(order["locations"])
	if excl, ok := integer(order["excl"]); ok {
		s.ExclMin = excl
	}
	if rem, ok := integer(order["remaining"]); ok {
		s.Remaining = &rem
	}

	s.DurationMin = DurationMinutes(s.Start, s.Close)
	if s.DurationMin != nil && *s.DurationMin > 0 {
		rate := round2(float64(s.Units) / (float64(*s.DurationMin) / 60))
		s.OrderRateUh = &rate
	}
	return s
}

// DurationMinutes returns end - start in minutes, or nil when either
// side does not parse or end is before start
func DurationMinutes(start, end string) *int {
	startMin, ok := ParseHHMM(start)
	if !ok {
		return nil
	}
	closeMin, ok := ParseHHMM(end)
	if !ok {
		return nil
	}
	d := closeMin - startMin
	if d < 0 {
		return nil
	}
	return &d
}
