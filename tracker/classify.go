// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Save kinds, in the order they are tested
const (
	KindShiftBreak    = "shift_break"
	KindOrderUpdate   = "order_update"
	KindRecentPick    = "recent_pick"
	KindShiftState    = "shift_state"
	KindStateSnapshot = "state_snapshot"
)

// MaxSummaryLen caps summaries, counted in runes
const MaxSummaryLen = 200

// ClassifySave decides what a state save was mostly about and renders a
// short line for the admin log in place of the raw payload
func ClassifySave(doc Document) (kind, summary string) {
	kind, summary = classify(doc)
	return kind, Truncate(summary, MaxSummaryLen)
}

func classify(doc Document) (string, string) {
	if brk, ok := activeBreak(doc); ok {
		label := text(brk["type"])
		if label == "" {
			label = "break"
		}
		return KindShiftBreak, fmt.Sprintf("On %s since %s", label, text(brk["start"]))
	}

	if current, ok := object(doc["current"]); ok {
		name := text(current["name"])
		total, hasTotal := integer(current["total"])
		wraps := len(list(doc["tempWraps"]))
		if name != "" || hasTotal || wraps > 0 {
			var b strings.Builder
			b.WriteString("Order ")
			if name != "" {
				b.WriteString(name)
			} else {
				b.WriteString("(unnamed)")
			}
			if hasTotal {
				fmt.Fprintf(&b, ", %d units", total)
			}
			if wraps > 0 {
				fmt.Fprintf(&b, ", %d wraps logged", wraps)
			}
			if start := text(current["start"]); start != "" {
				fmt.Fprintf(&b, ", started %s", start)
			}
			return KindOrderUpdate, b.String()
		}
	}

	if picks := list(doc["picks"]); len(picks) > 0 {
		last, _ := object(picks[len(picks)-1])
		name := text(last["name"])
		if name == "" {
			name = "(unnamed)"
		}
		units, _ := integer(last["units"])
		s := fmt.Sprintf("Closed %s: %d units", name, units)
		if start, end := text(last["start"]), text(last["close"]); start != "" && end != "" {
			s += fmt.Sprintf(" %s-%s", start, end)
		}
		if truthy(last["closedEarly"]) {
			s += " (closed early)"
		}
		return KindRecentPick, fmt.Sprintf("%s; %d orders today", s, len(picks))
	}

	if start := text(doc["startTime"]); start != "" {
		return KindShiftState, "Shift started " + start
	}

	return KindStateSnapshot, "State saved"
}

func activeBreak(doc Document) (map[string]any, bool) {
	breaks := list(doc["shiftBreaks"])
	for i := len(breaks) - 1; i >= 0; i-- {
		brk, ok := object(breaks[i])
		if !ok {
			continue
		}
		if text(brk["start"]) != "" && text(brk["end"]) == "" {
			return brk, true
		}
	}
	return nil, false
}

// Truncate shortens s to at most limit runes, ending in an ellipsis when cut
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// Snapshot is the admin-facing digest of one document
type Snapshot struct {
	CurrentOrder string
	ClosedOrders int
	UnitsDone    int
	StartTime    string
	OnBreak      bool
	LiveRateUh   *float64
}

// Summarize extracts the fields the admin devices view shows
func Summarize(doc Document) Snapshot {
	s := Snapshot{
		ClosedOrders: len(list(doc["picks"])),
		UnitsDone:    int(TotalUnits(doc)),
		StartTime:    text(doc["startTime"]),
	}
	if current, ok := object(doc["current"]); ok {
		s.CurrentOrder = text(current["name"])
	}
	_, s.OnBreak = activeBreak(doc)
	if rate, ok := number(doc["liveRateUh"]); ok {
		s.LiveRateUh = &rate
	}
	return s
}
