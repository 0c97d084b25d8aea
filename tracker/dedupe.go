// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tracker

import (
	"slices"
	"strings"
	"time"
)

const (
	SourceUser   = "user"
	SourceDevice = "device"
)

// Row is one stored state row, user-keyed or legacy device-keyed
type Row struct {
	Source       string
	DeviceID     string
	OperatorID   string
	OperatorName string
	SavedAt      string
	Doc          Document
	UpdatedAt    time.Time
}

// LogicalKey identifies the human behind a row: operator id, else the
// case-folded operator name, else the raw device id
func LogicalKey(r Row) string {
	if id := strings.TrimSpace(r.OperatorID); id != "" {
		return "operator:" + id
	}
	if name := strings.ToLower(strings.TrimSpace(r.OperatorName)); name != "" {
		return "name:" + name
	}
	return "device:" + r.DeviceID
}

// Deduped is a surviving row together with its key and parsed savedAt
type Deduped struct {
	Row
	Key      string
	SavedAtT time.Time
	HasSaved bool
}

// Dedupe keeps one row per logical key: the one with the latest valid
// savedAt. A row without a valid savedAt never displaces one that has
// one, and among rows without one the first seen is kept. The result is
// newest first with undated rows last in input order.
func Dedupe(rows []Row) []Deduped {
	index := make(map[string]int, len(rows))
	out := make([]Deduped, 0, len(rows))

	for _, r := range rows {
		t, ok := ParseSavedAt(r.SavedAt)
		cand := Deduped{Row: r, Key: LogicalKey(r), SavedAtT: t, HasSaved: ok}

		i, seen := index[cand.Key]
		if !seen {
			index[cand.Key] = len(out)
			out = append(out, cand)
			continue
		}
		if newer(cand, out[i]) {
			out[i] = cand
		}
	}

	slices.SortStableFunc(out, func(a, b Deduped) int {
		switch {
		case a.HasSaved && !b.HasSaved:
			return -1
		case !a.HasSaved && b.HasSaved:
			return 1
		case !a.HasSaved:
			return 0
		}
		return b.SavedAtT.Compare(a.SavedAtT)
	})
	return out
}

func newer(cand, kept Deduped) bool {
	if !cand.HasSaved {
		return false
	}
	return !kept.HasSaved || cand.SavedAtT.After(kept.SavedAtT)
}
