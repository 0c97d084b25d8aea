// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tracker holds the picking domain rules. It does no I/O.

# State Documents

A picker's state is a JSON object (Document). Stored and submitted
documents are brought up to CurrentSchemaVersion by ordered migrations:

	doc, err := tracker.Decode(body)
	err = tracker.Migrate(doc) // ErrUnsupportedSchema for a newer document

	v1: null arrays become [], a numeric version becomes a string
	v2: numeric pick fields given as strings are coerced, garbage removed
	v3: current.operatorId/operatorName and liveRate are renamed

Keys the server does not know are kept as they are.

# Live Rate

	rate := tracker.LiveRate("08:00", now, 300) // nil when elapsed <= 0.05h

A start later in the day than now means the shift crossed midnight.
InjectLiveRate stores the value as liveRateUh.

# Order Summaries

	s := tracker.SummarizeOrder(pick)
	// 08:00 to 08:45 with 250 units: DurationMin 45, OrderRateUh 333.33

# Admin Views

Dedupe collapses user-keyed and legacy device-keyed rows to one per human.
ClassifySave turns a save into a kind and a one-line summary of at most
200 runes.
*/
package tracker
