// Package zoning implements the zone recalculation core: time-window
// classification, nearest-zone assignment, proximity clustering with
// round-robin driver rotation, and the orchestrating pass.
package zoning

import (
	"strconv"
	"strings"

	"zoneops/internal/model"
)

// Service windows as minute-of-day [start,end) intervals.
type window struct {
	Key   string
	Start int
	End   int
}

var windows = []window{
	{Key: "09:00-11:00", Start: 9 * 60, End: 11 * 60},
	{Key: "11:00-13:00", Start: 11 * 60, End: 13 * 60},
	{Key: "13:00-15:00", Start: 13 * 60, End: 15 * 60},
}

var slotWindows = map[string]string{
	"morning":   "09:00-11:00",
	"afternoon": "11:00-13:00",
	"evening":   "13:00-15:00",
}

// WindowKeys returns the fixed window keys in canonical order.
func WindowKeys() []string {
	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = w.Key
	}
	return keys
}

// parseClock converts "HH:MM" to minute of day.
func parseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// WindowFor classifies an order into one of the fixed service windows.
// Explicit start/end times win when a window fully contains them;
// otherwise the symbolic slot is mapped. An empty result means the order
// is excluded from zoning this pass (a skip, not an error).
func WindowFor(o model.Order) string {
	if o.DeliveryStart != "" && o.DeliveryEnd != "" {
		start, okS := parseClock(o.DeliveryStart)
		end, okE := parseClock(o.DeliveryEnd)
		if okS && okE {
			for _, w := range windows {
				if start >= w.Start && end <= w.End {
					return w.Key
				}
			}
		}
	}
	if key, ok := slotWindows[o.TimeSlot]; ok {
		return key
	}
	return ""
}

// HasTimeSignal reports whether the order carries enough scheduling
// information to be a recalculation candidate.
func HasTimeSignal(o model.Order) bool {
	return (o.DeliveryStart != "" && o.DeliveryEnd != "") || o.TimeSlot != ""
}
