// Package timeseries is the read-only adapter over metered readings and
// operational events. Every failure is reported as contracts.ErrDataUnavailable
// alongside an empty, non-nil slice.
package timeseries

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
)

// unavailable wraps a source error as recoverable data unavailability
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", contracts.ErrDataUnavailable, op, err)
}

// clampOngoing closes ongoing events at end. Closed events are returned as is.
func clampOngoing(events []contracts.OperationalEvent, end time.Time) []contracts.OperationalEvent {
	for i := range events {
		if events[i].TimeEnd == nil {
			e := end
			events[i].TimeEnd = &e
		}
	}
	return events
}

// normalizeTypes upper-cases and de-duplicates an allow-list. nil stays nil.
func normalizeTypes(types []string) []string {
	if types == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// inWindow drops readings outside [start, end) and keeps order
func inWindow(readings []contracts.MeterReading, start, end time.Time) []contracts.MeterReading {
	out := readings[:0]
	for _, r := range readings {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out
}
