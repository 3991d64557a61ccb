package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
)

// ExcusedHours sums the excused time inside [start, end].
// Only events whose type is in allow count; each is clamped to the period and
// overlapping intervals are merged so no hour is excused twice.
func ExcusedHours(events []contracts.OperationalEvent, allow []string, start, end time.Time) float64 {
	if len(events) == 0 || len(allow) == 0 || !end.After(start) {
		return 0
	}

	allowed := make(map[string]struct{}, len(allow))
	for _, t := range allow {
		allowed[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}

	type span struct{ from, to time.Time }
	spans := make([]span, 0, len(events))
	for _, e := range events {
		if _, ok := allowed[strings.ToUpper(e.EventTypeCode)]; !ok {
			continue
		}
		from, to, ok := e.Clamp(start, end)
		if !ok {
			continue
		}
		spans = append(spans, span{from, to})
	}
	if len(spans) == 0 {
		return 0
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].from.Before(spans[j].from) })

	total := time.Duration(0)
	cur := spans[0]
	for _, s := range spans[1:] {
		if !s.from.After(cur.to) {
			if s.to.After(cur.to) {
				cur.to = s.to
			}
			continue
		}
		total += cur.to.Sub(cur.from)
		cur = s
	}
	total += cur.to.Sub(cur.from)

	return total.Hours()
}
