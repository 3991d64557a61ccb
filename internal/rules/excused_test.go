package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/ldwatch/internal/contracts"
)

func TestExcusedHours(t *testing.T) {
	start, end := nov2024Start, nov2024End
	allow := []string{contracts.EventTypeForceMajeure, contracts.EventTypeGridOutage}

	tests := []struct {
		name   string
		events []contracts.OperationalEvent
		allow  []string
		want   float64
	}{
		{
			name:   "single event",
			events: []contracts.OperationalEvent{event(contracts.EventTypeForceMajeure, start.Add(24*time.Hour), 10*time.Hour)},
			allow:  allow,
			want:   10,
		},
		{
			name: "type outside allow list contributes zero",
			events: []contracts.OperationalEvent{
				event(contracts.EventTypeEquipFail, start.Add(24*time.Hour), 10*time.Hour),
			},
			allow: allow,
			want:  0,
		},
		{
			name: "overlapping events merged",
			events: []contracts.OperationalEvent{
				event(contracts.EventTypeForceMajeure, start.Add(10*time.Hour), 10*time.Hour),
				event(contracts.EventTypeGridOutage, start.Add(15*time.Hour), 10*time.Hour),
			},
			allow: allow,
			want:  15,
		},
		{
			name: "clamped to period start",
			events: []contracts.OperationalEvent{
				event(contracts.EventTypeForceMajeure, start.Add(-5*time.Hour), 8*time.Hour),
			},
			allow: allow,
			want:  3,
		},
		{
			name: "ongoing event clamped to period end",
			events: []contracts.OperationalEvent{
				{EventTypeCode: contracts.EventTypeGridOutage, TimeStart: end.Add(-6 * time.Hour)},
			},
			allow: allow,
			want:  6,
		},
		{
			name:   "case insensitive allow list",
			events: []contracts.OperationalEvent{event("force_majeure", start, 2*time.Hour)},
			allow:  []string{"Force_Majeure"},
			want:   2,
		},
		{
			name:   "empty allow list excuses nothing",
			events: []contracts.OperationalEvent{event(contracts.EventTypeForceMajeure, start, 2*time.Hour)},
			allow:  []string{},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExcusedHours(tt.events, tt.allow, start, end), 1e-9)
		})
	}
}
