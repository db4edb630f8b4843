package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionOverlaps(t *testing.T) {
	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	s := Session{StartTime: base, EndTime: base.Add(time.Hour)}

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"touching after", base.Add(time.Hour), base.Add(2 * time.Hour), false},
		{"touching before", base.Add(-time.Hour), base, false},
		{"partial", base.Add(30 * time.Minute), base.Add(90 * time.Minute), true},
		{"identical", base, base.Add(time.Hour), true},
		{"contains", base.Add(-time.Hour), base.Add(2 * time.Hour), true},
		{"inside", base.Add(15 * time.Minute), base.Add(45 * time.Minute), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Overlaps(tc.start, tc.end))
		})
	}
	assert.Equal(t, time.Hour, s.Duration())
}

func TestAsSessionConflict(t *testing.T) {
	conflict := &SessionConflictError{TeacherID: "t1", Conflicts: []Session{{ID: "s1"}}}
	wrapped := fmt.Errorf("create: %w", conflict)

	got, ok := AsSessionConflict(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "t1", got.TeacherID)

	_, ok = AsSessionConflict(fmt.Errorf("other"))
	assert.False(t, ok)
}
