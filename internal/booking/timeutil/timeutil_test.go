package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWillExpireAt(t *testing.T) {
	created := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		lead time.Duration
		want func(due time.Time) time.Time
	}{
		{
			name: "due already passed",
			lead: -time.Hour,
			want: func(due time.Time) time.Time { return due },
		},
		{
			name: "one hour lead expires at due",
			lead: time.Hour,
			want: func(due time.Time) time.Time { return due },
		},
		{
			name: "exactly 90 minutes expires at due",
			lead: 90 * time.Minute,
			want: func(due time.Time) time.Time { return due },
		},
		{
			name: "91 minutes gets 90 minute window",
			lead: 91 * time.Minute,
			want: func(time.Time) time.Time { return created.Add(90 * time.Minute) },
		},
		{
			name: "24h minus a minute gets 90 minute window",
			lead: 24*time.Hour - time.Minute,
			want: func(time.Time) time.Time { return created.Add(90 * time.Minute) },
		},
		{
			name: "exactly 24h gets 90 minute window",
			lead: 24 * time.Hour,
			want: func(time.Time) time.Time { return created.Add(90 * time.Minute) },
		},
		{
			name: "24h plus a minute gets 16h window",
			lead: 24*time.Hour + time.Minute,
			want: func(time.Time) time.Time { return created.Add(16 * time.Hour) },
		},
		{
			name: "72h minus a minute gets 16h window",
			lead: 72*time.Hour - time.Minute,
			want: func(time.Time) time.Time { return created.Add(16 * time.Hour) },
		},
		{
			name: "exactly 72h gets 16h window",
			lead: 72 * time.Hour,
			want: func(time.Time) time.Time { return created.Add(16 * time.Hour) },
		},
		{
			name: "72h plus a minute expires 48h before due",
			lead: 72*time.Hour + time.Minute,
			want: func(due time.Time) time.Time { return due.Add(-48 * time.Hour) },
		},
		{
			name: "a week ahead expires 48h before due",
			lead: 7 * 24 * time.Hour,
			want: func(due time.Time) time.Time { return due.Add(-48 * time.Hour) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := created.Add(tt.lead)
			got := WillExpireAt(due, created)
			assert.Equal(t, tt.want(due), got)
			assert.Equal(t, got, WillExpireAt(due, created), "must be deterministic")
		})
	}
}

func TestLegacyExpiryPolicy(t *testing.T) {
	created := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		lead time.Duration
		want func(due time.Time) time.Time
	}{
		{"one hour", time.Hour, func(due time.Time) time.Time { return due }},
		{"24 hours", 24 * time.Hour, func(due time.Time) time.Time { return due }},
		{"72 hours", 72 * time.Hour, func(due time.Time) time.Time { return due }},
		{"exactly 90 hours", 90 * time.Hour, func(due time.Time) time.Time { return due }},
		{"90 hours and a minute", 90*time.Hour + time.Minute, func(due time.Time) time.Time { return due.Add(-48 * time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := created.Add(tt.lead)
			assert.Equal(t, tt.want(due), LegacyExpiryPolicy.WillExpireAt(due, created))
		})
	}
}

func TestSessionTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, "0:0:0", SessionTime(start, start))
	assert.Equal(t, "1:5:9", SessionTime(start, start.Add(time.Hour+5*time.Minute+9*time.Second)))
	assert.Equal(t, "26:0:30", SessionTime(start, start.Add(26*time.Hour+30*time.Second)))
	assert.Equal(t, "2:0:0", SessionTime(start.Add(2*time.Hour), start), "end before start uses the absolute difference")
}

func TestSessionTimeText(t *testing.T) {
	assert.Equal(t, "1 h 45 min", SessionTimeText("1:45:3"))
	assert.Equal(t, "garbage", SessionTimeText("garbage"))
}

func TestNightWindow(t *testing.T) {
	w := DefaultNightWindow
	day := func(h, m int) time.Time { return time.Date(2026, 2, 1, h, m, 0, 0, time.UTC) }

	assert.True(t, w.Contains(day(23, 0)))
	assert.True(t, w.Contains(day(3, 0)))
	assert.False(t, w.Contains(day(7, 0)))
	assert.False(t, w.Contains(day(12, 0)))

	assert.Equal(t, 8*time.Hour, w.Remaining(day(23, 0)))
	assert.Equal(t, 30*time.Minute, w.Remaining(day(6, 30)))
	assert.Equal(t, time.Duration(0), w.Remaining(day(12, 0)))

	daytime := NightWindow{Start: 1, End: 5}
	assert.True(t, daytime.Contains(day(2, 0)))
	assert.False(t, daytime.Contains(day(5, 0)))
	assert.False(t, NightWindow{Start: 3, End: 3}.Contains(day(3, 0)))
}
