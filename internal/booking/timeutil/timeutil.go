// Package timeutil holds the pure time calculations of the booking lifecycle.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ShortLeadTTL is how long a job booked up to a day ahead stays open
	ShortLeadTTL = 90 * time.Minute
	// MediumLeadTTL is how long a job booked one to three days ahead stays open
	MediumLeadTTL = 16 * time.Hour
	// LongLeadMargin is how long before due a job booked further ahead expires
	LongLeadMargin = 48 * time.Hour
)

// ExpiryPolicy decides when an unassigned job stops being offered.
type ExpiryPolicy struct {
	// ImmediateThreshold is the lead time at or under which a job expires at its due time.
	ImmediateThreshold time.Duration
}

// DefaultExpiryPolicy treats the first tier as 90 minutes of lead time.
var DefaultExpiryPolicy = ExpiryPolicy{ImmediateThreshold: 90 * time.Minute}

// LegacyExpiryPolicy compares the lead time in hours against 90, as the first
// booking system did. Every job booked less than 90 hours ahead then expires at due.
var LegacyExpiryPolicy = ExpiryPolicy{ImmediateThreshold: 90 * time.Hour}

// WillExpireAt computes the expiry of a job with the default policy.
func WillExpireAt(due, createdAt time.Time) time.Time {
	return DefaultExpiryPolicy.WillExpireAt(due, createdAt)
}

// WillExpireAt returns the moment a pending job created at createdAt and due at due expires.
func (p ExpiryPolicy) WillExpireAt(due, createdAt time.Time) time.Time {
	lead := due.Sub(createdAt)

	switch {
	case lead <= p.ImmediateThreshold:
		return due
	case lead <= 24*time.Hour:
		return createdAt.Add(ShortLeadTTL)
	case lead <= 72*time.Hour:
		return createdAt.Add(MediumLeadTTL)
	default:
		return due.Add(-LongLeadMargin)
	}
}

// SessionTime formats the wall-clock distance between start and end as H:M:S.
// Hours are not wrapped at 24.
func SessionTime(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		d = -d
	}

	hours := int64(d / time.Hour)
	minutes := int64(d % time.Hour / time.Minute)
	seconds := int64(d % time.Minute / time.Second)

	return fmt.Sprintf("%d:%d:%d", hours, minutes, seconds)
}

// SessionTimeText renders an H:M:S session time for completion emails.
func SessionTimeText(sessionTime string) string {
	parts := strings.Split(sessionTime, ":")
	if len(parts) < 2 {
		return sessionTime
	}
	return parts[0] + " h " + parts[1] + " min"
}

// NightWindow is a daily span of hours, [Start, End), that may wrap midnight.
type NightWindow struct {
	Start int
	End   int
}

// DefaultNightWindow runs from 22:00 to 07:00.
var DefaultNightWindow = NightWindow{Start: 22, End: 7}

// Contains reports whether t falls inside the window, in t's location.
func (w NightWindow) Contains(t time.Time) bool {
	if w.Start == w.End {
		return false
	}

	h := t.Hour()
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

// Remaining returns the time left until the window closes, zero outside the window.
func (w NightWindow) Remaining(t time.Time) time.Duration {
	if !w.Contains(t) {
		return 0
	}

	end := time.Date(t.Year(), t.Month(), t.Day(), w.End, 0, 0, 0, t.Location())
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end.Sub(t)
}
