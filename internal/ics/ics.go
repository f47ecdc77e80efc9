// Package ics renders single-event iCalendar invitations.
package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDuration = 60 * time.Minute
	DefaultLocation = "Zoom"

	basicUTC = "20060102T150405Z"
)

type Event struct {
	Title       string
	Description string
	StartsAt    time.Time
	// Duration defaults to DefaultDuration when zero.
	Duration time.Duration
	// Location defaults to DefaultLocation when empty.
	Location string
	URL      string
}

// Build renders ev as a VCALENDAR with one VEVENT. Lines end in CRLF and
// all timestamps are UTC. now is used for DTSTAMP.
func Build(ev Event, now time.Time) string {
	duration := ev.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	location := ev.Location
	if location == "" {
		location = DefaultLocation
	}

	start := ev.StartsAt.UTC()
	end := start.Add(duration)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//FilmClub//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + uuid.NewString() + "@filmclub",
		"DTSTAMP:" + now.UTC().Format(basicUTC),
		"DTSTART:" + start.Format(basicUTC),
		"DTEND:" + end.Format(basicUTC),
		"SUMMARY:" + Escape(ev.Title),
	}
	if ev.Description != "" {
		lines = append(lines, "DESCRIPTION:"+Escape(ev.Description))
	}
	lines = append(lines, "LOCATION:"+Escape(location))
	if ev.URL != "" {
		lines = append(lines, "URL:"+ev.URL)
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR")

	return strings.Join(lines, "\r\n") + "\r\n"
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

// Escape applies iCalendar TEXT escaping.
func Escape(s string) string {
	return escaper.Replace(s)
}
