package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bluewell/internal/database"
)

const defaultClassDuration = time.Hour

// ClassRow is one scheduled class from a CSV or iCal source.
type ClassRow struct {
	Title     string
	StartsAt  time.Time
	EndsAt    time.Time
	Location  string
	Intensity database.ClassIntensity
}

var (
	dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "1/2/06"}
	timeLayouts = []string{"3:04 PM", "3:04PM", "03:04 PM", "15:04", "3 PM"}
)

// ParseScheduleCSV reads the fitness schedule export (Date, StartTime,
// AllDay, Title, Location). All-day rows are not classes and are skipped,
// as are rows whose date or time cannot be parsed.
func ParseScheduleCSV(r io.Reader, loc *time.Location) ([]ClassRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexHeader(header)
	for _, required := range []string{"date", "starttime", "title"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var rows []ClassRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		title := field(rec, cols, "title")
		if title == "" || isTrue(field(rec, cols, "allday")) {
			continue
		}

		start, ok := parseDateTime(field(rec, cols, "date"), field(rec, cols, "starttime"), loc)
		if !ok {
			continue
		}

		rows = append(rows, ClassRow{
			Title:     title,
			StartsAt:  start,
			EndsAt:    start.Add(defaultClassDuration),
			Location:  field(rec, cols, "location"),
			Intensity: InferIntensity(title),
		})
	}
	return rows, nil
}

func parseDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		if day, err = time.ParseInLocation(layout, date, loc); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

var (
	highKeywords = []string{"hiit", "spin", "cycle", "boot camp", "bootcamp", "crossfit", "tabata", "kickbox", "sprint", "bodypump", "body pump"}
	lowKeywords  = []string{"yoga", "pilates", "stretch", "barre", "meditation", "walk", "mobility", "restorative", "tai chi"}
)

// InferIntensity grades a class from keywords in its title; anything else is med.
func InferIntensity(title string) database.ClassIntensity {
	t := strings.ToLower(title)
	for _, kw := range highKeywords {
		if strings.Contains(t, kw) {
			return database.IntensityHigh
		}
	}
	for _, kw := range lowKeywords {
		if strings.Contains(t, kw) {
			return database.IntensityLow
		}
	}
	return database.IntensityMed
}
