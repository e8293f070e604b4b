package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ParseICal extracts timed VEVENTs from an iCalendar stream. All-day events
// (VALUE=DATE) are skipped. Floating times are read in loc.
func ParseICal(r io.Reader, loc *time.Location) ([]ClassRow, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var rows []ClassRow
	for _, ev := range cal.Events() {
		if row, ok := eventToRow(ev, loc); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// FetchICal downloads and parses a feed.
func FetchICal(ctx context.Context, client *http.Client, url string, loc *time.Location) ([]ClassRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %s", resp.Status)
	}
	return ParseICal(resp.Body, loc)
}

func eventToRow(ev *ics.VEvent, loc *time.Location) (ClassRow, bool) {
	summary := unescapeText(propValue(ev, ics.ComponentPropertySummary))
	start, ok := eventTime(ev.GetProperty(ics.ComponentPropertyDtStart), loc)
	if summary == "" || !ok {
		return ClassRow{}, false
	}

	end, ok := eventTime(ev.GetProperty(ics.ComponentPropertyDtEnd), loc)
	if !ok || !end.After(start) {
		end = start.Add(defaultClassDuration)
	}

	return ClassRow{
		Title:     summary,
		StartsAt:  start,
		EndsAt:    end,
		Location:  unescapeText(propValue(ev, ics.ComponentPropertyLocation)),
		Intensity: InferIntensity(summary),
	}, true
}

func propValue(ev *ics.VEvent, name ics.ComponentProperty) string {
	if p := ev.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

// param looks up a property parameter case-insensitively.
func param(p *ics.IANAProperty, name string) string {
	for k, v := range p.ICalParameters {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return strings.Trim(v[0], `"`)
		}
	}
	return ""
}

// eventTime reads a DTSTART/DTEND value. UTC ("Z") and TZID times are exact;
// floating times are placed in loc.
func eventTime(p *ics.IANAProperty, loc *time.Location) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	value := strings.TrimSpace(p.Value)
	if value == "" || strings.EqualFold(param(p, "VALUE"), "DATE") {
		return time.Time{}, false
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, err == nil
	}

	zone := loc
	if tzid := param(p, "TZID"); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, zone)
	return t, err == nil
}

func unescapeText(s string) string {
	return strings.NewReplacer(`\n`, " ", `\N`, " ", `\,`, ",", `\;`, ";", `\\`, `\`).Replace(strings.TrimSpace(s))
}
