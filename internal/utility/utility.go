package utility

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetRealIP returns the client address, preferring proxy headers.
func GetRealIP(c echo.Context) string {
	// 1. X-Forwarded-For may be "client, proxy1, proxy2"
	if xForwardedFor := c.Request().Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	// 2. X-Real-IP
	if xRealIP := c.Request().Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// GetUserIDFromContext safely retrieves user ID from Echo context
func GetUserIDFromContext(c echo.Context) (string, error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// Logger returns the request-scoped logger set by the logging middleware,
// or the global logger when none is present.
func Logger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	l := log.Logger
	return &l
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// ParseDay parses a YYYY-MM-DD query value in loc. An empty value means today.
func ParseDay(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return StartOfDay(now, loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func TextOrNull(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

func Int4OrNull(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func Float8OrNull(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}

// CleanList trims entries, drops blanks and lowercases them.
func CleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
