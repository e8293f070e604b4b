package utility

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfWeekIsMonday(t *testing.T) {
	loc := time.UTC
	sunday := time.Date(2026, 3, 8, 15, 30, 0, 0, loc)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	assert.Equal(t, monday, StartOfWeek(sunday, loc))
	assert.Equal(t, monday, StartOfWeek(monday.Add(9*time.Hour), loc))
}

func TestParseDay(t *testing.T) {
	now := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

	d, err := ParseDay("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDay("2026-01-15", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 15, d.Day())

	_, err = ParseDay("15/01/2026", now, time.UTC)
	assert.Error(t, err)
}

func TestCleanList(t *testing.T) {
	assert.Equal(t, []string{"vegan", "halal"}, CleanList([]string{" Vegan ", "", "HALAL"}))
}

func TestEstimateJournalRecentNewestFirst(t *testing.T) {
	j := NewEstimateJournal(filepath.Join(t.TempDir(), "nested", "estimates.jsonl"))

	empty, err := j.Recent("u1", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"Bagel", "Salad", "Burrito"} {
		require.NoError(t, j.Append(EstimateEntry{
			Time: base.Add(time.Duration(i) * time.Minute), UserID: "u1", Mode: "text", Name: name, Calories: 100 * (i + 1),
		}))
	}
	require.NoError(t, j.Append(EstimateEntry{UserID: "u2", Mode: "photo", Name: "Pizza"}))

	got, err := j.Recent("u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Burrito", got[0].Name)
	assert.Equal(t, 300, got[0].Calories)
	assert.Equal(t, "Salad", got[1].Name)

	all, err := j.Recent("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestEstimateJournalIgnoresGlobalTimeFormat(t *testing.T) {
	prev := zerolog.TimeFieldFormat
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	t.Cleanup(func() { zerolog.TimeFieldFormat = prev })

	j := NewEstimateJournal(filepath.Join(t.TempDir(), "estimates.jsonl"))
	at := time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC)
	require.NoError(t, j.Append(EstimateEntry{Time: at, UserID: "u1", Mode: "text", Name: "Oatmeal", Calories: 300}))

	got, err := j.Recent("u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Oatmeal", got[0].Name)
	assert.True(t, at.Equal(got[0].Time))
}

func TestMailerSendHTML(t *testing.T) {
	var gotTo []string
	var body strings.Builder
	m := NewMailerWithSender("plans@bluewell.app", gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		gotTo = to
		_, err := msg.WriteTo(&body)
		return err
	}))

	require.NoError(t, m.SendHTML("student@duke.edu", "Your plan", "<p>Oatmeal</p>"))
	assert.Equal(t, []string{"student@duke.edu"}, gotTo)
	assert.Contains(t, body.String(), "Oatmeal")
}

func TestMailerNotConfigured(t *testing.T) {
	m := NewMailer(SMTPConfig{})
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendHTML("a@b.c", "s", "b"), ErrMailerNotConfigured)
}
