package user

import (
	"context"
	"net/http"
	"testing"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLogs(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	food := []database.CreateFoodLogParams{
		{UserID: testUserID, LoggedAt: testNow.Add(-2 * time.Hour), Name: "Egg Sandwich", Kcal: 420, ProteinG: 22},
		{UserID: testUserID, LoggedAt: testNow.Add(-30 * time.Minute), Name: "Latte", Kcal: 180, ProteinG: 9},
		{UserID: testUserID, LoggedAt: testNow.AddDate(0, 0, -1), Name: "Pizza", Kcal: 800, ProteinG: 30},
	}
	for _, f := range food {
		_, err := store.CreateFoodLog(ctx, f)
		require.NoError(t, err)
	}

	activity := []database.CreateActivityLogParams{
		{UserID: testUserID, LoggedAt: testNow.Add(-3 * time.Hour), Title: "Run", DurationMin: 30, KcalBurned: 250, Steps: 4000},
		{UserID: testUserID, LoggedAt: testNow.AddDate(0, 0, -2), Title: "Lift", DurationMin: 45, KcalBurned: 300},
		{UserID: testUserID, LoggedAt: testNow.AddDate(0, 0, -3), Title: "Last week", DurationMin: 60, KcalBurned: 500},
	}
	for _, a := range activity {
		_, err := store.CreateActivityLog(ctx, a)
		require.NoError(t, err)
	}
}

func TestTodayStats(t *testing.T) {
	ai := &fakeAI{complete: replyWith("  Nice start, add protein at lunch. ")}
	api := newTestAPI(t, apiOptions{ai: ai})
	seedLogs(t, api.store)

	_, err := api.store.UpsertUserProfile(context.Background(), database.UpsertUserProfileParams{
		UserID:   testUserID,
		Goal:     database.FitnessGoalMaintain,
		StepGoal: pgtype.Int4{Int32: 10000, Valid: true},
	})
	require.NoError(t, err)

	rec := api.do(t, http.MethodGet, "/api/stats/today", nil)
	assertStatus(t, http.StatusOK, rec)

	var stats TodayStats
	decode(t, rec, &stats)
	assert.Equal(t, "2026-03-04", stats.Date)
	assert.Equal(t, 600, stats.Consumed.Kcal)
	assert.Equal(t, 250, stats.BurnedKcal)
	assert.Equal(t, 30, stats.ActiveMin)
	assert.Equal(t, 4000, stats.Steps)
	assert.Equal(t, 10000, stats.StepGoal)
	assert.Equal(t, stats.Targets.Kcal-600+250, stats.RemainingKcal)
	assert.Equal(t, "Nice start, add protein at lunch.", stats.Insight)
}

func TestTodayStatsWithoutInsight(t *testing.T) {
	ai := &fakeAI{complete: func(openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
		t.Fatal("insight must not be requested")
		return nil, nil
	}}
	api := newTestAPI(t, apiOptions{ai: ai, disableInsights: true})

	rec := api.do(t, http.MethodGet, "/api/stats/today", nil)
	assertStatus(t, http.StatusOK, rec)

	var stats TodayStats
	decode(t, rec, &stats)
	assert.Empty(t, stats.Insight)
	assert.Equal(t, 8000, stats.StepGoal)
	assert.True(t, stats.Targets.Defaulted)
}

func TestTodayStatsInsightFailureIsIgnored(t *testing.T) {
	ai := &fakeAI{complete: func(openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
		return nil, &openaiservice.APIError{StatusCode: http.StatusUnauthorized}
	}}
	api := newTestAPI(t, apiOptions{ai: ai})

	rec := api.do(t, http.MethodGet, "/api/stats/today", nil)
	assertStatus(t, http.StatusOK, rec)
}

func TestWeekStats(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	seedLogs(t, api.store)

	// Wednesday snaps to Monday 2026-03-02.
	rec := api.do(t, http.MethodGet, "/api/stats/week?week_start=2026-03-04", nil)
	assertStatus(t, http.StatusOK, rec)

	var week WeekStats
	decode(t, rec, &week)
	assert.Equal(t, "2026-03-02", week.WeekStart)
	assert.Equal(t, "2026-03-08", week.WeekEnd)
	assert.Equal(t, 2, week.TotalWorkouts)
	assert.Equal(t, 75, week.TotalDurationMin)
	assert.Equal(t, 550, week.TotalBurnedKcal)
	assert.Equal(t, 1400, week.TotalConsumedKcal)
	assert.Equal(t, 200, week.AverageDailyKcal)

	require.Len(t, week.DailyStats, 7)
	assert.Equal(t, 1, week.DailyStats[0].Workouts)
	assert.Equal(t, 300, week.DailyStats[0].BurnedKcal)
	assert.Equal(t, 800, week.DailyStats[1].ConsumedKcal)
	assert.Equal(t, 600, week.DailyStats[2].ConsumedKcal)
	assert.Equal(t, 4000, week.DailyStats[2].Steps)
	assert.Zero(t, week.DailyStats[6].Workouts)

	rec = api.do(t, http.MethodGet, "/api/stats/week", nil)
	decode(t, rec, &week)
	assert.Equal(t, "2026-03-02", week.WeekStart)
}
