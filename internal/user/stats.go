package user

import (
	"context"
	"math"
	"net/http"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

type TodayStats struct {
	Date              string          `json:"date"`
	Targets           planner.Targets `json:"targets"`
	Consumed          Totals          `json:"consumed"`
	BurnedKcal        int             `json:"burned_kcal"`
	ActiveMin         int             `json:"active_min"`
	Steps             int             `json:"steps"`
	StepGoal          int             `json:"step_goal"`
	RemainingKcal     int             `json:"remaining_kcal"`
	RemainingProteinG int             `json:"remaining_protein_g"`
	Insight           string          `json:"insight,omitempty"`
}

type DayStats struct {
	Date         string  `json:"date"`
	Workouts     int     `json:"workouts"`
	DurationMin  int     `json:"duration_min"`
	BurnedKcal   int     `json:"burned_kcal"`
	Steps        int     `json:"steps"`
	ConsumedKcal int     `json:"consumed_kcal"`
	ProteinG     float64 `json:"protein_g"`
}

type WeekStats struct {
	WeekStart         string                 `json:"week_start"`
	WeekEnd           string                 `json:"week_end"`
	TotalWorkouts     int                    `json:"total_workouts"`
	TotalDurationMin  int                    `json:"total_duration_min"`
	TotalBurnedKcal   int                    `json:"total_burned_kcal"`
	TotalConsumedKcal int                    `json:"total_consumed_kcal"`
	AverageDailyKcal  int                    `json:"average_daily_kcal"`
	Workouts          []database.ActivityLog `json:"workouts"`
	DailyStats        []DayStats             `json:"daily_stats"`
}

// loadLogs reads food and activity logs of [start, end) concurrently.
func loadLogs(ctx context.Context, p database.ListLogsParams) ([]database.FoodLog, []database.ActivityLog, error) {
	var (
		food     []database.FoodLog
		activity []database.ActivityLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		food, err = queries.ListFoodLogs(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = queries.ListActivityLogs(gctx, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return food, activity, nil
}

// TodayStatsHandler handles GET /api/stats/today
func TodayStatsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.Logger(c)

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	targets, profile, err := plans.Targets(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load targets")
		return respondError(c, http.StatusInternalServerError, "Failed to load stats")
	}

	start := utility.StartOfDay(now(), location)
	food, activity, err := loadLogs(ctx, database.ListLogsParams{UserID: userID, Start: start, End: start.AddDate(0, 0, 1)})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load logs")
		return respondError(c, http.StatusInternalServerError, "Failed to load stats")
	}

	stats := TodayStats{
		Date:     start.Format("2006-01-02"),
		Targets:  targets,
		Consumed: sumFood(food),
		StepGoal: defaultStepGoal,
	}
	if profile.StepGoal.Valid && profile.StepGoal.Int32 > 0 {
		stats.StepGoal = int(profile.StepGoal.Int32)
	}
	for _, a := range activity {
		stats.BurnedKcal += int(a.KcalBurned)
		stats.ActiveMin += int(a.DurationMin)
		stats.Steps += int(a.Steps)
	}
	stats.RemainingKcal = targets.Kcal - stats.Consumed.Kcal + stats.BurnedKcal
	stats.RemainingProteinG = targets.ProteinG - int(math.Round(stats.Consumed.ProteinG))

	// Insight is best effort; stats are returned without it on any failure.
	if ai != nil && !disableAIInsights {
		insight, err := openaiservice.GenerateInsight(ctx, ai, openaiservice.ProgressSummary{
			TargetKcal:     targets.Kcal,
			ConsumedKcal:   stats.Consumed.Kcal,
			TargetProteinG: targets.ProteinG,
			ConsumedProtG:  stats.Consumed.ProteinG,
			BurnedKcal:     stats.BurnedKcal,
			Steps:          stats.Steps,
			StepGoal:       stats.StepGoal,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Insight generation failed")
		} else {
			stats.Insight = insight
		}
	}

	return c.JSON(http.StatusOK, stats)
}

// WeekStatsHandler handles GET /api/stats/week?week_start=YYYY-MM-DD. Weeks
// start on Monday; any date snaps to the Monday of its week.
func WeekStatsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	day, err := utility.ParseDay(c.QueryParam("week_start"), now(), location)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}
	start := utility.StartOfWeek(day, location)
	end := start.AddDate(0, 0, 7)

	food, activity, err := loadLogs(ctx, database.ListLogsParams{UserID: userID, Start: start, End: end})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to load logs")
		return respondError(c, http.StatusInternalServerError, "Failed to load stats")
	}

	week := WeekStats{
		WeekStart:  start.Format("2006-01-02"),
		WeekEnd:    start.AddDate(0, 0, 6).Format("2006-01-02"),
		Workouts:   activity,
		DailyStats: make([]DayStats, 7),
	}
	if week.Workouts == nil {
		week.Workouts = []database.ActivityLog{}
	}
	for i := range week.DailyStats {
		week.DailyStats[i].Date = start.AddDate(0, 0, i).Format("2006-01-02")
	}

	dayIndex := func(t time.Time) int {
		return int(math.Round(utility.StartOfDay(t, location).Sub(start).Hours() / 24))
	}
	for _, a := range activity {
		i := dayIndex(a.LoggedAt)
		if i < 0 || i > 6 {
			continue
		}
		d := &week.DailyStats[i]
		d.Workouts++
		d.DurationMin += int(a.DurationMin)
		d.BurnedKcal += int(a.KcalBurned)
		d.Steps += int(a.Steps)

		week.TotalWorkouts++
		week.TotalDurationMin += int(a.DurationMin)
		week.TotalBurnedKcal += int(a.KcalBurned)
	}
	for _, f := range food {
		i := dayIndex(f.LoggedAt)
		if i < 0 || i > 6 {
			continue
		}
		week.DailyStats[i].ConsumedKcal += int(f.Kcal)
		week.DailyStats[i].ProteinG += f.ProteinG
		week.TotalConsumedKcal += int(f.Kcal)
	}
	week.AverageDailyKcal = int(math.Round(float64(week.TotalConsumedKcal) / 7))

	return c.JSON(http.StatusOK, week)
}
