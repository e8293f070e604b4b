package user

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/utility"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

const maxPhotoBytes = 10 << 20

type FoodLogRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	MealType   string  `json:"meal_type" validate:"omitempty,oneof=Breakfast Lunch Dinner Snack"`
	Kcal       int     `json:"kcal" validate:"min=0,max=10000"`
	ProteinG   float64 `json:"protein_g" validate:"min=0,max=1000"`
	CarbsG     float64 `json:"carbs_g" validate:"min=0,max=1000"`
	FatG       float64 `json:"fat_g" validate:"min=0,max=1000"`
	LoggedAt   string  `json:"logged_at"` // RFC3339 or YYYY-MM-DD, defaults to now
	MenuItemID string  `json:"menu_item_id"`
}

type EstimateTextRequest struct {
	Description string `json:"description" validate:"required,max=1000"`
	MealType    string `json:"meal_type" validate:"omitempty,oneof=Breakfast Lunch Dinner Snack"`
	Log         bool   `json:"log"`
}

type ActivityLogRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Type        string `json:"type" validate:"max=64"`
	DurationMin int    `json:"duration_min" validate:"required,min=1,max=1440"`
	KcalBurned  int    `json:"kcal_burned" validate:"min=0,max=10000"`
	Steps       int    `json:"steps" validate:"min=0,max=200000"`
	LoggedAt    string `json:"logged_at"`
}

type EstimateResponse struct {
	Estimate *openaiservice.Estimate `json:"estimate"`
	Log      *database.FoodLog       `json:"log,omitempty"`
}

type Totals struct {
	Kcal     int     `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

func sumFood(logs []database.FoodLog) Totals {
	var t Totals
	for _, l := range logs {
		t.Kcal += int(l.Kcal)
		t.ProteinG += l.ProteinG
		t.CarbsG += l.CarbsG
		t.FatG += l.FatG
	}
	return t
}

// parseLoggedAt accepts RFC3339, a bare date (noon that day) or nothing (now).
func parseLoggedAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now().In(location), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid logged_at %q", raw)
	}
	return d.Add(12 * time.Hour), nil
}

func dayRange(c echo.Context) (time.Time, time.Time, error) {
	day, err := utility.ParseDay(c.QueryParam("date"), now(), location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}

/* =================================================================================
								FOOD LOGS
=================================================================================*/

// CreateFoodLogHandler handles POST /api/logs/food
func CreateFoodLogHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req FoodLogRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	loggedAt, err := parseLoggedAt(req.LoggedAt)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	entry, err := queries.CreateFoodLog(ctx, database.CreateFoodLogParams{
		UserID:     userID,
		LoggedAt:   loggedAt,
		MealType:   utility.TextOrNull(req.MealType),
		Name:       strings.TrimSpace(req.Name),
		Source:     database.LogSourceManual,
		Kcal:       int32(req.Kcal),
		ProteinG:   req.ProteinG,
		CarbsG:     req.CarbsG,
		FatG:       req.FatG,
		MenuItemID: utility.TextOrNull(req.MenuItemID),
	})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to create food log")
		return respondError(c, http.StatusInternalServerError, "Failed to save food log")
	}

	return c.JSON(http.StatusCreated, entry)
}

// EstimateFoodTextHandler handles POST /api/logs/food/estimate-text
func EstimateFoodTextHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req EstimateTextRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if ai == nil {
		return providerError(c, openaiservice.ErrNotConfigured)
	}

	est, err := openaiservice.EstimateFromText(c.Request().Context(), ai, req.Description)
	if err != nil {
		return providerError(c, err)
	}

	return finishEstimate(c, userID, "text", req.Description, req.MealType, req.Log, est)
}

// EstimateFoodPhotoHandler handles POST /api/logs/food/estimate-photo
// (multipart: image, hint, meal_type, log).
func EstimateFoodPhotoHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "An image file is required in the 'image' field")
	}
	if fh.Size > maxPhotoBytes {
		return respondError(c, http.StatusRequestEntityTooLarge, "Image must be 10 MB or smaller")
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Unable to read image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil || len(data) == 0 {
		return respondError(c, http.StatusBadRequest, "Unable to read image")
	}
	if len(data) > maxPhotoBytes {
		return respondError(c, http.StatusRequestEntityTooLarge, "Image must be 10 MB or smaller")
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return respondError(c, http.StatusBadRequest, "File must be an image", map[string]string{"content_type": mimeType})
	}

	mealType := c.FormValue("meal_type")
	switch mealType {
	case "", "Breakfast", "Lunch", "Dinner", "Snack":
	default:
		return respondError(c, http.StatusBadRequest, "Validation failed", map[string]string{"meal_type": "oneof=Breakfast Lunch Dinner Snack"})
	}
	logIt, _ := strconv.ParseBool(c.FormValue("log"))

	if ai == nil {
		return providerError(c, openaiservice.ErrNotConfigured)
	}

	hint := c.FormValue("hint")
	est, err := openaiservice.EstimateFromPhoto(c.Request().Context(), ai, data, mimeType, hint)
	if err != nil {
		return providerError(c, err)
	}

	return finishEstimate(c, userID, "photo", fh.Filename, mealType, logIt, est)
}

// finishEstimate journals the estimate and optionally stores it as a food log.
func finishEstimate(c echo.Context, userID, mode, input, mealType string, logIt bool, est *openaiservice.Estimate) error {
	ctx := c.Request().Context()
	logger := utility.Logger(c)

	if journal != nil {
		err := journal.Append(utility.EstimateEntry{
			Time:       now(),
			UserID:     userID,
			Mode:       mode,
			Input:      input,
			Name:       est.Name,
			Calories:   est.Calories,
			ProteinG:   est.ProteinG,
			CarbsG:     est.CarbsG,
			FatG:       est.FatG,
			Confidence: est.Confidence,
			Rationale:  est.Rationale,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to journal estimate")
		}
	}

	resp := EstimateResponse{Estimate: est}
	if !logIt {
		return c.JSON(http.StatusOK, resp)
	}

	source := database.LogSourceText
	if mode == "photo" {
		source = database.LogSourcePhoto
	}
	entry, err := queries.CreateFoodLog(ctx, database.CreateFoodLogParams{
		UserID:     userID,
		LoggedAt:   now().In(location),
		MealType:   utility.TextOrNull(mealType),
		Name:       est.Name,
		Source:     source,
		Kcal:       int32(est.Calories),
		ProteinG:   est.ProteinG,
		CarbsG:     est.CarbsG,
		FatG:       est.FatG,
		Confidence: pgtype.Float8{Float64: est.Confidence, Valid: true},
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to log estimated meal")
		return respondError(c, http.StatusInternalServerError, "Estimate succeeded but saving the log failed", resp)
	}
	resp.Log = &entry
	return c.JSON(http.StatusCreated, resp)
}

// ListFoodLogsHandler handles GET /api/logs/food?date=YYYY-MM-DD
func ListFoodLogsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	start, end, err := dayRange(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	logs, err := queries.ListFoodLogs(ctx, database.ListLogsParams{UserID: userID, Start: start, End: end})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to list food logs")
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve food logs")
	}
	if logs == nil {
		logs = []database.FoodLog{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":   start.Format("2006-01-02"),
		"logs":   logs,
		"totals": sumFood(logs),
	})
}

// DeleteFoodLogHandler handles DELETE /api/logs/food/:id
func DeleteFoodLogHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	n, err := queries.DeleteFoodLog(ctx, database.DeleteLogParams{ID: c.Param("id"), UserID: userID})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to delete food log")
		return respondError(c, http.StatusInternalServerError, "Failed to delete food log")
	}
	if n == 0 {
		return respondError(c, http.StatusNotFound, "Food log not found")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Food log deleted"})
}

// ListEstimatesHandler handles GET /api/logs/estimates?limit=N
func ListEstimatesHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	limit = utility.Min(limit, 100)

	if journal == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"entries": []utility.EstimateEntry{}})
	}

	entries, err := journal.Recent(userID, limit)
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to read estimate journal")
		return respondError(c, http.StatusInternalServerError, "Failed to read estimates")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries})
}

/* =================================================================================
								ACTIVITY LOGS
=================================================================================*/

// CreateActivityLogHandler handles POST /api/logs/activity
func CreateActivityLogHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req ActivityLogRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	loggedAt, err := parseLoggedAt(req.LoggedAt)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	entry, err := queries.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:      userID,
		LoggedAt:    loggedAt,
		Title:       strings.TrimSpace(req.Title),
		Type:        utility.TextOrNull(strings.ToLower(req.Type)),
		DurationMin: int32(req.DurationMin),
		KcalBurned:  int32(req.KcalBurned),
		Steps:       int32(req.Steps),
	})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to create activity log")
		return respondError(c, http.StatusInternalServerError, "Failed to save activity log")
	}

	return c.JSON(http.StatusCreated, entry)
}

// ListActivityLogsHandler handles GET /api/logs/activity?date=YYYY-MM-DD
func ListActivityLogsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	start, end, err := dayRange(c)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	logs, err := queries.ListActivityLogs(ctx, database.ListLogsParams{UserID: userID, Start: start, End: end})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to list activity logs")
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve activity logs")
	}
	if logs == nil {
		logs = []database.ActivityLog{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"date": start.Format("2006-01-02"),
		"logs": logs,
	})
}

// DeleteActivityLogHandler handles DELETE /api/logs/activity/:id
func DeleteActivityLogHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	n, err := queries.DeleteActivityLog(ctx, database.DeleteLogParams{ID: c.Param("id"), UserID: userID})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to delete activity log")
		return respondError(c, http.StatusInternalServerError, "Failed to delete activity log")
	}
	if n == 0 {
		return respondError(c, http.StatusNotFound, "Activity log not found")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Activity log deleted"})
}
