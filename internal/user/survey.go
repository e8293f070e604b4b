package user

import (
	"errors"
	"net/http"

	"bluewell/internal/database"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// SurveyRequest is the onboarding survey. Missing body measurements are
// allowed; targets then use the defaults.
type SurveyRequest struct {
	Age                 *int     `json:"age" validate:"omitempty,min=13,max=120"`
	Gender              string   `json:"gender" validate:"max=32"`
	HeightCm            *float64 `json:"height_cm" validate:"omitempty,gt=50,lt=300"`
	WeightKg            *float64 `json:"weight_kg" validate:"omitempty,gt=20,lt=500"`
	ActivityLevel       *int     `json:"activity_level" validate:"omitempty,min=1,max=4"`
	Goal                string   `json:"goal" validate:"required"`
	DietPrefs           []string `json:"diet_prefs" validate:"max=20,dive,max=64"`
	AvoidFoods          []string `json:"avoid_foods" validate:"max=50,dive,max=64"`
	TimeBudgetMin       *int     `json:"time_budget_min" validate:"omitempty,min=0,max=600"`
	PreferredTimes      []string `json:"preferred_times" validate:"dive,oneof=morning afternoon evening Morning Afternoon Evening"`
	PreferredActivities []string `json:"preferred_activities" validate:"max=20,dive,max=64"`
	StepGoal            *int     `json:"step_goal" validate:"omitempty,min=0,max=100000"`
}

type SurveyResponse struct {
	Completed bool                  `json:"completed"`
	Profile   *database.UserProfile `json:"profile"`
	Targets   planner.Targets       `json:"targets"`
}

// GetSurveyHandler handles GET /api/survey
func GetSurveyHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	profile, err := queries.GetUserProfile(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusOK, SurveyResponse{
			Completed: false,
			Targets:   plans.TargetsFor(database.UserProfile{UserID: userID}),
		})
	}
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to load profile")
		return respondError(c, http.StatusInternalServerError, "Failed to load survey")
	}

	return c.JSON(http.StatusOK, SurveyResponse{
		Completed: true,
		Profile:   &profile,
		Targets:   plans.TargetsFor(profile),
	})
}

// SubmitSurveyHandler handles POST /api/survey. Submitting again replaces
// the previous answers.
func SubmitSurveyHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req SurveyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	goal := database.ParseFitnessGoal(req.Goal)
	if goal == database.FitnessGoalUnknown && req.Goal != string(database.FitnessGoalUnknown) {
		utility.Logger(c).Info().Str("goal", req.Goal).Msg("Unrecognised goal stored as UNKNOWN")
	}

	profile, err := queries.UpsertUserProfile(ctx, database.UpsertUserProfileParams{
		UserID:              userID,
		Age:                 utility.Int4OrNull(req.Age),
		Gender:              utility.TextOrNull(req.Gender),
		HeightCm:            utility.Float8OrNull(req.HeightCm),
		WeightKg:            utility.Float8OrNull(req.WeightKg),
		ActivityLevel:       utility.Int4OrNull(req.ActivityLevel),
		Goal:                goal,
		DietPrefs:           utility.CleanList(req.DietPrefs),
		AvoidFoods:          utility.CleanList(req.AvoidFoods),
		TimeBudgetMin:       utility.Int4OrNull(req.TimeBudgetMin),
		PreferredTimes:      utility.CleanList(req.PreferredTimes),
		PreferredActivities: utility.CleanList(req.PreferredActivities),
		StepGoal:            utility.Int4OrNull(req.StepGoal),
	})
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to save survey")
		return respondError(c, http.StatusInternalServerError, "Failed to save survey")
	}

	return c.JSON(http.StatusOK, SurveyResponse{
		Completed: true,
		Profile:   &profile,
		Targets:   plans.TargetsFor(profile),
	})
}

// ResetSurveyHandler handles DELETE /api/survey
func ResetSurveyHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	if err := queries.DeleteUserProfile(ctx, userID); err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to reset survey")
		return respondError(c, http.StatusInternalServerError, "Failed to reset survey")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Survey reset"})
}
