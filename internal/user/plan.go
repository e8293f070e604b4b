package user

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/labstack/echo/v4"
)

type GeneratePlanRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=TODAY NEXT_6_HOURS WEEK"`
	Refresh bool   `json:"refresh"`
}

type EmailPlanRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// GeneratePlanHandler handles POST /api/plan/generate
func GeneratePlanHandler(c echo.Context) error {
	var req GeneratePlanRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Kind = strings.ToUpper(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = string(database.PlanKindToday)
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Validation failed", utility.ValidationDetails(err))
	}

	return servePlan(c, database.PlanKind(req.Kind), req.Refresh)
}

// TodayPlanHandler handles GET /api/plan/today?refresh=true
func TodayPlanHandler(c echo.Context) error {
	return servePlan(c, database.PlanKindToday, refreshParam(c))
}

// Next6HoursPlanHandler handles GET /api/plan/next6h
func Next6HoursPlanHandler(c echo.Context) error {
	return servePlan(c, database.PlanKindNext6Hours, refreshParam(c))
}

// WeekPlanHandler handles GET /api/plan/week
func WeekPlanHandler(c echo.Context) error {
	return servePlan(c, database.PlanKindWeek, refreshParam(c))
}

func refreshParam(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("refresh"))
	return v
}

// servePlan writes the stored payload as is, so a cached plan is returned
// byte for byte.
func servePlan(c echo.Context, kind database.PlanKind, refresh bool) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	res, err := plans.GetPlan(c.Request().Context(), userID, kind, refresh)
	if err != nil {
		return planError(c, err)
	}

	utility.Logger(c).Info().
		Str("kind", string(kind)).
		Str("model", res.Plan.Model).
		Bool("cached", res.Cached).
		Msg("Plan served")

	c.Response().Header().Set("X-Plan-Cached", strconv.FormatBool(res.Cached))
	return c.JSONBlob(http.StatusOK, res.Payload)
}

func planError(c echo.Context, err error) error {
	var noData *planner.NoDiningDataError
	switch status := openaiservice.StatusOf(err); {
	case errors.As(err, &noData):
		return respondError(c, http.StatusConflict, "No dining data available for planning", map[string]interface{}{
			"source":  noData.Source,
			"vendors": noData.Vendors,
			"items":   noData.Items,
		})
	case status == http.StatusUnauthorized:
		return respondError(c, http.StatusBadGateway, "AI provider rejected credentials")
	case status == http.StatusTooManyRequests:
		return respondError(c, http.StatusTooManyRequests, "AI provider rate limit reached, try again shortly")
	default:
		utility.Logger(c).Error().Err(err).Msg("Plan generation failed")
		return respondError(c, http.StatusInternalServerError, "Failed to generate plan")
	}
}

var planEmailTemplate = template.Must(template.New("plan").Parse(`<h2>Your BlueWell plan for {{.Day}}</h2>
<p>Target: {{.Targets.Kcal}} kcal, {{.Targets.ProteinG}} g protein</p>
<ul>
{{range .Items}}<li><strong>{{.Start.Format "3:04 PM"}}</strong> {{.Title}}{{if .Vendor}} ({{.Vendor}}){{end}}{{if .Location}} at {{.Location}}{{end}}{{if .Kcal}}, {{.Kcal}} kcal{{end}}</li>
{{end}}</ul>
{{if .Rationale}}<p>{{.Rationale}}</p>{{end}}`))

// EmailPlanHandler handles POST /api/plan/email: today's plan is sent to
// the given address or the account email.
func EmailPlanHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req EmailPlanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	to := req.To
	if to == "" {
		if u, ok := c.Get("user").(*database.User); ok && u.Email.Valid {
			to = u.Email.String
		}
	}
	if to == "" {
		return respondError(c, http.StatusBadRequest, "No email address on file, pass 'to'")
	}
	if mailer == nil || !mailer.Configured() {
		return respondError(c, http.StatusServiceUnavailable, "Email is not configured on this server")
	}

	res, err := plans.GetPlan(c.Request().Context(), userID, database.PlanKindToday, false)
	if err != nil {
		return planError(c, err)
	}

	var body bytes.Buffer
	if err := planEmailTemplate.Execute(&body, res.Plan); err != nil {
		utility.Logger(c).Error().Err(err).Msg("Failed to render plan email")
		return respondError(c, http.StatusInternalServerError, "Failed to render plan email")
	}

	if err := mailer.SendHTML(to, "Your BlueWell plan for "+res.Plan.Day, body.String()); err != nil {
		utility.Logger(c).Error().Err(err).Str("to", to).Msg("Failed to send plan email")
		return respondError(c, http.StatusBadGateway, "Failed to send plan email")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Plan emailed to " + to})
}
