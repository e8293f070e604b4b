/*
Package user implements the authenticated API handlers: onboarding survey,
food and activity logging, menu and class lookup, plans and progress stats.
*/
package user

import (
	"errors"
	"net/http"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

var (
	queries database.Querier
	plans   *planner.Service
	classes *planner.ClassLoader
	ai      openaiservice.Client
	journal *utility.EstimateJournal
	mailer  *utility.Mailer

	defaultStepGoal   = 8000
	disableAIInsights bool
	location          = time.Local
	now               = time.Now
)

// Deps are the collaborators the handlers use. AI may be nil when no provider
// key is configured.
type Deps struct {
	Queries           database.Querier
	Planner           *planner.Service
	Classes           *planner.ClassLoader
	AI                openaiservice.Client
	Journal           *utility.EstimateJournal
	Mailer            *utility.Mailer
	DefaultStepGoal   int
	DisableAIInsights bool
	Location          *time.Location
	Now               func() time.Time
}

// InitUserPackage is called by the server package before routes are registered.
func InitUserPackage(d Deps) {
	queries = d.Queries
	plans = d.Planner
	classes = d.Classes
	ai = d.AI
	journal = d.Journal
	mailer = d.Mailer
	disableAIInsights = d.DisableAIInsights

	if d.DefaultStepGoal > 0 {
		defaultStepGoal = d.DefaultStepGoal
	}
	location = time.Local
	if d.Location != nil {
		location = d.Location
	}
	now = time.Now
	if d.Now != nil {
		now = d.Now
	}
	log.Info().Bool("ai_enabled", ai != nil).Msg("User package initialized.")
}

/* =================================================================================
								RESPONSE HELPERS
=================================================================================*/

func errorBody(msg string, details interface{}) map[string]interface{} {
	body := map[string]interface{}{"error": msg}
	if details != nil {
		body["details"] = details
	}
	return body
}

// respondError writes the {error, details} envelope.
func respondError(c echo.Context, status int, msg string, details ...interface{}) error {
	var d interface{}
	if len(details) > 0 {
		d = details[0]
	}
	return c.JSON(status, errorBody(msg, d))
}

// bindAndValidate binds the body into req and runs the registered validator.
// The returned error is an *echo.HTTPError carrying the same envelope.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody("Invalid request body", nil))
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorBody("Validation failed", utility.ValidationDetails(err)))
	}
	return nil
}

// providerError maps a provider failure on the estimate and insight routes.
func providerError(c echo.Context, err error) error {
	switch status := openaiservice.StatusOf(err); {
	case errors.Is(err, openaiservice.ErrNotConfigured):
		return respondError(c, http.StatusServiceUnavailable, "AI features are not configured on this server")
	case status == http.StatusUnauthorized:
		return respondError(c, http.StatusBadGateway, "AI provider rejected credentials")
	case status == http.StatusTooManyRequests:
		return respondError(c, http.StatusTooManyRequests, "AI provider rate limit reached, try again shortly")
	default:
		utility.Logger(c).Error().Err(err).Msg("AI provider request failed")
		return respondError(c, http.StatusBadGateway, "AI provider request failed", err.Error())
	}
}
