package server

import (
	"fmt"
	"net/http"
	"time"

	"bluewell/internal/auth"
	"bluewell/internal/user"
	"bluewell/internal/utility"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/time/rate"
)

// Provider-backed routes share a per-user budget of 10 calls a minute.
const (
	aiRequestsPerMinute = 10
	aiBurst             = 5
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Plan-Cached", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Validator = utility.NewValidator()
	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)

	// Websocket for plan update notifications
	e.GET("/ws", user.PlanSocketHandler, auth.JwtAuthMiddleware)

	// Protected routes
	protected := e.Group("/api")
	protected.Use(auth.JwtAuthMiddleware)

	aiLimit := AIRateLimiter(aiRequestsPerMinute, aiBurst)

	// Onboarding survey
	protected.GET("/survey", user.GetSurveyHandler)
	protected.POST("/survey", user.SubmitSurveyHandler)
	protected.DELETE("/survey", user.ResetSurveyHandler)

	// Food & activity logs
	protected.POST("/logs/food", user.CreateFoodLogHandler)
	protected.POST("/logs/food/estimate-text", user.EstimateFoodTextHandler, aiLimit)
	protected.POST("/logs/food/estimate-photo", user.EstimateFoodPhotoHandler, aiLimit)
	protected.GET("/logs/food", user.ListFoodLogsHandler)
	protected.DELETE("/logs/food/:id", user.DeleteFoodLogHandler)
	protected.GET("/logs/estimates", user.ListEstimatesHandler)
	protected.POST("/logs/activity", user.CreateActivityLogHandler)
	protected.GET("/logs/activity", user.ListActivityLogsHandler)
	protected.DELETE("/logs/activity/:id", user.DeleteActivityLogHandler)

	// Dining & classes
	protected.GET("/menu/search", user.SearchMenuHandler)
	protected.GET("/classes", user.ListClassesHandler)

	// Plans
	protected.POST("/plan/generate", user.GeneratePlanHandler, aiLimit)
	protected.GET("/plan/today", user.TodayPlanHandler)
	protected.GET("/plan/next6h", user.Next6HoursPlanHandler)
	protected.GET("/plan/week", user.WeekPlanHandler)
	protected.POST("/plan/email", user.EmailPlanHandler, aiLimit)

	// Stats
	protected.GET("/stats/today", user.TodayStatsHandler)
	protected.GET("/stats/week", user.WeekStatsHandler)

	return e
}

// AIRateLimiter limits provider-backed routes per authenticated user, falling
// back to the client IP.
func AIRateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, err := utility.GetUserIDFromContext(c); err == nil {
				return id, nil
			}
			return utility.GetRealIP(c), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			utility.Logger(c).Warn().Str("client", identifier).Msg("AI rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, slow down"})
		},
	})
}

// healthHandler reports database status plus host CPU and memory usage.
func (s *Server) healthHandler(c echo.Context) error {
	db := s.db.Health()

	status := "online"
	if db["status"] != "up" {
		status = "degraded"
	}

	body := map[string]interface{}{
		"status":   status,
		"database": db,
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
	}

	if v, err := mem.VirtualMemory(); err == nil {
		body["memory"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/1024/1024/1024),
			"used_gb":      fmt.Sprintf("%.2f GB", float64(v.Used)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
		}
	}
	// Interval 0 compares against the previous call instead of blocking.
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		body["cpu"] = map[string]interface{}{
			"usage_percent": fmt.Sprintf("%.2f%%", pct[0]),
		}
	}

	code := http.StatusOK
	if status != "online" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, body)
}

// LoggerMiddleware tags every request with an X-Request-ID and stores a
// child logger under "logger".
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
