package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/utility"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// testNow is a Wednesday.
var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

const testUserID = "user-1"

// fakeAI answers completions and embeddings with canned functions.
type fakeAI struct {
	mu       sync.Mutex
	complete func(req openaiservice.CompletionRequest) (*openaiservice.Completion, error)
	embed    func(inputs []string) ([][]float32, error)
	requests []openaiservice.CompletionRequest
}

func (f *fakeAI) Complete(_ context.Context, req openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.complete(req)
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if f.embed == nil {
		return nil, openaiservice.ErrNotConfigured
	}
	return f.embed(inputs)
}

func (f *fakeAI) Model() string { return "fake-model" }

func replyWith(content string) func(openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
	return func(openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
		return &openaiservice.Completion{Model: "fake-model", Content: content}, nil
	}
}

type testAPI struct {
	e       *echo.Echo
	store   *database.MemoryStore
	journal *utility.EstimateJournal
}

type apiOptions struct {
	ai              openaiservice.Client
	mailer          *utility.Mailer
	classes         *planner.ClassLoader
	disableInsights bool
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	store := database.NewMemoryStore()
	clock := func() time.Time { return testNow }
	j := utility.NewEstimateJournal(filepath.Join(t.TempDir(), "estimates.jsonl"))

	InitUserPackage(Deps{
		Queries: store,
		Planner: planner.NewService(store, opts.ai, opts.classes, planner.Options{
			Location:       time.UTC,
			Now:            clock,
			DisableToolUse: true,
		}),
		Classes:           opts.classes,
		AI:                opts.ai,
		Journal:           j,
		Mailer:            opts.mailer,
		DefaultStepGoal:   8000,
		DisableAIInsights: opts.disableInsights,
		Location:          time.UTC,
		Now:               clock,
	})

	e := echo.New()
	e.Validator = utility.NewValidator()

	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Test-User")
			if id == "" {
				id = testUserID
			}
			c.Set("user_id", id)
			c.Set("user", &database.User{ID: id, Email: pgtype.Text{String: id + "@duke.edu", Valid: true}})
			return next(c)
		}
	})

	api.GET("/survey", GetSurveyHandler)
	api.POST("/survey", SubmitSurveyHandler)
	api.DELETE("/survey", ResetSurveyHandler)

	api.POST("/logs/food", CreateFoodLogHandler)
	api.POST("/logs/food/estimate-text", EstimateFoodTextHandler)
	api.POST("/logs/food/estimate-photo", EstimateFoodPhotoHandler)
	api.GET("/logs/food", ListFoodLogsHandler)
	api.DELETE("/logs/food/:id", DeleteFoodLogHandler)
	api.GET("/logs/estimates", ListEstimatesHandler)
	api.POST("/logs/activity", CreateActivityLogHandler)
	api.GET("/logs/activity", ListActivityLogsHandler)
	api.DELETE("/logs/activity/:id", DeleteActivityLogHandler)

	api.GET("/menu/search", SearchMenuHandler)
	api.GET("/classes", ListClassesHandler)

	api.POST("/plan/generate", GeneratePlanHandler)
	api.GET("/plan/today", TodayPlanHandler)
	api.GET("/plan/next6h", Next6HoursPlanHandler)
	api.GET("/plan/week", WeekPlanHandler)
	api.POST("/plan/email", EmailPlanHandler)

	api.GET("/stats/today", TodayStatsHandler)
	api.GET("/stats/week", WeekStatsHandler)

	return &testAPI{e: e, store: store, journal: j}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func seedMenu(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	v, err := store.UpsertVendor(ctx, database.UpsertVendorParams{Name: "Marketplace", Source: "DUKE_DINING"})
	require.NoError(t, err)

	for _, it := range []struct {
		name, mealType string
		kcal           int32
		protein        float64
	}{
		{"Egg Sandwich", "Breakfast", 420, 22},
		{"Grilled Chicken Salad", "Lunch", 450, 38},
		{"Salmon Plate", "Dinner", 620, 42},
	} {
		_, err := store.UpsertMenuItem(ctx, database.UpsertMenuItemParams{
			VendorID: v.ID,
			Name:     it.name,
			MealType: pgtype.Text{String: it.mealType, Valid: true},
			Calories: pgtype.Int4{Int32: it.kcal, Valid: true},
			ProteinG: pgtype.Float8{Float64: it.protein, Valid: true},
		})
		require.NoError(t, err)
	}
}

func assertStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
