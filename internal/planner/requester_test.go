package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixupJSON(t *testing.T) {
	raw := "Here is your plan:\n```json\n{\"items\": [{\"kind\": \"MEAL\",},], \"rationale\": \"ok\",}\n```\nEnjoy!"
	assert.Equal(t, `{"items": [{"kind": "MEAL"}], "rationale": "ok"}`, FixupJSON(raw))
	assert.Equal(t, `{"a":1}`, FixupJSON(`{"a":1}`))
}

func TestParsePlanJSON(t *testing.T) {
	raw := `{
		"rationale": " Balanced day ",
		"items": [
			{"kind": "meal", "title": "Oatmeal Bowl", "vendor": "Marketplace", "start": "2026-03-04T08:00:00", "kcal": 300.4, "protein_g": 10},
			{"kind": "WORKOUT", "title": "Spin", "start": "2026-03-04T17:00:00-05:00", "end": "2026-03-04T16:00:00-05:00", "kcal": -20}
		]
	}`

	items, rationale, err := ParsePlanJSON(raw, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Balanced day", rationale)
	require.Len(t, items, 2)

	assert.Equal(t, KindMeal, items[0].Kind)
	assert.Equal(t, 300, items[0].Kcal)
	assert.Equal(t, at(8, 0), items[0].Start)
	assert.Equal(t, 30*time.Minute, items[0].End.Sub(items[0].Start))

	assert.Equal(t, 22, items[1].Start.Hour())
	assert.Equal(t, time.Hour, items[1].End.Sub(items[1].Start))
	assert.Zero(t, items[1].Kcal)
}

func TestParsePlanJSONRejectsInvalidPlans(t *testing.T) {
	cases := map[string]string{
		"not json":      "sorry, I cannot help",
		"no items":      `{"items": []}`,
		"bad kind":      `{"items": [{"kind": "SNACK", "title": "Chips", "start": "2026-03-04T15:00:00"}]}`,
		"missing title": `{"items": [{"kind": "MEAL", "title": " ", "start": "2026-03-04T15:00:00"}]}`,
		"bad start":     `{"items": [{"kind": "MEAL", "title": "Lunch", "start": "noon"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParsePlanJSON(raw, time.UTC)
			assert.Error(t, err)
		})
	}
}

type stubTools struct {
	queries []string
	dates   []string
}

func (s *stubTools) SearchMenu(_ context.Context, query, mealType string) (interface{}, error) {
	s.queries = append(s.queries, query+"/"+mealType)
	return []MealCandidate{{ID: "l2", Title: "Tofu Stir Fry", Vendor: "Marketplace", Kcal: 430}}, nil
}

func (s *stubTools) ListClasses(_ context.Context, date string) (interface{}, error) {
	s.dates = append(s.dates, date)
	return nil, errors.New("no schedule")
}

const lunchPlanJSON = `{"rationale":"r","items":[{"kind":"MEAL","title":"Tofu Stir Fry","vendor":"Marketplace","start":"2026-03-04T12:30:00","kcal":430,"protein_g":21}]}`

func TestRequestPlanToolRoundTrip(t *testing.T) {
	llm := &fakeLLM{responses: []*openaiservice.Completion{
		{Model: "gpt-test", ToolCalls: []openaiservice.ToolCall{
			{ID: "call_1", Type: "function", Function: openaiservice.ToolCallFunction{Name: "search_menu", Arguments: `{"query":"tofu","meal_type":"Lunch"}`}},
			{ID: "call_2", Type: "function", Function: openaiservice.ToolCallFunction{Name: "list_classes", Arguments: `{"date":"2026-03-04"}`}},
			{ID: "call_3", Type: "function", Function: openaiservice.ToolCallFunction{Name: "order_pizza"}},
		}},
		{Model: "gpt-test", Content: lunchPlanJSON},
	}}
	tools := &stubTools{}

	resp, err := RequestPlan(context.Background(), llm, "plan please", tools, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", resp.Model)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Tofu Stir Fry", resp.Items[0].Title)

	assert.Equal(t, []string{"tofu/Lunch"}, tools.queries)
	assert.Equal(t, []string{"2026-03-04"}, tools.dates)

	require.Len(t, llm.requests, 2)
	assert.Len(t, llm.requests[0].Tools, 2)
	assert.True(t, llm.requests[0].JSONMode)
	assert.Empty(t, llm.requests[1].Tools, "final request has no tools")

	msgs := llm.requests[1].Messages
	require.Len(t, msgs, 6)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Contains(t, msgs[3].Content, "Tofu Stir Fry")
	assert.Contains(t, msgs[4].Content, "no schedule")
	assert.Contains(t, msgs[5].Content, "unknown tool")
}

func TestRequestPlanWithoutTools(t *testing.T) {
	llm := &fakeLLM{responses: []*openaiservice.Completion{{Model: "gpt-test", Content: lunchPlanJSON}}}

	_, err := RequestPlan(context.Background(), llm, "plan please", nil, time.UTC)
	require.NoError(t, err)
	require.Len(t, llm.requests, 1)
	assert.Empty(t, llm.requests[0].Tools)
}

func TestRequestPlanPropagatesProviderError(t *testing.T) {
	llm := &fakeLLM{err: &openaiservice.APIError{StatusCode: 401}}

	_, err := RequestPlan(context.Background(), llm, "plan please", nil, time.UTC)
	assert.Equal(t, 401, openaiservice.StatusOf(err))
}

func TestBuildUserPrompt(t *testing.T) {
	meals := make([]MealCandidate, 25)
	for i := range meals {
		meals[i] = MealCandidate{ID: "m", Title: "Dish"}
	}
	meals[24].Title = "Overflow Dish"

	prompt := BuildUserPrompt(PromptInput{
		Kind:        database.PlanKindNext6Hours,
		WindowStart: testNow,
		WindowEnd:   testNow.Add(6 * time.Hour),
		Targets:     Targets{Kcal: 1394, ProteinG: 72},
		Profile: database.UserProfile{
			Goal:          database.FitnessGoalLoseFat,
			DietPrefs:     []string{"vegetarian", " "},
			TimeBudgetMin: pgtype.Int4{Int32: 45, Valid: true},
		},
		Meals: meals,
	})

	assert.Contains(t, prompt, "next 6 hours")
	assert.Contains(t, prompt, "Window: 2026-03-04T10:00:00 to 2026-03-04T16:00:00")
	assert.Contains(t, prompt, "Calories per day: 1394 kcal")
	assert.Contains(t, prompt, "Diet preferences: vegetarian\n")
	assert.Contains(t, prompt, "Avoid foods: -")
	assert.Contains(t, prompt, "Workout time budget: 45 minutes")
	assert.NotContains(t, prompt, "Overflow Dish")
	assert.Equal(t, 20, strings.Count(prompt, `"title":"Dish"`))
}
