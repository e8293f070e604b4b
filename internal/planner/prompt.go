package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
)

const (
	maxPromptMeals   = 20
	maxPromptClasses = 10
)

// PromptInput is everything the user prompt embeds.
type PromptInput struct {
	Kind        database.PlanKind
	WindowStart time.Time
	WindowEnd   time.Time
	Targets     Targets
	Profile     database.UserProfile
	Meals       []MealCandidate
	Classes     []ClassCandidate
}

// BuildUserPrompt renders the plan request for the model.
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a %s plan.\n", describeKind(in.Kind))
	fmt.Fprintf(&b, "Window: %s to %s\n\n",
		in.WindowStart.Format("2006-01-02T15:04:05"), in.WindowEnd.Format("2006-01-02T15:04:05"))

	b.WriteString("--- TARGETS ---\n")
	fmt.Fprintf(&b, "Calories per day: %d kcal\nProtein per day: %d g\n\n", in.Targets.Kcal, in.Targets.ProteinG)

	p := in.Profile
	b.WriteString("--- PREFERENCES ---\n")
	fmt.Fprintf(&b, "Goal: %s\n", orDash(string(p.Goal)))
	fmt.Fprintf(&b, "Diet preferences: %s\n", joinOrDash(p.DietPrefs))
	fmt.Fprintf(&b, "Avoid foods: %s\n", joinOrDash(p.AvoidFoods))
	fmt.Fprintf(&b, "Preferred workout times: %s\n", joinOrDash(p.PreferredTimes))
	fmt.Fprintf(&b, "Preferred activities: %s\n", joinOrDash(p.PreferredActivities))
	if p.TimeBudgetMin.Valid {
		fmt.Fprintf(&b, "Workout time budget: %d minutes\n", p.TimeBudgetMin.Int32)
	}
	b.WriteString("\n")

	meals := in.Meals
	if len(meals) > maxPromptMeals {
		meals = meals[:maxPromptMeals]
	}
	classes := in.Classes
	if len(classes) > maxPromptClasses {
		classes = classes[:maxPromptClasses]
	}

	b.WriteString("--- DINING OPTIONS (JSON) ---\n")
	b.WriteString(mustJSON(meals))
	b.WriteString("\n\n--- FITNESS CLASSES (JSON) ---\n")
	b.WriteString(mustJSON(classes))
	b.WriteString("\n\nUse search_menu or list_classes if you need more options. Respond with the JSON plan only.")

	return b.String()
}

func describeKind(k database.PlanKind) string {
	switch k {
	case database.PlanKindNext6Hours:
		return "next 6 hours"
	case database.PlanKindWeek:
		return "7-day (one entry per meal and workout for each day)"
	default:
		return "full day"
	}
}

var searchMenuParams = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Dish, ingredient or tag to look for"},
    "meal_type": {"type": "string", "enum": ["Breakfast", "Lunch", "Dinner", ""]}
  },
  "required": ["query"]
}`)

var listClassesParams = json.RawMessage(`{
  "type": "object",
  "properties": {
    "date": {"type": "string", "description": "Day in YYYY-MM-DD"}
  },
  "required": ["date"]
}`)

// PlannerTools are the functions the model may call before answering.
func PlannerTools() []openaiservice.Tool {
	return []openaiservice.Tool{
		{Type: "function", Function: openaiservice.ToolFunction{
			Name:        "search_menu",
			Description: "Search campus dining menu items that fit the user's diet preferences.",
			Parameters:  searchMenuParams,
		}},
		{Type: "function", Function: openaiservice.ToolFunction{
			Name:        "list_classes",
			Description: "List campus fitness classes on a given day in the user's preferred times.",
			Parameters:  listClassesParams,
		}},
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinOrDash(list []string) string {
	return orDash(strings.Join(nonBlank(list), ", "))
}
