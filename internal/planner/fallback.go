package planner

import (
	"math"
	"time"

	"bluewell/internal/database"
)

type mealSlot struct {
	name   string
	hour   int
	minute int
	share  float64
}

var fallbackSlots = []mealSlot{
	{name: "Breakfast", hour: 8, minute: 0, share: 0.25},
	{name: "Lunch", hour: 12, minute: 30, share: 0.35},
	{name: "Dinner", hour: 18, minute: 30, share: 0.40},
}

// BuildFallbackPlan returns a deterministic plan with three meals and one
// workout for day. It never fails, whatever the targets or candidates.
func BuildFallbackPlan(kind database.PlanKind, day time.Time, targets Targets, meals []MealCandidate, classes []ClassCandidate) Plan {
	loc := day.Location()
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	plan := Plan{
		Kind:      kind,
		Day:       day.Format("2006-01-02"),
		Model:     FallbackModel,
		Rationale: "Simple balanced plan built from campus dining options and your schedule.",
		Targets:   targets,
	}

	if kind == database.PlanKindWeek {
		for i := 0; i < 7; i++ {
			plan.Items = append(plan.Items, fallbackItems(day.AddDate(0, 0, i), targets, meals, classesOn(classes, day.AddDate(0, 0, i)))...)
		}
		return plan
	}

	plan.Items = fallbackItems(day, targets, meals, classes)
	return plan
}

func fallbackItems(day time.Time, targets Targets, meals []MealCandidate, classes []ClassCandidate) []PlanItem {
	items := make([]PlanItem, 0, len(fallbackSlots)+1)
	used := map[string]bool{}

	for i, slot := range fallbackSlots {
		start := time.Date(day.Year(), day.Month(), day.Day(), slot.hour, slot.minute, 0, 0, day.Location())
		item := PlanItem{
			Kind:     KindMeal,
			Title:    slot.name,
			Start:    start,
			End:      start.Add(30 * time.Minute),
			Kcal:     int(math.Round(float64(targets.Kcal) * slot.share)),
			ProteinG: int(math.Round(float64(targets.ProteinG) * slot.share)),
		}
		if c, ok := pickMeal(meals, slot.name, i, used); ok {
			item.Title = c.Title
			item.Vendor = c.Vendor
			item.MenuItemID = c.ID
		}
		items = append(items, item)
	}

	items = append(items, fallbackWorkout(day, classes))
	return items
}

// pickMeal prefers an unused candidate of the slot's meal type, then the
// candidate at the slot's position.
func pickMeal(meals []MealCandidate, mealType string, pos int, used map[string]bool) (MealCandidate, bool) {
	for _, c := range meals {
		if !used[c.ID] && containsFold(c.MealType, mealType) {
			used[c.ID] = true
			return c, true
		}
	}
	if pos < len(meals) && !used[meals[pos].ID] {
		used[meals[pos].ID] = true
		return meals[pos], true
	}
	return MealCandidate{}, false
}

func fallbackWorkout(day time.Time, classes []ClassCandidate) PlanItem {
	for _, c := range classes {
		if c.Matches {
			return PlanItem{
				Kind:     KindWorkout,
				Title:    c.Title,
				Location: c.Location,
				Start:    c.Start,
				End:      c.End,
				Source:   string(c.Source),
			}
		}
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, day.Location())
	return PlanItem{
		Kind:   KindWorkout,
		Title:  "Daily Activity",
		Start:  start,
		End:    start.Add(time.Hour),
		Source: string(database.SourceSuggested),
	}
}

func classesOn(classes []ClassCandidate, day time.Time) []ClassCandidate {
	var out []ClassCandidate
	for _, c := range classes {
		cs := c.Start.In(day.Location())
		if cs.Year() == day.Year() && cs.YearDay() == day.YearDay() {
			out = append(out, c)
		}
	}
	return out
}
