package planner

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

// MealLookup returns the candidates of one meal type (Breakfast, Lunch, Dinner)
// under the user's diet preferences.
type MealLookup func(ctx context.Context, mealType string) ([]MealCandidate, error)

var genericTitles = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"meal":      true,
}

// GroundMeals makes every MEAL item point at a real menu item. Items matching
// a known candidate by title and vendor are canonicalized from it. Generic,
// vendorless or unknown items are replaced by the candidate of the implied
// meal type with the nearest calories. Items with no candidate are left as is.
// Grounding an already grounded plan changes nothing.
func GroundMeals(ctx context.Context, items []PlanItem, known []MealCandidate, lookup MealLookup) []PlanItem {
	out := make([]PlanItem, len(items))
	copy(out, items)

	byMealType := map[string][]MealCandidate{}
	for i, it := range out {
		if it.Kind != KindMeal {
			continue
		}

		if !isGeneric(it) {
			if c, ok := findExact(known, it.Title, it.Vendor); ok {
				out[i] = canonicalize(it, c)
				continue
			}
		}

		mealType := MealTypeForHour(it.Start.Hour())
		pool, ok := byMealType[mealType]
		if !ok {
			var err error
			pool, err = lookup(ctx, mealType)
			if err != nil {
				log.Warn().Err(err).Str("meal_type", mealType).Msg("Grounding lookup failed")
			}
			byMealType[mealType] = pool
		}

		if !isGeneric(it) {
			if c, ok := findExact(pool, it.Title, it.Vendor); ok {
				out[i] = canonicalize(it, c)
				continue
			}
		}

		c, ok := nearestByKcal(pool, it.Kcal)
		if !ok {
			log.Warn().Str("title", it.Title).Str("meal_type", mealType).Msg("No dining candidate to ground meal, leaving as returned")
			continue
		}
		out[i] = canonicalize(it, c)
	}
	return out
}

// MealTypeForHour maps 06-11 to Breakfast, 11-16 to Lunch and 16+ to Dinner.
// Early-morning hours count as Breakfast.
func MealTypeForHour(h int) string {
	switch {
	case h >= 6 && h < 11:
		return "Breakfast"
	case h >= 11 && h < 16:
		return "Lunch"
	case h >= 16:
		return "Dinner"
	default:
		return "Breakfast"
	}
}

func isGeneric(it PlanItem) bool {
	return genericTitles[strings.ToLower(strings.TrimSpace(it.Title))] || strings.TrimSpace(it.Vendor) == ""
}

func findExact(cands []MealCandidate, title, vendor string) (MealCandidate, bool) {
	for _, c := range cands {
		if strings.EqualFold(c.Title, strings.TrimSpace(title)) && strings.EqualFold(c.Vendor, strings.TrimSpace(vendor)) {
			return c, true
		}
	}
	return MealCandidate{}, false
}

// nearestByKcal picks the first candidate with the smallest calorie distance.
func nearestByKcal(cands []MealCandidate, kcal int) (MealCandidate, bool) {
	var (
		best     MealCandidate
		bestDist = math.MaxInt
		found    bool
	)
	for _, c := range cands {
		d := c.Kcal - kcal
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

func canonicalize(it PlanItem, c MealCandidate) PlanItem {
	it.Title = c.Title
	it.Vendor = c.Vendor
	it.Kcal = c.Kcal
	it.ProteinG = int(math.Round(c.ProteinG))
	it.MenuItemID = c.ID
	return it
}
