package planner

import (
	"context"
	"fmt"
	"strings"

	"bluewell/internal/database"

	"github.com/rs/zerolog/log"
)

// NoDiningDataError means the primary dining source has no usable items at all.
type NoDiningDataError struct {
	Source  string
	Vendors int
	Items   int
}

func (e *NoDiningDataError) Error() string {
	return fmt.Sprintf("no dining data for source %s (vendors=%d, items=%d)", e.Source, e.Vendors, e.Items)
}

// MealCandidate is a real menu item offered to the planner.
type MealCandidate struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Vendor   string   `json:"vendor"`
	MealType string   `json:"meal_type,omitempty"`
	Kcal     int      `json:"kcal"`
	ProteinG float64  `json:"protein_g"`
	CarbsG   float64  `json:"carbs_g,omitempty"`
	FatG     float64  `json:"fat_g,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	description string
}

type DiningFilter struct {
	Source     string
	MealType   string // strict when set
	DietPrefs  []string
	AvoidFoods []string
}

type DiningResult struct {
	Candidates []MealCandidate
	Vendors    int
	Items      int
}

// LoadDiningCandidates reads items of the primary source with known calories
// and protein, then applies the meal-type, diet and avoid filters. The diet and
// avoid filters fall back to their input when they would remove everything.
func LoadDiningCandidates(ctx context.Context, q database.Querier, f DiningFilter) (DiningResult, error) {
	vendors, err := q.ListVendorsBySource(ctx, f.Source)
	if err != nil {
		return DiningResult{}, fmt.Errorf("list vendors: %w", err)
	}
	if len(vendors) == 0 {
		return DiningResult{}, &NoDiningDataError{Source: f.Source}
	}

	ids := make([]int32, len(vendors))
	for i, v := range vendors {
		ids[i] = v.ID
	}
	items, err := q.ListMenuItemsByVendors(ctx, ids)
	if err != nil {
		return DiningResult{}, fmt.Errorf("list menu items: %w", err)
	}
	if len(items) == 0 {
		return DiningResult{}, &NoDiningDataError{Source: f.Source, Vendors: len(vendors)}
	}

	base := make([]MealCandidate, 0, len(items))
	for _, it := range items {
		base = append(base, candidateFromItem(it))
	}

	out := base
	if mt := strings.TrimSpace(f.MealType); mt != "" {
		out = filterCandidates(out, func(c MealCandidate) bool {
			return containsFold(c.MealType, mt)
		})
	}

	if prefs := nonBlank(f.DietPrefs); len(prefs) > 0 {
		filtered := filterCandidates(out, func(c MealCandidate) bool {
			return matchesAny(prefs, append([]string{c.Title}, c.Tags...)...)
		})
		if len(filtered) > 0 {
			out = filtered
		} else {
			log.Debug().Strs("diet_prefs", prefs).Msg("Diet filter removed every candidate, keeping unfiltered set")
		}
	}

	if avoid := nonBlank(f.AvoidFoods); len(avoid) > 0 {
		filtered := filterCandidates(out, func(c MealCandidate) bool {
			return !matchesAny(avoid, c.Title, c.description)
		})
		if len(filtered) > 0 {
			out = filtered
		} else {
			log.Debug().Strs("avoid_foods", avoid).Msg("Avoid filter removed every candidate, keeping unfiltered set")
		}
	}

	return DiningResult{Candidates: out, Vendors: len(vendors), Items: len(items)}, nil
}

func candidateFromItem(it database.MenuItem) MealCandidate {
	return MealCandidate{
		ID:          it.ID,
		Title:       it.Name,
		Vendor:      it.VendorName,
		MealType:    it.MealType.String,
		Kcal:        int(it.Calories.Int32),
		ProteinG:    it.ProteinG.Float64,
		CarbsG:      it.CarbsG.Float64,
		FatG:        it.FatG.Float64,
		Tags:        it.Tags,
		description: it.Description.String,
	}
}

func filterCandidates(in []MealCandidate, keep func(MealCandidate) bool) []MealCandidate {
	out := make([]MealCandidate, 0, len(in))
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// matchesAny reports whether any needle is a case-insensitive substring of any haystack.
func matchesAny(needles []string, haystacks ...string) bool {
	for _, h := range haystacks {
		for _, n := range needles {
			if containsFold(h, n) {
				return true
			}
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
