package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type seedItem struct {
	name     string
	mealType string
	kcal     int32
	protein  float64
	tags     []string
	desc     string
}

var seedMenu = []seedItem{
	{name: "Oatmeal Bowl", mealType: "Breakfast", kcal: 300, protein: 10, tags: []string{"vegetarian"}},
	{name: "Egg Sandwich", mealType: "Breakfast", kcal: 420, protein: 22, desc: "egg and cheese on a roll"},
	{name: "Grilled Chicken Salad", mealType: "Lunch", kcal: 450, protein: 38},
	{name: "Tofu Stir Fry", mealType: "Lunch", kcal: 430, protein: 21, tags: []string{"vegan"}},
	{name: "Salmon Plate", mealType: "Dinner", kcal: 620, protein: 42, desc: "with peanut sauce"},
	{name: "Veggie Pasta", mealType: "Dinner", kcal: 560, protein: 18, tags: []string{"vegetarian"}},
}

func seedDining(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	v, err := store.UpsertVendor(ctx, database.UpsertVendorParams{Name: "Marketplace", Source: "DUKE_DINING"})
	require.NoError(t, err)

	for _, it := range seedMenu {
		_, err := store.UpsertMenuItem(ctx, database.UpsertMenuItemParams{
			VendorID:    v.ID,
			Name:        it.name,
			Description: pgtype.Text{String: it.desc, Valid: it.desc != ""},
			MealType:    pgtype.Text{String: it.mealType, Valid: true},
			Calories:    pgtype.Int4{Int32: it.kcal, Valid: true},
			ProteinG:    pgtype.Float8{Float64: it.protein, Valid: true},
			Tags:        it.tags,
		})
		require.NoError(t, err)
	}
}

func seedProfile(t *testing.T, store *database.MemoryStore, userID string, mutate func(*database.UpsertUserProfileParams)) {
	t.Helper()
	ctx := context.Background()

	_, err := store.EnsureUser(ctx, database.EnsureUserParams{ID: userID})
	require.NoError(t, err)

	p := database.UpsertUserProfileParams{
		UserID:        userID,
		Age:           pgtype.Int4{Int32: 20, Valid: true},
		Gender:        pgtype.Text{String: "Woman", Valid: true},
		HeightCm:      pgtype.Float8{Float64: 165, Valid: true},
		WeightKg:      pgtype.Float8{Float64: 60, Valid: true},
		ActivityLevel: pgtype.Int4{Int32: 1, Valid: true},
		Goal:          database.FitnessGoalLoseFat,
	}
	if mutate != nil {
		mutate(&p)
	}
	_, err = store.UpsertUserProfile(ctx, p)
	require.NoError(t, err)
}

// fakeLLM replays canned completions in order and records every request.
type fakeLLM struct {
	mu        sync.Mutex
	responses []*openaiservice.Completion
	err       error
	requests  []openaiservice.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req openaiservice.CompletionRequest) (*openaiservice.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &openaiservice.Completion{Model: "fake", Content: "not json"}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeLLM) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	return make([][]float32, len(inputs)), nil
}

func (f *fakeLLM) Model() string { return "fake" }
