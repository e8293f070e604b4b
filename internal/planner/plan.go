package planner

import (
	"encoding/json"
	"fmt"
	"time"

	"bluewell/internal/database"
)

// SchemaVersion of the cached plan payload. Rows with any other version are
// regenerated.
const SchemaVersion = 1

// FallbackModel marks plans produced without the provider.
const FallbackModel = "fallback"

type ItemKind string

const (
	KindMeal    ItemKind = "MEAL"
	KindWorkout ItemKind = "WORKOUT"
)

// PlanItem is one scheduled meal or workout.
type PlanItem struct {
	Kind       ItemKind  `json:"kind"`
	Title      string    `json:"title"`
	Vendor     string    `json:"vendor,omitempty"`
	Location   string    `json:"location,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Kcal       int       `json:"kcal"`
	ProteinG   int       `json:"protein_g"`
	Source     string    `json:"source,omitempty"`
	MenuItemID string    `json:"menu_item_id,omitempty"`
}

// Plan is a generated plan for one scope.
type Plan struct {
	Kind        database.PlanKind `json:"kind"`
	Day         string            `json:"day"`
	Model       string            `json:"model"`
	Rationale   string            `json:"rationale"`
	Targets     Targets           `json:"targets"`
	Items       []PlanItem        `json:"items"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Meals returns the MEAL items in order.
func (p Plan) Meals() []PlanItem {
	return p.itemsOf(KindMeal)
}

func (p Plan) Workouts() []PlanItem {
	return p.itemsOf(KindWorkout)
}

func (p Plan) itemsOf(kind ItemKind) []PlanItem {
	var out []PlanItem
	for _, it := range p.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// envelope is the persisted form of a Plan.
type envelope struct {
	SchemaVersion int `json:"schema_version"`
	Plan
}

// EncodePlan serializes p with the current schema version.
func EncodePlan(p Plan) ([]byte, error) {
	return json.Marshal(envelope{SchemaVersion: SchemaVersion, Plan: p})
}

// DecodePlan parses a stored payload and rejects other schema versions.
func DecodePlan(payload []byte) (Plan, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if env.SchemaVersion != SchemaVersion {
		return Plan{}, fmt.Errorf("plan schema version %d, want %d", env.SchemaVersion, SchemaVersion)
	}
	return env.Plan, nil
}
