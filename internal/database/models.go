package database

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FitnessGoal is the user's primary goal captured by the onboarding survey.
type FitnessGoal string

const (
	FitnessGoalLoseFat    FitnessGoal = "LOSE_FAT"
	FitnessGoalGainMuscle FitnessGoal = "GAIN_MUSCLE"
	FitnessGoalMaintain   FitnessGoal = "MAINTAIN"
	FitnessGoalFitness    FitnessGoal = "FITNESS"
	FitnessGoalAthletic   FitnessGoal = "ATHLETIC"
	FitnessGoalUnknown    FitnessGoal = "UNKNOWN"
)

// ParseFitnessGoal normalizes free-form survey input. Anything unrecognised is UNKNOWN.
func ParseFitnessGoal(s string) FitnessGoal {
	g := FitnessGoal(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	if g.Valid() {
		return g
	}
	return FitnessGoalUnknown
}

func (g FitnessGoal) Valid() bool {
	switch g {
	case FitnessGoalLoseFat, FitnessGoalGainMuscle, FitnessGoalMaintain,
		FitnessGoalFitness, FitnessGoalAthletic, FitnessGoalUnknown:
		return true
	}
	return false
}

// ClassIntensity grades a fitness class.
type ClassIntensity string

const (
	IntensityLow  ClassIntensity = "low"
	IntensityMed  ClassIntensity = "med"
	IntensityHigh ClassIntensity = "high"
)

// ClassSource records where a fitness class (or a plan workout) came from.
type ClassSource string

const (
	SourceDukeRec   ClassSource = "DUKE_REC"
	SourceCSV       ClassSource = "CSV"
	SourceICal      ClassSource = "ICAL"
	SourceManual    ClassSource = "MANUAL"
	SourceSuggested ClassSource = "SUGGESTED"
)

// PlanKind is the scope of a cached recommendation.
type PlanKind string

const (
	PlanKindToday      PlanKind = "TODAY"
	PlanKindNext6Hours PlanKind = "NEXT_6_HOURS"
	PlanKindWeek       PlanKind = "WEEK"
)

func (k PlanKind) Valid() bool {
	switch k {
	case PlanKindToday, PlanKindNext6Hours, PlanKindWeek:
		return true
	}
	return false
}

// LogSource records how a food log entry was produced.
type LogSource string

const (
	LogSourceManual LogSource = "MANUAL"
	LogSourceText   LogSource = "TEXT"
	LogSourcePhoto  LogSource = "PHOTO"
	LogSourcePlan   LogSource = "PLAN"
)

type User struct {
	ID          string      `json:"id"`
	Email       pgtype.Text `json:"email"`
	DisplayName pgtype.Text `json:"display_name"`
	CreatedAt   time.Time   `json:"created_at"`
}

type UserProfile struct {
	UserID              string        `json:"user_id"`
	Age                 pgtype.Int4   `json:"age"`
	Gender              pgtype.Text   `json:"gender"`
	HeightCm            pgtype.Float8 `json:"height_cm"`
	WeightKg            pgtype.Float8 `json:"weight_kg"`
	ActivityLevel       pgtype.Int4   `json:"activity_level"`
	Goal                FitnessGoal   `json:"goal"`
	DietPrefs           []string      `json:"diet_prefs"`
	AvoidFoods          []string      `json:"avoid_foods"`
	TimeBudgetMin       pgtype.Int4   `json:"time_budget_min"`
	PreferredTimes      []string      `json:"preferred_times"`
	PreferredActivities []string      `json:"preferred_activities"`
	StepGoal            pgtype.Int4   `json:"step_goal"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

type Vendor struct {
	ID     int32  `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

type MenuItem struct {
	ID          string        `json:"id"`
	VendorID    int32         `json:"vendor_id"`
	VendorName  string        `json:"vendor_name"`
	Name        string        `json:"name"`
	Description pgtype.Text   `json:"description"`
	MealType    pgtype.Text   `json:"meal_type"`
	Category    pgtype.Text   `json:"category"`
	ServingSize pgtype.Text   `json:"serving_size"`
	Calories    pgtype.Int4   `json:"calories"`
	ProteinG    pgtype.Float8 `json:"protein_g"`
	CarbsG      pgtype.Float8 `json:"carbs_g"`
	FatG        pgtype.Float8 `json:"fat_g"`
	Price       pgtype.Float8 `json:"price"`
	Tags        []string      `json:"tags"`
	Allergens   []string      `json:"allergens"`
	Embedding   []float32     `json:"-"`
}

type FitnessClass struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	StartsAt  time.Time      `json:"starts_at"`
	EndsAt    time.Time      `json:"ends_at"`
	Location  pgtype.Text    `json:"location"`
	Intensity ClassIntensity `json:"intensity"`
	Source    ClassSource    `json:"source"`
}

type Recommendation struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Day       time.Time   `json:"day"`
	Kind      PlanKind    `json:"kind"`
	Payload   string      `json:"payload"`
	Rationale pgtype.Text `json:"rationale"`
	Model     string      `json:"model"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type FoodLog struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	LoggedAt   time.Time     `json:"logged_at"`
	MealType   pgtype.Text   `json:"meal_type"`
	Name       string        `json:"name"`
	Source     LogSource     `json:"source"`
	Kcal       int32         `json:"kcal"`
	ProteinG   float64       `json:"protein_g"`
	CarbsG     float64       `json:"carbs_g"`
	FatG       float64       `json:"fat_g"`
	Confidence pgtype.Float8 `json:"confidence"`
	MenuItemID pgtype.Text   `json:"menu_item_id"`
	CreatedAt  time.Time     `json:"created_at"`
}

type ActivityLog struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	LoggedAt    time.Time   `json:"logged_at"`
	Title       string      `json:"title"`
	Type        pgtype.Text `json:"type"`
	DurationMin int32       `json:"duration_min"`
	KcalBurned  int32       `json:"kcal_burned"`
	Steps       int32       `json:"steps"`
	CreatedAt   time.Time   `json:"created_at"`
}
