package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the full set of queries the API runs. *Queries implements it over
// Postgres and *MemoryStore implements it in process.
type Querier interface {
	GetUserByID(ctx context.Context, id string) (User, error)
	EnsureUser(ctx context.Context, arg EnsureUserParams) (User, error)

	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)
	UpsertUserProfile(ctx context.Context, arg UpsertUserProfileParams) (UserProfile, error)
	DeleteUserProfile(ctx context.Context, userID string) error

	ListVendorsBySource(ctx context.Context, source string) ([]Vendor, error)
	UpsertVendor(ctx context.Context, arg UpsertVendorParams) (Vendor, error)

	ListMenuItemsByVendors(ctx context.Context, vendorIDs []int32) ([]MenuItem, error)
	SearchMenuItems(ctx context.Context, arg SearchMenuItemsParams) ([]MenuItem, error)
	ListMenuItemsWithEmbeddings(ctx context.Context, limit int32) ([]MenuItem, error)
	ListMenuItemsMissingEmbedding(ctx context.Context, limit int32) ([]MenuItem, error)
	UpsertMenuItem(ctx context.Context, arg UpsertMenuItemParams) (MenuItem, error)
	UpdateMenuItemEmbedding(ctx context.Context, arg UpdateMenuItemEmbeddingParams) error

	ListFitnessClassesBetween(ctx context.Context, arg ListFitnessClassesBetweenParams) ([]FitnessClass, error)
	UpsertFitnessClass(ctx context.Context, arg UpsertFitnessClassParams) (FitnessClass, error)

	GetRecommendation(ctx context.Context, arg GetRecommendationParams) (Recommendation, error)
	UpsertRecommendation(ctx context.Context, arg UpsertRecommendationParams) (Recommendation, error)

	CreateFoodLog(ctx context.Context, arg CreateFoodLogParams) (FoodLog, error)
	ListFoodLogs(ctx context.Context, arg ListLogsParams) ([]FoodLog, error)
	DeleteFoodLog(ctx context.Context, arg DeleteLogParams) (int64, error)

	CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) (ActivityLog, error)
	ListActivityLogs(ctx context.Context, arg ListLogsParams) ([]ActivityLog, error)
	DeleteActivityLog(ctx context.Context, arg DeleteLogParams) (int64, error)
}

type EnsureUserParams struct {
	ID          string
	Email       pgtype.Text
	DisplayName pgtype.Text
}

type UpsertUserProfileParams struct {
	UserID              string
	Age                 pgtype.Int4
	Gender              pgtype.Text
	HeightCm            pgtype.Float8
	WeightKg            pgtype.Float8
	ActivityLevel       pgtype.Int4
	Goal                FitnessGoal
	DietPrefs           []string
	AvoidFoods          []string
	TimeBudgetMin       pgtype.Int4
	PreferredTimes      []string
	PreferredActivities []string
	StepGoal            pgtype.Int4
}

type UpsertVendorParams struct {
	Name   string
	Source string
}

type SearchMenuItemsParams struct {
	Query string
	Limit int32
}

type UpsertMenuItemParams struct {
	VendorID    int32
	Name        string
	Description pgtype.Text
	MealType    pgtype.Text
	Category    pgtype.Text
	ServingSize pgtype.Text
	Calories    pgtype.Int4
	ProteinG    pgtype.Float8
	CarbsG      pgtype.Float8
	FatG        pgtype.Float8
	Price       pgtype.Float8
	Tags        []string
	Allergens   []string
}

type UpdateMenuItemEmbeddingParams struct {
	ID        string
	Embedding []float32
}

type ListFitnessClassesBetweenParams struct {
	Start time.Time
	End   time.Time
}

type UpsertFitnessClassParams struct {
	Title     string
	StartsAt  time.Time
	EndsAt    time.Time
	Location  pgtype.Text
	Intensity ClassIntensity
	Source    ClassSource
}

type GetRecommendationParams struct {
	UserID string
	Kind   PlanKind
	Since  time.Time
}

type UpsertRecommendationParams struct {
	UserID    string
	Day       time.Time
	Kind      PlanKind
	Payload   string
	Rationale pgtype.Text
	Model     string
}

type CreateFoodLogParams struct {
	UserID     string
	LoggedAt   time.Time
	MealType   pgtype.Text
	Name       string
	Source     LogSource
	Kcal       int32
	ProteinG   float64
	CarbsG     float64
	FatG       float64
	Confidence pgtype.Float8
	MenuItemID pgtype.Text
}

type CreateActivityLogParams struct {
	UserID      string
	LoggedAt    time.Time
	Title       string
	Type        pgtype.Text
	DurationMin int32
	KcalBurned  int32
	Steps       int32
}

type ListLogsParams struct {
	UserID string
	Start  time.Time
	End    time.Time
}

type DeleteLogParams struct {
	ID     string
	UserID string
}
