package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Queries runs the hand-written SQL of the API against Postgres.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

var _ Querier = (*Queries)(nil)

/* =================================================================================
								USERS & PROFILES
=================================================================================*/

const getUserByID = `SELECT id, email, display_name, created_at FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	return u, err
}

const ensureUser = `
INSERT INTO users (id, email, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET email = COALESCE(EXCLUDED.email, users.email),
    display_name = COALESCE(EXCLUDED.display_name, users.display_name)
RETURNING id, email, display_name, created_at`

func (q *Queries) EnsureUser(ctx context.Context, arg EnsureUserParams) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, ensureUser, arg.ID, arg.Email, arg.DisplayName).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	return u, err
}

const profileColumns = `user_id, age, gender, height_cm, weight_kg, activity_level, goal,
    diet_prefs, avoid_foods, time_budget_min, preferred_times, preferred_activities,
    step_goal, updated_at`

func scanProfile(row pgx.Row) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(
		&p.UserID, &p.Age, &p.Gender, &p.HeightCm, &p.WeightKg, &p.ActivityLevel, &p.Goal,
		&p.DietPrefs, &p.AvoidFoods, &p.TimeBudgetMin, &p.PreferredTimes, &p.PreferredActivities,
		&p.StepGoal, &p.UpdatedAt,
	)
	return p, err
}

const getUserProfile = `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

func (q *Queries) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	return scanProfile(q.db.QueryRow(ctx, getUserProfile, userID))
}

const upsertUserProfile = `
INSERT INTO user_profiles (
    user_id, age, gender, height_cm, weight_kg, activity_level, goal,
    diet_prefs, avoid_foods, time_budget_min, preferred_times, preferred_activities, step_goal
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (user_id) DO UPDATE SET
    age = EXCLUDED.age,
    gender = EXCLUDED.gender,
    height_cm = EXCLUDED.height_cm,
    weight_kg = EXCLUDED.weight_kg,
    activity_level = EXCLUDED.activity_level,
    goal = EXCLUDED.goal,
    diet_prefs = EXCLUDED.diet_prefs,
    avoid_foods = EXCLUDED.avoid_foods,
    time_budget_min = EXCLUDED.time_budget_min,
    preferred_times = EXCLUDED.preferred_times,
    preferred_activities = EXCLUDED.preferred_activities,
    step_goal = EXCLUDED.step_goal,
    updated_at = now()
RETURNING ` + profileColumns

func (q *Queries) UpsertUserProfile(ctx context.Context, arg UpsertUserProfileParams) (UserProfile, error) {
	return scanProfile(q.db.QueryRow(ctx, upsertUserProfile,
		arg.UserID, arg.Age, arg.Gender, arg.HeightCm, arg.WeightKg, arg.ActivityLevel, string(arg.Goal),
		nonNil(arg.DietPrefs), nonNil(arg.AvoidFoods), arg.TimeBudgetMin,
		nonNil(arg.PreferredTimes), nonNil(arg.PreferredActivities), arg.StepGoal,
	))
}

const deleteUserProfile = `DELETE FROM user_profiles WHERE user_id = $1`

func (q *Queries) DeleteUserProfile(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx, deleteUserProfile, userID)
	return err
}

/* =================================================================================
								VENDORS & MENU
=================================================================================*/

const listVendorsBySource = `SELECT id, name, source FROM vendors WHERE source = $1 ORDER BY name`

func (q *Queries) ListVendorsBySource(ctx context.Context, source string) ([]Vendor, error) {
	rows, err := q.db.Query(ctx, listVendorsBySource, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Source); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const upsertVendor = `
INSERT INTO vendors (name, source) VALUES ($1, $2)
ON CONFLICT (name, source) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, source`

func (q *Queries) UpsertVendor(ctx context.Context, arg UpsertVendorParams) (Vendor, error) {
	var v Vendor
	err := q.db.QueryRow(ctx, upsertVendor, arg.Name, arg.Source).Scan(&v.ID, &v.Name, &v.Source)
	return v, err
}

const menuItemColumns = `m.id, m.vendor_id, v.name, m.name, m.description, m.meal_type, m.category,
    m.serving_size, m.calories, m.protein_g, m.carbs_g, m.fat_g, m.price, m.tags, m.allergens, m.embedding::text`

func scanMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var (
			m         MenuItem
			embedding pgtype.Text
		)
		if err := rows.Scan(
			&m.ID, &m.VendorID, &m.VendorName, &m.Name, &m.Description, &m.MealType, &m.Category,
			&m.ServingSize, &m.Calories, &m.ProteinG, &m.CarbsG, &m.FatG, &m.Price, &m.Tags, &m.Allergens, &embedding,
		); err != nil {
			return nil, err
		}
		if embedding.Valid {
			var v pgvector.Vector
			if err := v.Scan(embedding.String); err != nil {
				return nil, fmt.Errorf("menu item %s embedding: %w", m.ID, err)
			}
			m.Embedding = v.Slice()
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listMenuItemsByVendors = `
SELECT ` + menuItemColumns + `
FROM menu_items m JOIN vendors v ON v.id = m.vendor_id
WHERE m.vendor_id = ANY($1::int[])
  AND m.calories IS NOT NULL
  AND m.protein_g IS NOT NULL
ORDER BY v.name, m.name`

func (q *Queries) ListMenuItemsByVendors(ctx context.Context, vendorIDs []int32) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByVendors, vendorIDs)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const searchMenuItems = `
SELECT ` + menuItemColumns + `
FROM menu_items m JOIN vendors v ON v.id = m.vendor_id
WHERE m.name ILIKE '%' || $1 || '%'
   OR m.description ILIKE '%' || $1 || '%'
   OR v.name ILIKE '%' || $1 || '%'
   OR $1 = ANY(m.tags)
ORDER BY m.name
LIMIT $2`

func (q *Queries) SearchMenuItems(ctx context.Context, arg SearchMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, searchMenuItems, arg.Query, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const listMenuItemsWithEmbeddings = `
SELECT ` + menuItemColumns + `
FROM menu_items m JOIN vendors v ON v.id = m.vendor_id
WHERE m.embedding IS NOT NULL
LIMIT $1`

func (q *Queries) ListMenuItemsWithEmbeddings(ctx context.Context, limit int32) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsWithEmbeddings, limit)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const listMenuItemsMissingEmbedding = `
SELECT ` + menuItemColumns + `
FROM menu_items m JOIN vendors v ON v.id = m.vendor_id
WHERE m.embedding IS NULL
ORDER BY m.name
LIMIT $1`

func (q *Queries) ListMenuItemsMissingEmbedding(ctx context.Context, limit int32) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsMissingEmbedding, limit)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const upsertMenuItem = `
WITH up AS (
    INSERT INTO menu_items (
        id, vendor_id, name, description, meal_type, category, serving_size,
        calories, protein_g, carbs_g, fat_g, price, tags, allergens
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    ON CONFLICT (vendor_id, name) DO UPDATE SET
        description = EXCLUDED.description,
        meal_type = EXCLUDED.meal_type,
        category = EXCLUDED.category,
        serving_size = EXCLUDED.serving_size,
        calories = EXCLUDED.calories,
        protein_g = EXCLUDED.protein_g,
        carbs_g = EXCLUDED.carbs_g,
        fat_g = EXCLUDED.fat_g,
        price = EXCLUDED.price,
        tags = EXCLUDED.tags,
        allergens = EXCLUDED.allergens
    RETURNING *
)
SELECT m.id, m.vendor_id, v.name, m.name, m.description, m.meal_type, m.category,
    m.serving_size, m.calories, m.protein_g, m.carbs_g, m.fat_g, m.price, m.tags, m.allergens, m.embedding::text
FROM up m JOIN vendors v ON v.id = m.vendor_id`

func (q *Queries) UpsertMenuItem(ctx context.Context, arg UpsertMenuItemParams) (MenuItem, error) {
	rows, err := q.db.Query(ctx, upsertMenuItem,
		uuid.NewString(), arg.VendorID, arg.Name, arg.Description, arg.MealType, arg.Category, arg.ServingSize,
		arg.Calories, arg.ProteinG, arg.CarbsG, arg.FatG, arg.Price, nonNil(arg.Tags), nonNil(arg.Allergens),
	)
	if err != nil {
		return MenuItem{}, err
	}
	items, err := scanMenuItems(rows)
	if err != nil {
		return MenuItem{}, err
	}
	if len(items) == 0 {
		return MenuItem{}, pgx.ErrNoRows
	}
	return items[0], nil
}

const updateMenuItemEmbedding = `UPDATE menu_items SET embedding = $2::text::vector WHERE id = $1`

func (q *Queries) UpdateMenuItemEmbedding(ctx context.Context, arg UpdateMenuItemEmbeddingParams) error {
	_, err := q.db.Exec(ctx, updateMenuItemEmbedding, arg.ID, pgvector.NewVector(arg.Embedding).String())
	return err
}

/* =================================================================================
								FITNESS CLASSES
=================================================================================*/

const classColumns = `id, title, starts_at, ends_at, location, intensity, source`

func scanClass(row pgx.Row) (FitnessClass, error) {
	var c FitnessClass
	err := row.Scan(&c.ID, &c.Title, &c.StartsAt, &c.EndsAt, &c.Location, &c.Intensity, &c.Source)
	return c, err
}

const listFitnessClassesBetween = `
SELECT ` + classColumns + ` FROM fitness_classes
WHERE starts_at >= $1 AND starts_at < $2
ORDER BY starts_at, title`

func (q *Queries) ListFitnessClassesBetween(ctx context.Context, arg ListFitnessClassesBetweenParams) ([]FitnessClass, error) {
	rows, err := q.db.Query(ctx, listFitnessClassesBetween, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FitnessClass
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const upsertFitnessClass = `
INSERT INTO fitness_classes (id, title, starts_at, ends_at, location, intensity, source)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source, title, starts_at) DO UPDATE SET
    ends_at = EXCLUDED.ends_at,
    location = EXCLUDED.location,
    intensity = EXCLUDED.intensity
RETURNING ` + classColumns

func (q *Queries) UpsertFitnessClass(ctx context.Context, arg UpsertFitnessClassParams) (FitnessClass, error) {
	return scanClass(q.db.QueryRow(ctx, upsertFitnessClass,
		uuid.NewString(), arg.Title, arg.StartsAt, arg.EndsAt, arg.Location, string(arg.Intensity), string(arg.Source),
	))
}

/* =================================================================================
								RECOMMENDATIONS (PLAN CACHE)
=================================================================================*/

const recommendationColumns = `id, user_id, day, kind, payload, rationale, model, created_at, updated_at`

func scanRecommendation(row pgx.Row) (Recommendation, error) {
	var r Recommendation
	err := row.Scan(&r.ID, &r.UserID, &r.Day, &r.Kind, &r.Payload, &r.Rationale, &r.Model, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const getRecommendation = `
SELECT ` + recommendationColumns + ` FROM recommendations
WHERE user_id = $1 AND kind = $2 AND day >= $3
ORDER BY day DESC
LIMIT 1`

func (q *Queries) GetRecommendation(ctx context.Context, arg GetRecommendationParams) (Recommendation, error) {
	return scanRecommendation(q.db.QueryRow(ctx, getRecommendation, arg.UserID, string(arg.Kind), arg.Since))
}

const upsertRecommendation = `
INSERT INTO recommendations (id, user_id, day, kind, payload, rationale, model)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, day, kind) DO UPDATE SET
    payload = EXCLUDED.payload,
    rationale = EXCLUDED.rationale,
    model = EXCLUDED.model,
    updated_at = now()
RETURNING ` + recommendationColumns

func (q *Queries) UpsertRecommendation(ctx context.Context, arg UpsertRecommendationParams) (Recommendation, error) {
	return scanRecommendation(q.db.QueryRow(ctx, upsertRecommendation,
		uuid.NewString(), arg.UserID, arg.Day, string(arg.Kind), arg.Payload, arg.Rationale, arg.Model,
	))
}

/* =================================================================================
								FOOD & ACTIVITY LOGS
=================================================================================*/

const foodLogColumns = `id, user_id, logged_at, meal_type, name, source, kcal, protein_g, carbs_g, fat_g,
    confidence, menu_item_id, created_at`

func scanFoodLog(row pgx.Row) (FoodLog, error) {
	var f FoodLog
	err := row.Scan(&f.ID, &f.UserID, &f.LoggedAt, &f.MealType, &f.Name, &f.Source, &f.Kcal,
		&f.ProteinG, &f.CarbsG, &f.FatG, &f.Confidence, &f.MenuItemID, &f.CreatedAt)
	return f, err
}

const createFoodLog = `
INSERT INTO food_logs (id, user_id, logged_at, meal_type, name, source, kcal, protein_g, carbs_g, fat_g, confidence, menu_item_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + foodLogColumns

func (q *Queries) CreateFoodLog(ctx context.Context, arg CreateFoodLogParams) (FoodLog, error) {
	return scanFoodLog(q.db.QueryRow(ctx, createFoodLog,
		uuid.NewString(), arg.UserID, arg.LoggedAt, arg.MealType, arg.Name, string(arg.Source),
		arg.Kcal, arg.ProteinG, arg.CarbsG, arg.FatG, arg.Confidence, arg.MenuItemID,
	))
}

const listFoodLogs = `
SELECT ` + foodLogColumns + ` FROM food_logs
WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3
ORDER BY logged_at`

func (q *Queries) ListFoodLogs(ctx context.Context, arg ListLogsParams) ([]FoodLog, error) {
	rows, err := q.db.Query(ctx, listFoodLogs, arg.UserID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FoodLog
	for rows.Next() {
		f, err := scanFoodLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

const deleteFoodLog = `DELETE FROM food_logs WHERE id = $1 AND user_id = $2`

func (q *Queries) DeleteFoodLog(ctx context.Context, arg DeleteLogParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteFoodLog, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const activityLogColumns = `id, user_id, logged_at, title, type, duration_min, kcal_burned, steps, created_at`

func scanActivityLog(row pgx.Row) (ActivityLog, error) {
	var a ActivityLog
	err := row.Scan(&a.ID, &a.UserID, &a.LoggedAt, &a.Title, &a.Type, &a.DurationMin, &a.KcalBurned, &a.Steps, &a.CreatedAt)
	return a, err
}

const createActivityLog = `
INSERT INTO activity_logs (id, user_id, logged_at, title, type, duration_min, kcal_burned, steps)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + activityLogColumns

func (q *Queries) CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) (ActivityLog, error) {
	return scanActivityLog(q.db.QueryRow(ctx, createActivityLog,
		uuid.NewString(), arg.UserID, arg.LoggedAt, arg.Title, arg.Type, arg.DurationMin, arg.KcalBurned, arg.Steps,
	))
}

const listActivityLogs = `
SELECT ` + activityLogColumns + ` FROM activity_logs
WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3
ORDER BY logged_at`

func (q *Queries) ListActivityLogs(ctx context.Context, arg ListLogsParams) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogs, arg.UserID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ActivityLog
	for rows.Next() {
		a, err := scanActivityLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const deleteActivityLog = `DELETE FROM activity_logs WHERE id = $1 AND user_id = $2`

func (q *Queries) DeleteActivityLog(ctx context.Context, arg DeleteLogParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteActivityLog, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
