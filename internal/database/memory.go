package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemoryStore is an in-process Querier used when no database host is
// configured, and by tests.
type MemoryStore struct {
	mu sync.RWMutex

	users           map[string]User
	profiles        map[string]UserProfile
	vendors         map[int32]Vendor
	nextVendorID    int32
	menuItems       map[string]MenuItem
	classes         map[string]FitnessClass
	recommendations map[string]Recommendation
	foodLogs        map[string]FoodLog
	activityLogs    map[string]ActivityLog
}

var _ Querier = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]User),
		profiles:        make(map[string]UserProfile),
		vendors:         make(map[int32]Vendor),
		menuItems:       make(map[string]MenuItem),
		classes:         make(map[string]FitnessClass),
		recommendations: make(map[string]Recommendation),
		foodLogs:        make(map[string]FoodLog),
		activityLogs:    make(map[string]ActivityLog),
	}
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *MemoryStore) EnsureUser(_ context.Context, arg EnsureUserParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[arg.ID]
	if !ok {
		u = User{ID: arg.ID, CreatedAt: time.Now()}
	}
	if arg.Email.Valid {
		u.Email = arg.Email
	}
	if arg.DisplayName.Valid {
		u.DisplayName = arg.DisplayName
	}
	m.users[arg.ID] = u
	return u, nil
}

func (m *MemoryStore) GetUserProfile(_ context.Context, userID string) (UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return UserProfile{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *MemoryStore) UpsertUserProfile(_ context.Context, arg UpsertUserProfileParams) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := UserProfile{
		UserID:              arg.UserID,
		Age:                 arg.Age,
		Gender:              arg.Gender,
		HeightCm:            arg.HeightCm,
		WeightKg:            arg.WeightKg,
		ActivityLevel:       arg.ActivityLevel,
		Goal:                arg.Goal,
		DietPrefs:           nonNil(arg.DietPrefs),
		AvoidFoods:          nonNil(arg.AvoidFoods),
		TimeBudgetMin:       arg.TimeBudgetMin,
		PreferredTimes:      nonNil(arg.PreferredTimes),
		PreferredActivities: nonNil(arg.PreferredActivities),
		StepGoal:            arg.StepGoal,
		UpdatedAt:           time.Now(),
	}
	if p.Goal == "" {
		p.Goal = FitnessGoalUnknown
	}
	m.profiles[arg.UserID] = p
	return p, nil
}

func (m *MemoryStore) DeleteUserProfile(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.profiles, userID)
	return nil
}

func (m *MemoryStore) ListVendorsBySource(_ context.Context, source string) ([]Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Vendor
	for _, v := range m.vendors {
		if v.Source == source {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpsertVendor(_ context.Context, arg UpsertVendorParams) (Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.vendors {
		if v.Name == arg.Name && v.Source == arg.Source {
			return v, nil
		}
	}
	m.nextVendorID++
	v := Vendor{ID: m.nextVendorID, Name: arg.Name, Source: arg.Source}
	m.vendors[v.ID] = v
	return v, nil
}

// withVendor fills VendorName; callers hold the lock.
func (m *MemoryStore) withVendor(item MenuItem) MenuItem {
	item.VendorName = m.vendors[item.VendorID].Name
	return item
}

func sortMenuItems(items []MenuItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].VendorName != items[j].VendorName {
			return items[i].VendorName < items[j].VendorName
		}
		return items[i].Name < items[j].Name
	})
}

func (m *MemoryStore) ListMenuItemsByVendors(_ context.Context, vendorIDs []int32) ([]MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[int32]bool, len(vendorIDs))
	for _, id := range vendorIDs {
		wanted[id] = true
	}

	var out []MenuItem
	for _, item := range m.menuItems {
		if wanted[item.VendorID] && item.Calories.Valid && item.ProteinG.Valid {
			out = append(out, m.withVendor(item))
		}
	}
	sortMenuItems(out)
	return out, nil
}

func (m *MemoryStore) SearchMenuItems(_ context.Context, arg SearchMenuItemsParams) ([]MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(arg.Query)
	var out []MenuItem
	for _, item := range m.menuItems {
		item = m.withVendor(item)
		if containsFold(item.Name, needle) || containsFold(item.Description.String, needle) ||
			containsFold(item.VendorName, needle) || hasTag(item.Tags, arg.Query) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if arg.Limit > 0 && len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ListMenuItemsWithEmbeddings(_ context.Context, limit int32) ([]MenuItem, error) {
	return m.filterMenuItems(limit, func(item MenuItem) bool { return len(item.Embedding) > 0 }), nil
}

func (m *MemoryStore) ListMenuItemsMissingEmbedding(_ context.Context, limit int32) ([]MenuItem, error) {
	return m.filterMenuItems(limit, func(item MenuItem) bool { return len(item.Embedding) == 0 }), nil
}

func (m *MemoryStore) filterMenuItems(limit int32, keep func(MenuItem) bool) []MenuItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MenuItem
	for _, item := range m.menuItems {
		if keep(item) {
			out = append(out, m.withVendor(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out
}

func (m *MemoryStore) UpsertMenuItem(_ context.Context, arg UpsertMenuItemParams) (MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	var embedding []float32
	for _, existing := range m.menuItems {
		if existing.VendorID == arg.VendorID && existing.Name == arg.Name {
			id = existing.ID
			embedding = existing.Embedding
			break
		}
	}

	item := MenuItem{
		ID:          id,
		VendorID:    arg.VendorID,
		Name:        arg.Name,
		Description: arg.Description,
		MealType:    arg.MealType,
		Category:    arg.Category,
		ServingSize: arg.ServingSize,
		Calories:    arg.Calories,
		ProteinG:    arg.ProteinG,
		CarbsG:      arg.CarbsG,
		FatG:        arg.FatG,
		Price:       arg.Price,
		Tags:        nonNil(arg.Tags),
		Allergens:   nonNil(arg.Allergens),
		Embedding:   embedding,
	}
	m.menuItems[id] = item
	return m.withVendor(item), nil
}

func (m *MemoryStore) UpdateMenuItemEmbedding(_ context.Context, arg UpdateMenuItemEmbeddingParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.menuItems[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	item.Embedding = arg.Embedding
	m.menuItems[arg.ID] = item
	return nil
}

func (m *MemoryStore) ListFitnessClassesBetween(_ context.Context, arg ListFitnessClassesBetweenParams) ([]FitnessClass, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []FitnessClass
	for _, c := range m.classes {
		if !c.StartsAt.Before(arg.Start) && c.StartsAt.Before(arg.End) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (m *MemoryStore) UpsertFitnessClass(_ context.Context, arg UpsertFitnessClassParams) (FitnessClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	for _, existing := range m.classes {
		if existing.Source == arg.Source && existing.Title == arg.Title && existing.StartsAt.Equal(arg.StartsAt) {
			id = existing.ID
			break
		}
	}

	c := FitnessClass{
		ID:        id,
		Title:     arg.Title,
		StartsAt:  arg.StartsAt,
		EndsAt:    arg.EndsAt,
		Location:  arg.Location,
		Intensity: arg.Intensity,
		Source:    arg.Source,
	}
	m.classes[id] = c
	return c, nil
}

func recommendationKey(userID string, day time.Time, kind PlanKind) string {
	return userID + "|" + day.UTC().Format(time.RFC3339) + "|" + string(kind)
}

func (m *MemoryStore) GetRecommendation(_ context.Context, arg GetRecommendationParams) (Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  Recommendation
		found bool
	)
	for _, r := range m.recommendations {
		if r.UserID != arg.UserID || r.Kind != arg.Kind || r.Day.Before(arg.Since) {
			continue
		}
		if !found || r.Day.After(best.Day) {
			best, found = r, true
		}
	}
	if !found {
		return Recommendation{}, pgx.ErrNoRows
	}
	return best, nil
}

func (m *MemoryStore) UpsertRecommendation(_ context.Context, arg UpsertRecommendationParams) (Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := recommendationKey(arg.UserID, arg.Day, arg.Kind)
	r, ok := m.recommendations[key]
	if !ok {
		r = Recommendation{ID: uuid.NewString(), UserID: arg.UserID, Day: arg.Day, Kind: arg.Kind, CreatedAt: now}
	}
	r.Payload = arg.Payload
	r.Rationale = arg.Rationale
	r.Model = arg.Model
	r.UpdatedAt = now
	m.recommendations[key] = r
	return r, nil
}

func (m *MemoryStore) CreateFoodLog(_ context.Context, arg CreateFoodLogParams) (FoodLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := FoodLog{
		ID:         uuid.NewString(),
		UserID:     arg.UserID,
		LoggedAt:   arg.LoggedAt,
		MealType:   arg.MealType,
		Name:       arg.Name,
		Source:     arg.Source,
		Kcal:       arg.Kcal,
		ProteinG:   arg.ProteinG,
		CarbsG:     arg.CarbsG,
		FatG:       arg.FatG,
		Confidence: arg.Confidence,
		MenuItemID: arg.MenuItemID,
		CreatedAt:  time.Now(),
	}
	m.foodLogs[f.ID] = f
	return f, nil
}

func (m *MemoryStore) ListFoodLogs(_ context.Context, arg ListLogsParams) ([]FoodLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []FoodLog
	for _, f := range m.foodLogs {
		if f.UserID == arg.UserID && !f.LoggedAt.Before(arg.Start) && f.LoggedAt.Before(arg.End) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.Before(out[j].LoggedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteFoodLog(_ context.Context, arg DeleteLogParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.foodLogs[arg.ID]
	if !ok || f.UserID != arg.UserID {
		return 0, nil
	}
	delete(m.foodLogs, arg.ID)
	return 1, nil
}

func (m *MemoryStore) CreateActivityLog(_ context.Context, arg CreateActivityLogParams) (ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := ActivityLog{
		ID:          uuid.NewString(),
		UserID:      arg.UserID,
		LoggedAt:    arg.LoggedAt,
		Title:       arg.Title,
		Type:        arg.Type,
		DurationMin: arg.DurationMin,
		KcalBurned:  arg.KcalBurned,
		Steps:       arg.Steps,
		CreatedAt:   time.Now(),
	}
	m.activityLogs[a.ID] = a
	return a, nil
}

func (m *MemoryStore) ListActivityLogs(_ context.Context, arg ListLogsParams) ([]ActivityLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ActivityLog
	for _, a := range m.activityLogs {
		if a.UserID == arg.UserID && !a.LoggedAt.Before(arg.Start) && a.LoggedAt.Before(arg.End) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.Before(out[j].LoggedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteActivityLog(_ context.Context, arg DeleteLogParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.activityLogs[arg.ID]
	if !ok || a.UserID != arg.UserID {
		return 0, nil
	}
	delete(m.activityLogs, arg.ID)
	return 1, nil
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
