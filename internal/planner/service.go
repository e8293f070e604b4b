/*
Package planner builds daily, next-6-hours and weekly meal and workout plans
from campus dining and fitness data, with a deterministic fallback when the
provider is unavailable, and caches one plan per user, day and kind.
*/
package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/utility"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const toolResultLimit = 15

// Notifier is told after a plan was written to the cache.
type Notifier func(userID string, kind database.PlanKind)

type Options struct {
	ProteinPerKg   float64
	DiningSource   string
	Location       *time.Location
	Notify         Notifier
	Now            func() time.Time
	DisableToolUse bool
}

// Service runs the plan pipeline for one request at a time; it holds no
// per-user state.
type Service struct {
	q       database.Querier
	llm     openaiservice.Client
	classes *ClassLoader
	opts    Options
}

// Result is a plan plus its exact serialized payload.
type Result struct {
	Plan    Plan
	Payload []byte
	Cached  bool
}

// NewService wires the pipeline. llm may be nil, in which case every plan is
// the fallback plan.
func NewService(q database.Querier, llm openaiservice.Client, classes *ClassLoader, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ProteinPerKg <= 0 {
		opts.ProteinPerKg = 1.2
	}
	if opts.DiningSource == "" {
		opts.DiningSource = "DUKE_DINING"
	}
	return &Service{q: q, llm: llm, classes: classes, opts: opts}
}

func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// Targets loads the user's profile and derives targets. A missing profile
// yields the defaults.
func (s *Service) Targets(ctx context.Context, userID string) (Targets, database.UserProfile, error) {
	profile, err := s.q.GetUserProfile(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		profile = database.UserProfile{UserID: userID, Goal: database.FitnessGoalUnknown}
	} else if err != nil {
		return Targets{}, database.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	return s.TargetsFor(profile), profile, nil
}

// TargetsFor derives targets from an already loaded profile.
func (s *Service) TargetsFor(profile database.UserProfile) Targets {
	return CalculateTargets(ProfileInputFrom(profile), s.opts.ProteinPerKg)
}

// GetPlan returns today's cached plan of kind, generating and storing one
// when there is none or refresh is set.
func (s *Service) GetPlan(ctx context.Context, userID string, kind database.PlanKind, refresh bool) (*Result, error) {
	now := s.opts.Now().In(s.opts.Location)
	todayStart := utility.StartOfDay(now, s.opts.Location)

	if !refresh {
		if res, ok := s.cached(ctx, userID, kind, todayStart); ok {
			return res, nil
		}
	}

	plan, err := s.Generate(ctx, userID, kind, now)
	if err != nil {
		return nil, err
	}

	payload, err := EncodePlan(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	// A failed cache write still returns the plan.
	_, err = s.q.UpsertRecommendation(ctx, database.UpsertRecommendationParams{
		UserID:    userID,
		Day:       todayStart,
		Kind:      kind,
		Payload:   string(payload),
		Rationale: pgtype.Text{String: plan.Rationale, Valid: plan.Rationale != ""},
		Model:     plan.Model,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to cache plan")
	} else if s.opts.Notify != nil {
		s.opts.Notify(userID, kind)
	}

	return &Result{Plan: plan, Payload: payload}, nil
}

func (s *Service) cached(ctx context.Context, userID string, kind database.PlanKind, todayStart time.Time) (*Result, bool) {
	rec, err := s.q.GetRecommendation(ctx, database.GetRecommendationParams{UserID: userID, Kind: kind, Since: todayStart})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Str("user_id", userID).Msg("Plan cache read failed, regenerating")
		}
		return nil, false
	}

	plan, err := DecodePlan([]byte(rec.Payload))
	if err != nil {
		log.Info().Err(err).Str("user_id", userID).Msg("Cached plan unusable, regenerating")
		return nil, false
	}
	return &Result{Plan: plan, Payload: []byte(rec.Payload), Cached: true}, true
}

// Generate runs the pipeline without touching the cache.
func (s *Service) Generate(ctx context.Context, userID string, kind database.PlanKind, now time.Time) (Plan, error) {
	now = now.In(s.opts.Location)
	day := utility.StartOfDay(now, s.opts.Location)

	// 1. User context
	targets, profile, err := s.Targets(ctx, userID)
	if err != nil {
		return Plan{}, err
	}

	// 2. Candidates, dining and classes in parallel
	var (
		dining  DiningResult
		classes []ClassCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dining, err = LoadDiningCandidates(gctx, s.q, DiningFilter{
			Source:     s.opts.DiningSource,
			DietPrefs:  profile.DietPrefs,
			AvoidFoods: profile.AvoidFoods,
		})
		return err
	})
	g.Go(func() error {
		if s.classes == nil {
			return nil
		}
		days := 1
		if kind == database.PlanKindWeek {
			days = 7
		}
		for i := 0; i < days; i++ {
			c, err := s.classes.Load(gctx, ClassFilter{
				Date:       day.AddDate(0, 0, i),
				TimePrefs:  profile.PreferredTimes,
				Activities: profile.PreferredActivities,
			})
			if err != nil {
				log.Warn().Err(err).Msg("Class candidates unavailable, planning without classes")
				classes = nil
				return nil
			}
			classes = append(classes, c...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}

	fallback := func(reason string, cause error) Plan {
		log.Info().Err(cause).Str("user_id", userID).Str("reason", reason).Msg("Using fallback plan")
		p := BuildFallbackPlan(kind, day, targets, dining.Candidates, classes)
		p.GeneratedAt = now
		return p
	}

	if s.llm == nil {
		return fallback("provider not configured", nil), nil
	}

	// 3. Prompt and request
	windowStart, windowEnd := planWindow(kind, now, day)
	prompt := BuildUserPrompt(PromptInput{
		Kind:        kind,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Targets:     targets,
		Profile:     profile,
		Meals:       dining.Candidates,
		Classes:     classes,
	})

	var tools ToolHandler
	if !s.opts.DisableToolUse {
		tools = &planTools{s: s, profile: profile, day: day}
	}

	resp, err := RequestPlan(ctx, s.llm, prompt, tools, s.opts.Location)
	if err != nil {
		switch status := openaiservice.StatusOf(err); {
		case status == http.StatusUnauthorized, status == http.StatusTooManyRequests:
			return Plan{}, err
		case errors.Is(err, openaiservice.ErrNotConfigured):
			return fallback("provider not configured", err), nil
		default:
			return fallback("provider request failed", err), nil
		}
	}

	// 4. Grounding
	lookup := func(ctx context.Context, mealType string) ([]MealCandidate, error) {
		res, err := LoadDiningCandidates(ctx, s.q, DiningFilter{
			Source:    s.opts.DiningSource,
			MealType:  mealType,
			DietPrefs: profile.DietPrefs,
		})
		return res.Candidates, err
	}

	return Plan{
		Kind:        kind,
		Day:         day.Format("2006-01-02"),
		Model:       resp.Model,
		Rationale:   resp.Rationale,
		Targets:     targets,
		Items:       GroundMeals(ctx, resp.Items, dining.Candidates, lookup),
		GeneratedAt: now,
	}, nil
}

func planWindow(kind database.PlanKind, now, day time.Time) (time.Time, time.Time) {
	switch kind {
	case database.PlanKindNext6Hours:
		return now, now.Add(6 * time.Hour)
	case database.PlanKindWeek:
		return day, day.AddDate(0, 0, 7)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

// planTools answers tool calls with the same loaders the pipeline uses.
type planTools struct {
	s       *Service
	profile database.UserProfile
	day     time.Time
}

func (t *planTools) SearchMenu(ctx context.Context, query, mealType string) (interface{}, error) {
	res, err := LoadDiningCandidates(ctx, t.s.q, DiningFilter{
		Source:     t.s.opts.DiningSource,
		MealType:   mealType,
		DietPrefs:  t.profile.DietPrefs,
		AvoidFoods: t.profile.AvoidFoods,
	})
	if err != nil {
		return nil, err
	}

	out := res.Candidates
	if query != "" {
		if hits := filterCandidates(out, func(c MealCandidate) bool {
			return matchesAny([]string{query}, append([]string{c.Title, c.Vendor}, c.Tags...)...)
		}); len(hits) > 0 {
			out = hits
		}
	}
	if len(out) > toolResultLimit {
		out = out[:toolResultLimit]
	}
	return out, nil
}

func (t *planTools) ListClasses(ctx context.Context, date string) (interface{}, error) {
	if t.s.classes == nil {
		return []ClassCandidate{}, nil
	}
	day, err := utility.ParseDay(date, t.day, t.s.opts.Location)
	if err != nil {
		day = t.day
	}
	classes, err := t.s.classes.Load(ctx, ClassFilter{
		Date:       day,
		TimePrefs:  t.profile.PreferredTimes,
		Activities: t.profile.PreferredActivities,
	})
	if err != nil {
		return nil, err
	}
	if len(classes) > toolResultLimit {
		classes = classes[:toolResultLimit]
	}
	return classes, nil
}
