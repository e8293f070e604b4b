package planner

import (
	"math"
	"strings"

	"bluewell/internal/database"
)

const (
	defaultKcal     = 2000
	defaultProteinG = 120

	loseFatDeficit = 250
	gainSurplus    = 200
)

var activityFactors = []float64{1.2, 1.375, 1.55, 1.725}

// Targets are the daily calorie and protein goals of a user.
type Targets struct {
	Kcal      int  `json:"kcal"`
	ProteinG  int  `json:"protein_g"`
	Defaulted bool `json:"defaulted,omitempty"`
}

// ProfileInput is the part of a profile the target formula reads.
type ProfileInput struct {
	WeightKg      *float64
	HeightCm      *float64
	Age           *int
	Gender        string
	ActivityLevel int
	Goal          database.FitnessGoal
}

// ProfileInputFrom adapts a stored profile.
func ProfileInputFrom(p database.UserProfile) ProfileInput {
	in := ProfileInput{
		Gender: p.Gender.String,
		Goal:   p.Goal,
	}
	if p.WeightKg.Valid {
		w := p.WeightKg.Float64
		in.WeightKg = &w
	}
	if p.HeightCm.Valid {
		h := p.HeightCm.Float64
		in.HeightCm = &h
	}
	if p.Age.Valid {
		a := int(p.Age.Int32)
		in.Age = &a
	}
	if p.ActivityLevel.Valid {
		in.ActivityLevel = int(p.ActivityLevel.Int32)
	}
	return in
}

// CalculateTargets applies Mifflin-St Jeor, the activity factor and the goal
// adjustment. Missing weight, height, age or gender yields the fixed defaults.
func CalculateTargets(in ProfileInput, proteinPerKg float64) Targets {
	if in.WeightKg == nil || in.HeightCm == nil || in.Age == nil || strings.TrimSpace(in.Gender) == "" {
		return Targets{Kcal: defaultKcal, ProteinG: defaultProteinG, Defaulted: true}
	}

	w, h, age := *in.WeightKg, *in.HeightCm, float64(*in.Age)
	bmr := 10*w + 6.25*h - 5*age
	if isMale(in.Gender) {
		bmr += 5
	} else {
		bmr -= 161
	}

	tdee := bmr * activityFactor(in.ActivityLevel)
	switch in.Goal {
	case database.FitnessGoalLoseFat:
		tdee -= loseFatDeficit
	case database.FitnessGoalGainMuscle, database.FitnessGoalFitness, database.FitnessGoalAthletic:
		tdee += gainSurplus
	}

	return Targets{
		Kcal:     int(math.Round(tdee)),
		ProteinG: int(math.Round(w * proteinPerKg)),
	}
}

func activityFactor(level int) float64 {
	if level < 1 || level > len(activityFactors) {
		return activityFactors[0]
	}
	return activityFactors[level-1]
}

func isMale(gender string) bool {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "man", "male", "m":
		return true
	}
	return false
}
