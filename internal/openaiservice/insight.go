package openaiservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const insightTimeout = 10 * time.Second

// ProgressSummary is the input of GenerateInsight.
type ProgressSummary struct {
	TargetKcal     int
	ConsumedKcal   int
	TargetProteinG int
	ConsumedProtG  float64
	BurnedKcal     int
	Steps          int
	StepGoal       int
}

// GenerateInsight returns a short coaching note. The whole call, retries
// included, is bounded by a 10 second timeout.
func GenerateInsight(ctx context.Context, c Client, s ProgressSummary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, insightTimeout)
	defer cancel()

	user := fmt.Sprintf(
		"Calories: %d of %d kcal eaten. Protein: %.0f of %d g. Burned %d kcal. Steps: %d of %d.",
		s.ConsumedKcal, s.TargetKcal, s.ConsumedProtG, s.TargetProteinG, s.BurnedKcal, s.Steps, s.StepGoal,
	)

	text, err := WithRetry(ctx, "GenerateInsight", func(ctx context.Context) (string, error) {
		resp, err := c.Complete(ctx, CompletionRequest{Messages: []Message{
			{Role: "system", Content: InsightSystemPrompt},
			{Role: "user", Content: user},
		}})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Content), nil
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("insight timed out after %s", insightTimeout)
	}
	return text, err
}
