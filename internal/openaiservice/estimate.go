package openaiservice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Estimate is a model-produced calorie and macro estimate for one meal.
type Estimate struct {
	Name       string  `json:"name"`
	Calories   int     `json:"calories"`
	ProteinG   float64 `json:"proteinG"`
	CarbsG     float64 `json:"carbsG"`
	FatG       float64 `json:"fatG"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// EstimateFromText estimates a meal from a free-text description.
func EstimateFromText(ctx context.Context, c Client, description string) (*Estimate, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("description is required")
	}

	messages := []Message{
		{Role: "system", Content: EstimateSystemPrompt},
		{Role: "user", Content: "Estimate the calories and macros of this meal: " + description},
	}
	return requestEstimate(ctx, c, "EstimateFromText", messages)
}

// EstimateFromPhoto sends the image inline as a base64 data URL.
func EstimateFromPhoto(ctx context.Context, c Client, image []byte, mimeType, hint string) (*Estimate, error) {
	if len(image) == 0 {
		return nil, errors.New("image is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	prompt := "Analyze this food image and estimate the calories."
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += "\n\nAdditional hint: " + hint
	}
	prompt += "\n\nReturn your analysis as JSON following the specified format."

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	messages := []Message{
		{Role: "system", Content: EstimateSystemPrompt},
		{Role: "user", Content: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
		}},
	}
	return requestEstimate(ctx, c, "EstimateFromPhoto", messages)
}

func requestEstimate(ctx context.Context, c Client, op string, messages []Message) (*Estimate, error) {
	return WithRetry(ctx, op, func(ctx context.Context) (*Estimate, error) {
		resp, err := c.Complete(ctx, CompletionRequest{Messages: messages, JSONMode: true})
		if err != nil {
			return nil, err
		}
		return parseEstimate(resp.Content)
	})
}

// ErrMalformedOutput marks a model answer that could not be used. Asking
// again with the same prompt rarely helps, so it is not retried.
var ErrMalformedOutput = errors.New("malformed model output")

func parseEstimate(raw string) (*Estimate, error) {
	// Models often answer 520.0 for calories.
	var w struct {
		Estimate
		Calories float64 `json:"calories"`
	}
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: invalid estimate JSON: %w", ErrMalformedOutput, err)
	}
	e := w.Estimate
	if strings.TrimSpace(e.Name) == "" {
		return nil, fmt.Errorf("%w: estimate is missing a name", ErrMalformedOutput)
	}

	// Negative values are clamped; confidence lives in [0,1].
	e.Calories = int(math.Round(math.Max(w.Calories, 0)))
	e.ProteinG = math.Max(e.ProteinG, 0)
	e.CarbsG = math.Max(e.CarbsG, 0)
	e.FatG = math.Max(e.FatG, 0)
	e.Confidence = math.Min(math.Max(e.Confidence, 0), 1)
	return &e, nil
}
